package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"
	ErrUnauthorized           = "Unauthorized"
	ErrRefreshChallenge       = "Failed to refresh challenge"

	// News form errors
	ErrDraftNotFound    = "Draft not found"
	ErrInvalidUpload    = "Invalid upload"
	ErrInvalidIndex     = "Invalid image index"
	ErrPreviewNotFound  = "Preview not found"
	ErrMediaNotFound    = "Media not found"
	ErrDraftRequired    = "Draft parameter required"
	ErrStreamingMissing = "Streaming unsupported"
	ErrEditorNotReady   = "Editor is not ready"
	ErrRenderPage       = "Failed to render page"
	ErrRecordNotFound   = "Record not found"
)

// User-facing notification messages.
const (
	MsgFillRequired      = "Please fill in all required fields"
	MsgNewsCreated       = "News created successfully"
	MsgNewsCreateFailed  = "Failed to create news, please try again"
	MsgSubmissionPending = "A submission is already in progress"
	MsgInvalidAttachment = "Attachment rejected: %s"
)
