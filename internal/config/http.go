package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"

	HHxRequest  = "Hx-Request"
	HHxRedirect = "Hx-Redirect"
	HHxTrigger  = "Hx-Trigger"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieTheme       = "theme"
	CookieSyntaxTheme = "syntax-theme"
	CookieDraftID     = "draft-id"
	CookieAuthToken   = "auth_token"
)

// Values accepted by the enumerated configuration fields.
const (
	SurfaceHTML     = "html"
	SurfaceMarkdown = "markdown"

	BlobDriverFS = "fs"
	BlobDriverS3 = "s3"

	AuthEd25519 = "ed25519"
	AuthClerk   = "clerk"
)
