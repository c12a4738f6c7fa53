// Package routes defines HTTP route constants for the application.
package routes

const (
	// Static and assets
	RobotsPath  = "/robots.txt"
	ThemeToggle = "/theme/toggle"

	RootPath = "/"

	// News list and media
	NewsList    = "/news"
	NewsRecord  = "/news/{id}"
	NewsPreview = "/news/previews/{token}"
	NewsMedia   = "/news/media/{id}"
	NewsEvents  = "/news/events"

	PreviewPrefix = "/news/previews/"
	MediaPrefix   = "/news/media/"

	// Record creation form
	NewsAdd        = "/news/add"
	NewsAddReady   = "/news/add/ready"
	NewsAddTitle   = "/news/add/title"
	NewsAddContent = "/news/add/content"
	NewsAddImages  = "/news/add/images"
	NewsAddImage   = "/news/add/images/{index}"
	NewsAddSubmit  = "/news/add/submit"
	NewsAddUnmount = "/news/add/unmount"

	// Auth routes
	AuthChallenge = "/auth/challenge"
	AuthVerify    = "/auth/verify"
	AuthLogin     = "/auth/login"
	WebhookUser   = "/webhook/user"
)
