package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticURLPath  = "/" + StaticLocalDir + "/"

	TemplatesLocalDir = "templates"

	TemplateLayout     = "layout.html"
	TemplateNewsList   = "news_list.html"
	TemplateNewsAdd    = "news_add.html"
	TemplateNewsRecord = "news_record.html"
	TemplateAuth       = "ed25519_auth.html"

	TemplateNameLayout = "layout"
	TemplateNameAuth   = "auth"
)
