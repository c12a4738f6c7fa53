package model

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/debemdeboas/newsdesk/internal/config"
	"github.com/debemdeboas/newsdesk/internal/theme"
)

type PageData struct {
	SiteName string

	PageURL string

	Theme     string
	SyntaxCSS template.CSS

	// Set by handlers on pages that need the rich-text widget assets.
	IsEditorPage *bool
}

func NewPageData(r *http.Request) *PageData {
	return &PageData{
		SiteName:  config.AppConfig.Site.Name,
		PageURL:   r.URL.Path,
		Theme:     theme.GetThemeFromRequest(r),
		SyntaxCSS: theme.GenerateSyntaxCSS(theme.GetSyntaxThemeFromRequest(r)),
	}
}

func (pd *PageData) IsEditor() bool {
	if pd.IsEditorPage == nil {
		return strings.HasPrefix(pd.PageURL, "/news/add")
	}
	return *pd.IsEditorPage
}
