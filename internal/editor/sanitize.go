package editor

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Class names emitted by the widget and by the code highlighter.
	classPattern = regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)

	mediaPattern = regexp.MustCompile(`(?i)<(img|table)\b`)

	stripAll = bluemonday.StrictPolicy()
)

// ContentPolicy is the sanitising policy for news bodies: user generated
// content plus the table styling and language spans the widget produces.
func ContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(classPattern).OnElements("figure", "table", "span", "p", "div", "pre", "code", "blockquote")
	p.AllowElements("figure", "figcaption", "u", "colgroup", "col")
	p.AllowStyles(
		"width", "height", "text-align", "vertical-align", "float",
		"border", "border-color", "border-style", "border-width",
		"background-color", "padding", "margin-left",
	).OnElements("figure", "table", "td", "th", "tr", "col", "p", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	return p
}

// IsBlank reports whether a serialised body has nothing a reader would
// see: no text once tags are stripped and no image or table.
func IsBlank(body string) bool {
	if strings.TrimSpace(body) == "" {
		return true
	}
	if mediaPattern.MatchString(body) {
		return false
	}
	text := html.UnescapeString(stripAll.Sanitize(body))
	return strings.TrimSpace(text) == ""
}
