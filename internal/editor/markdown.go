package editor

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// NewMarkdownSurface accepts markdown from the browser and serialises it to
// sanitised HTML, highlighting fenced code with the given chroma style.
// Renders are not cached; an instance keeps only its latest body.
func NewMarkdownSurface(syntaxTheme string) *Surface {
	policy := ContentPolicy()
	return newSurface("markdown", func(raw string) (string, error) {
		return policy.Sanitize(string(RenderMarkdown([]byte(raw), syntaxTheme))), nil
	})
}

func HighlightCode(code, language, syntaxTheme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return html.EscapeString(code)
	}

	formatter := chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4))

	var buf strings.Builder
	if err := formatter.Format(&buf, styles.Get(syntaxTheme), iterator); err != nil {
		return html.EscapeString(code)
	}
	return buf.String()
}

func RenderMarkdown(md []byte, syntaxTheme string) []byte {
	md = markdown.NormalizeNewlines(md)

	opts := mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", HighlightCode(string(code.Literal), string(code.Info), syntaxTheme))
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Footnotes)
	return markdown.ToHTML(md, p, mdhtml.NewRenderer(opts))
}
