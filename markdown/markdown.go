// Package markdown compiles note bodies to HTML with goldmark and exposes the
// result as a templ component.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/a-h/templ"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// LightStyle and DarkStyle are the chroma styles served by StyleCSS.
const (
	LightStyle = "github"
	DarkStyle  = "github-dark"
)

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a Renderer with GFM, heading anchors, class-based syntax
// highlighting and the site's link, image and code block rendering.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(LightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
				highlighting.WithWrapperRenderer(codeBlockWrapper),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&nodeRenderer{}, 100),
			),
		),
	)
	return &Renderer{md: md}
}

// RenderHTML returns the HTML for body.
func (r *Renderer) RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(expandCallouts(body)), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}

// Render returns body as a component for embedding in a page.
func (r *Renderer) Render(body string) (templ.Component, error) {
	out, err := r.RenderHTML(body)
	if err != nil {
		return nil, err
	}
	return templ.Raw(out), nil
}

var (
	calloutOpen  = regexp.MustCompile(`<Callout(?:\s+type=["'](\w+)["'])?\s*>`)
	calloutClose = regexp.MustCompile(`</Callout\s*>`)
)

// expandCallouts rewrites <Callout type="..."> blocks to plain asides.
// Unknown or missing types render as info.
func expandCallouts(body string) string {
	if !strings.Contains(body, "<Callout") {
		return body
	}
	body = calloutOpen.ReplaceAllStringFunc(body, func(m string) string {
		kind := "info"
		if sub := calloutOpen.FindStringSubmatch(m); sub[1] == "warn" || sub[1] == "success" {
			kind = sub[1]
		}
		return `<aside class="callout callout-` + kind + `">`
	})
	return calloutClose.ReplaceAllString(body, "</aside>")
}

func codeBlockWrapper(w util.BufWriter, c highlighting.CodeBlockContext, entering bool) {
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return
	}
	_, _ = w.WriteString(`<div class="code-block">`)
	if lang, ok := c.Language(); ok && len(lang) > 0 {
		_, _ = w.WriteString(`<span class="code-lang">`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_, _ = w.WriteString(`</span>`)
	}
	_, _ = w.WriteString(`<button type="button" class="code-copy" data-copy-code aria-label="Copy code" title="Copy code">Copy</button>`)
}
