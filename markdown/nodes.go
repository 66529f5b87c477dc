package markdown

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// nodeRenderer overrides links, images and headings. Everything else falls
// through to goldmark's HTML renderer.
type nodeRenderer struct{}

func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindImage, r.renderImage)
	reg.Register(ast.KindHeading, r.renderHeading)
}

// LinkKind classifies a link destination.
type LinkKind int

const (
	Internal LinkKind = iota // site path starting with "/"
	Relative                 // fragment or relative reference
	External                 // another origin, mail or phone
)

// ClassifyLink reports how a link destination is rendered.
func ClassifyLink(dest string) LinkKind {
	switch {
	case strings.HasPrefix(dest, "//"),
		strings.HasPrefix(dest, "http://"),
		strings.HasPrefix(dest, "https://"),
		strings.HasPrefix(dest, "mailto:"),
		strings.HasPrefix(dest, "tel:"):
		return External
	case strings.HasPrefix(dest, "/"):
		return Internal
	default:
		return Relative
	}
}

func (r *nodeRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<a href="`)
	if !html.IsDangerousURL(n.Destination) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	}
	_ = w.WriteByte('"')
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_ = w.WriteByte('"')
	}
	if ClassifyLink(string(n.Destination)) == External {
		_, _ = w.WriteString(` target="_blank" rel="noreferrer"`)
	}
	_, _ = w.WriteString(` class="md-link">`)
	return ast.WalkContinue, nil
}

var squareSize = regexp.MustCompile(`^\d{2,4}$`)

// imageTitle splits an image title of the form "mode|caption". Mode is one
// of wide, full, small or a pixel size; any other title is all caption.
func imageTitle(title string) (mode string, size int, caption string) {
	head, rest, found := strings.Cut(title, "|")
	token := strings.ToLower(strings.TrimSpace(head))
	switch {
	case found && squareSize.MatchString(token):
		n, _ := strconv.Atoi(token)
		return "default", min(1200, max(80, n)), strings.TrimSpace(rest)
	case found && (token == "wide" || token == "full"):
		return "wide", 0, strings.TrimSpace(rest)
	case found && token == "small":
		return "small", 0, strings.TrimSpace(rest)
	}
	return "default", 0, strings.TrimSpace(title)
}

func (r *nodeRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	mode, size, caption := imageTitle(string(n.Title))

	_, _ = w.WriteString(`<span class="md-image md-image-` + mode + `"`)
	if size > 0 {
		_, _ = w.WriteString(` style="max-width:` + strconv.Itoa(size) + `px"`)
	}
	_, _ = w.WriteString(`><img src="`)
	if !html.IsDangerousURL(n.Destination) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	}
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.Write(util.EscapeHTML(plainText(n, source)))
	_ = w.WriteByte('"')
	if caption != "" {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML([]byte(caption)))
		_ = w.WriteByte('"')
	}
	_, _ = w.WriteString(` loading="lazy" decoding="async" data-zoomable>`)
	if caption != "" {
		_, _ = w.WriteString(`<span class="md-caption">`)
		_, _ = w.Write(util.EscapeHTML([]byte(caption)))
		_, _ = w.WriteString(`</span>`)
	}
	_, _ = w.WriteString(`</span>`)
	return ast.WalkSkipChildren, nil
}

// renderHeading wraps the heading text in a link to its own anchor.
func (r *nodeRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	tag := "h" + strconv.Itoa(n.Level)
	id, hasID := n.AttributeString("id")
	idBytes, _ := id.([]byte)

	if entering {
		_, _ = w.WriteString("<" + tag)
		if n.Attributes() != nil {
			html.RenderAttributes(w, node, html.HeadingAttributeFilter)
		}
		_ = w.WriteByte('>')
		if hasID && len(idBytes) > 0 {
			_, _ = w.WriteString(`<a class="heading-anchor" href="#`)
			_, _ = w.Write(util.EscapeHTML(idBytes))
			_, _ = w.WriteString(`">`)
		}
		return ast.WalkContinue, nil
	}
	if hasID && len(idBytes) > 0 {
		_, _ = w.WriteString("</a>")
	}
	_, _ = w.WriteString("</" + tag + ">\n")
	return ast.WalkContinue, nil
}

// plainText concatenates the text under n, used for image alt text.
func plainText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.Write(plainText(c, source))
		}
	}
	return buf.Bytes()
}
