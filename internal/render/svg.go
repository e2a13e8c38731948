package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Renderer produces the final document from a laid-out canvas.
type Renderer interface {
	Render(ctx context.Context, laidOut []byte, c *Canvas, css string) ([]byte, error)
}

// SVGRenderer embeds the theme CSS and graph metadata into the laid-out SVG.
type SVGRenderer struct{}

func NewSVGRenderer() *SVGRenderer { return &SVGRenderer{} }

var _ Renderer = (*SVGRenderer)(nil)

var (
	svgTagRe   = regexp.MustCompile(`<svg[^>]*>`)
	xmlPrologs = regexp.MustCompile(`(?s)^\s*(<\?xml[^>]*\?>\s*)?(<!DOCTYPE[^>]*>\s*)?(<!--.*?-->\s*)*`)
)

func (SVGRenderer) Render(ctx context.Context, laidOut []byte, c *Canvas, css string) ([]byte, error) {
	body := xmlPrologs.ReplaceAll(laidOut, nil)
	loc := svgTagRe.FindIndex(body)
	if loc == nil {
		return nil, appErr.New(appErr.CodeInternal, "layout output is not an svg document")
	}
	open := body[loc[0]:loc[1]]
	selfClosing := bytes.HasSuffix(open, []byte("/>"))
	open = bytes.TrimSuffix(bytes.TrimSuffix(open, []byte(">")), []byte("/"))

	var buf bytes.Buffer
	buf.Write(body[:loc[0]])
	buf.Write(open)
	fmt.Fprintf(&buf, ` class="graphrapids" data-graph-type="%s" data-runtime-checksum="%s">`,
		html.EscapeString(c.GraphTypeID), html.EscapeString(c.RuntimeChecksum))
	if strings.TrimSpace(css) != "" {
		buf.WriteString("\n<style><![CDATA[\n")
		buf.WriteString(strings.ReplaceAll(css, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("\n]]></style>")
	}
	if selfClosing {
		buf.WriteString("</svg>\n")
		return buf.Bytes(), nil
	}
	buf.Write(body[loc[1]:])
	return buf.Bytes(), nil
}
