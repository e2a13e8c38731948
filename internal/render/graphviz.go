package render

import (
	"bytes"
	"context"

	"github.com/goccy/go-graphviz"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Layouter positions a canvas. The result is the engine's laid-out SVG.
type Layouter interface {
	Layout(ctx context.Context, c *Canvas) ([]byte, error)
}

// GraphvizLayout lays canvases out with the embedded Graphviz engine.
type GraphvizLayout struct{}

func NewGraphvizLayout() *GraphvizLayout { return &GraphvizLayout{} }

var _ Layouter = (*GraphvizLayout)(nil)

func (GraphvizLayout) Layout(ctx context.Context, c *Canvas) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(ToDOT(c)))
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "parse generated dot")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "graphviz layout failed")
	}
	return buf.Bytes(), nil
}
