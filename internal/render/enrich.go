package render

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/graphrapids/graphapi/internal/catalog"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/resolver"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

const (
	defaultNodeWidth  = 120.0
	defaultNodeHeight = 48.0
	defaultLinkType   = "directed"
)

// Canvas is a graph enriched with everything the layout and renderer need.
type Canvas struct {
	GraphTypeID     string
	RuntimeChecksum string
	Settings        map[string]any
	Nodes           []CanvasNode
	Edges           []CanvasEdge
}

type CanvasNode struct {
	ID     string
	Type   string
	Label  string
	Icon   string
	Width  float64
	Height float64
}

type CanvasEdge struct {
	ID       string
	From     string
	FromPort string
	To       string
	ToPort   string
	Type     string
	Label    string
	Directed bool
	Props    map[string]any
}

// Enrich checks every node and link type against the catalog and attaches
// icons, sizes and edge properties from the runtime.
func Enrich(g *Graph, rt *models.Runtime, cat *catalog.Catalog) (*Canvas, error) {
	c := &Canvas{
		GraphTypeID:     rt.GraphTypeID,
		RuntimeChecksum: rt.RuntimeChecksum,
		Settings:        models.CloneMap(rt.ElkSettings),
		Nodes:           make([]CanvasNode, 0, len(g.Nodes)),
		Edges:           make([]CanvasEdge, 0, len(g.Links)),
	}

	defaults := rt.LayoutParams[resolver.DefaultLayoutKey]
	for _, n := range g.Nodes {
		typ, err := typeKey(n.Type)
		if err != nil {
			return nil, err
		}
		if typ != "" && !cat.HasNodeType(typ) {
			return nil, appErr.Newf(appErr.CodeInvalid, "node %q has unknown type %q", n.ID, n.Type).
				WithMeta("node", n.ID).
				WithMeta("type", typ)
		}
		label := n.Label
		if label == "" {
			label = n.ID
		}
		cn := CanvasNode{ID: n.ID, Type: typ, Label: label, Icon: rt.TypeIcons[typ], Width: defaultNodeWidth, Height: defaultNodeHeight}
		applySize(&cn, defaults)
		applySize(&cn, rt.LayoutParams[typ])
		c.Nodes = append(c.Nodes, cn)
	}

	for i, l := range g.Links {
		typ, err := typeKey(l.Type)
		if err != nil {
			return nil, err
		}
		if typ == "" && cat.HasLinkType(defaultLinkType) {
			typ = defaultLinkType
		}
		if typ != "" && !cat.HasLinkType(typ) {
			return nil, appErr.Newf(appErr.CodeInvalid, "link %s -> %s has unknown type %q", l.From, l.To, l.Type).
				WithMeta("type", typ)
		}
		props := models.CloneMap(rt.EdgeTypeOverrides[typ])
		if props == nil {
			props = map[string]any{}
		}
		edgeType, _ := props[resolver.ElkEdgeTypeProperty].(string)
		c.Edges = append(c.Edges, CanvasEdge{
			ID:       fmt.Sprintf("e%d", i),
			From:     l.From,
			FromPort: l.FromPort,
			To:       l.To,
			ToPort:   l.ToPort,
			Type:     typ,
			Label:    l.Label,
			Directed: edgeType != "UNDIRECTED",
			Props:    props,
		})
	}
	return c, nil
}

func typeKey(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	key, ok := models.NormalizeKey(raw)
	if !ok {
		return "", appErr.Newf(appErr.CodeInvalid, "type %q is not a valid name", raw).WithMeta("type", raw)
	}
	return key, nil
}

func applySize(n *CanvasNode, params map[string]any) {
	if w, ok := number(params["width"]); ok && w > 0 {
		n.Width = w
	}
	if h, ok := number(params["height"]); ok && h > 0 {
		n.Height = h
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
