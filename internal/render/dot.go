package render

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Graphviz works in inches; layout parameters are pixels.
const pixelsPerInch = 72.0

var rankdirs = map[string]string{
	"RIGHT": "LR",
	"LEFT":  "RL",
	"UP":    "BT",
	"DOWN":  "TB",
}

var splines = map[string]string{
	"ORTHOGONAL": "ortho",
	"POLYLINE":   "polyline",
	"SPLINES":    "spline",
}

// ToDOT converts a canvas to Graphviz DOT, mapping the ELK settings the
// engine understands onto their Graphviz counterparts.
func ToDOT(c *Canvas) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	for _, attr := range graphAttrs(c.Settings) {
		fmt.Fprintf(&buf, "  %s;\n", attr)
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded\", fixedsize=true, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range c.Nodes {
		attrs := []string{
			fmt.Sprintf("id=%q", "node-"+n.ID),
			fmt.Sprintf("label=%q", n.Label),
			fmt.Sprintf("width=%s", inches(n.Width)),
			fmt.Sprintf("height=%s", inches(n.Height)),
			fmt.Sprintf("class=%q", nodeClass(n)),
		}
		if n.Icon != "" {
			attrs = append(attrs, fmt.Sprintf("tooltip=%q", n.Icon))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range c.Edges {
		attrs := []string{
			fmt.Sprintf("id=%q", "edge-"+e.ID),
			fmt.Sprintf("class=%q", edgeClass(e)),
		}
		if e.Label != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
		}
		if e.FromPort != "" {
			attrs = append(attrs, fmt.Sprintf("taillabel=%q", e.FromPort))
		}
		if e.ToPort != "" {
			attrs = append(attrs, fmt.Sprintf("headlabel=%q", e.ToPort))
		}
		if !e.Directed {
			attrs = append(attrs, "dir=none")
		}
		if w, ok := number(e.Props["org.eclipse.elk.edge.thickness"]); ok && w > 0 {
			attrs = append(attrs, "penwidth="+strconv.FormatFloat(w, 'f', -1, 64))
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func graphAttrs(settings map[string]any) []string {
	attrs := []string{"rankdir=TB"}
	if dir, ok := settings["org.eclipse.elk.direction"].(string); ok {
		if rd, known := rankdirs[strings.ToUpper(dir)]; known {
			attrs[0] = "rankdir=" + rd
		}
	}
	if v, ok := number(settings["org.eclipse.elk.spacing.nodeNode"]); ok && v > 0 {
		attrs = append(attrs, "nodesep="+inches(v))
	}
	if v, ok := number(settings["org.eclipse.elk.layered.spacing.nodeNodeBetweenLayers"]); ok && v > 0 {
		attrs = append(attrs, "ranksep="+inches(v))
	}
	if r, ok := settings["org.eclipse.elk.edgeRouting"].(string); ok {
		if sp, known := splines[strings.ToUpper(r)]; known {
			attrs = append(attrs, "splines="+sp)
		}
	}
	sort.Strings(attrs[1:])
	return attrs
}

func inches(px float64) string {
	return strconv.FormatFloat(px/pixelsPerInch, 'f', 4, 64)
}

func nodeClass(n CanvasNode) string {
	if n.Type == "" {
		return "node"
	}
	return "node type-" + n.Type
}

func edgeClass(e CanvasEdge) string {
	if e.Type == "" {
		return "edge"
	}
	return "edge link-" + e.Type
}
