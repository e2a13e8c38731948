// Package render turns a YAML graph description into a themed SVG using a
// resolved graph-type runtime.
package render

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Graph is the user supplied graph.
type Graph struct {
	Nodes []Node `yaml:"nodes" validate:"dive"`
	Links []Link `yaml:"links" validate:"dive"`
}

// Node is either a bare id ("web") or a mapping with id, type and label.
type Node struct {
	ID    string `yaml:"id" validate:"required,max=128"`
	Type  string `yaml:"type,omitempty" validate:"max=64"`
	Label string `yaml:"label,omitempty" validate:"max=256"`
}

func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*n = Node{ID: strings.TrimSpace(value.Value)}
		return nil
	}
	type plain Node
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	n.ID = strings.TrimSpace(n.ID)
	return nil
}

// Link is either "a:port -> b:port" or a mapping with from, to, type and
// label. Ports are optional.
type Link struct {
	From     string `yaml:"from" validate:"required"`
	FromPort string `yaml:"fromPort,omitempty"`
	To       string `yaml:"to" validate:"required"`
	ToPort   string `yaml:"toPort,omitempty"`
	Type     string `yaml:"type,omitempty" validate:"max=64"`
	Label    string `yaml:"label,omitempty" validate:"max=256"`
}

func (l *Link) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		from, to, ok := strings.Cut(value.Value, "->")
		if !ok {
			return fmt.Errorf("link %q must look like a:port -> b:port", value.Value)
		}
		*l = Link{}
		l.From, l.FromPort = endpoint(from)
		l.To, l.ToPort = endpoint(to)
		return nil
	}
	type plain Link
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*l = Link(p)
	if l.FromPort == "" {
		l.From, l.FromPort = endpoint(l.From)
	}
	if l.ToPort == "" {
		l.To, l.ToPort = endpoint(l.To)
	}
	return nil
}

func endpoint(s string) (node, port string) {
	node, port, _ = strings.Cut(strings.TrimSpace(s), ":")
	return strings.TrimSpace(node), strings.TrimSpace(port)
}

// ParseInput decodes and validates a YAML graph.
func ParseInput(text string) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal([]byte(text), &g); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid yaml")
	}
	if err := validate.Struct(&g); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "graph validation failed")
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := seen[n.ID]; dup {
			return nil, appErr.Newf(appErr.CodeInvalid, "node %q is declared twice", n.ID).WithMeta("node", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for _, l := range g.Links {
		for _, end := range []string{l.From, l.To} {
			if _, ok := seen[end]; !ok {
				return nil, appErr.Newf(appErr.CodeInvalid, "link %s -> %s references unknown node %q", l.From, l.To, end).
					WithMeta("node", end)
			}
		}
	}
	return &g, nil
}
