// Package catalog lists the node and link types a resolved graph type
// accepts.
package catalog

import (
	"sort"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/resolver"
	"github.com/graphrapids/graphapi/pkg/checksum"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Catalog is derived from a runtime and never stored.
type Catalog struct {
	GraphTypeID     string       `json:"graphTypeId"`
	Stage           models.Stage `json:"stage"`
	RuntimeChecksum string       `json:"runtimeChecksum"`
	NodeTypes       []string     `json:"nodeTypes"`
	LinkTypes       []string     `json:"linkTypes"`
	Checksum        string       `json:"checksum"`
}

// Build collects node types from the declared list, the resolved icons and
// the layout entries, and link types from the declared list and the link set.
func Build(rt *models.Runtime) (*Catalog, error) {
	nodes := set{}
	nodes.add(rt.NodeTypes...)
	for k := range rt.TypeIcons {
		nodes.add(k)
	}
	for k := range rt.LayoutParams {
		if k == resolver.EdgeDefaultsKey || k == resolver.DefaultLayoutKey {
			continue
		}
		nodes.add(k)
	}

	links := set{}
	links.add(rt.LinkTypes...)
	for k := range rt.LinkParams {
		links.add(k)
	}

	c := &Catalog{
		GraphTypeID:     rt.GraphTypeID,
		Stage:           rt.Stage,
		RuntimeChecksum: rt.RuntimeChecksum,
		NodeTypes:       nodes.sorted(),
		LinkTypes:       links.sorted(),
	}
	sum, err := checksum.Sum(map[string]any{
		"runtimeChecksum": c.RuntimeChecksum,
		"nodeTypes":       c.NodeTypes,
		"linkTypes":       c.LinkTypes,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "catalog checksum failed")
	}
	c.Checksum = sum
	return c, nil
}

// HasNodeType reports whether t is a known node type.
func (c *Catalog) HasNodeType(t string) bool { return contains(c.NodeTypes, t) }

// HasLinkType reports whether t is a known link type.
func (c *Catalog) HasLinkType(t string) bool { return contains(c.LinkTypes, t) }

func contains(sorted []string, t string) bool {
	i := sort.SearchStrings(sorted, t)
	return i < len(sorted) && sorted[i] == t
}

type set map[string]struct{}

func (s set) add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
