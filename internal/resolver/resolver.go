// Package resolver turns a graph type and the collections it references into
// one checksummed runtime descriptor.
package resolver

import (
	"context"
	"sort"

	"github.com/graphrapids/graphapi/internal/icons"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/store"
	"github.com/graphrapids/graphapi/pkg/checksum"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

const (
	// EdgeDefaultsKey is the layout-set entry applied to every link type.
	EdgeDefaultsKey = "edge-defaults"
	// DefaultLayoutKey is the layout-set entry applied to untyped nodes.
	DefaultLayoutKey = "default"
	// ElkEdgeTypeProperty receives a link type's elkEdgeType.
	ElkEdgeTypeProperty = "org.eclipse.elk.edge.type"
)

// Stores gives access to the per-kind stores.
type Stores interface {
	Store(kind models.Kind) (*store.Store, error)
}

// Resolver is the GraphTypeResolver.
type Resolver struct {
	stores Stores
}

func New(stores Stores) *Resolver {
	return &Resolver{stores: stores}
}

// Resolve builds the runtime of a graph type. The graph type is read at stage
// (version selects an exact revision of the graph type itself). Referenced
// collections are read at the same stage; pinned reference versions and
// checksums apply to the published stage only.
func (r *Resolver) Resolve(ctx context.Context, graphTypeID string, stage models.Stage, version int) (*models.Runtime, error) {
	if stage == "" {
		stage = models.StagePublished
	}
	gtStore, err := r.stores.Store(models.KindGraphType)
	if err != nil {
		return nil, err
	}
	gt, err := gtStore.Get(ctx, graphTypeID, stage, version)
	if err != nil {
		return nil, err
	}

	var spec models.GraphTypeSpec
	if err := models.Convert(gt.Content.Document, &spec); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeMalformedContent, "graph type document cannot be decoded").
			WithMeta("kind", string(models.KindGraphType)).
			WithMeta("id", graphTypeID)
	}

	layout, err := r.reference(ctx, graphTypeID, stage, models.KindLayoutSet, spec.LayoutSetRef)
	if err != nil {
		return nil, err
	}
	links, err := r.reference(ctx, graphTypeID, stage, models.KindLinkSet, spec.LinkSetRef)
	if err != nil {
		return nil, err
	}

	policy, err := icons.ParsePolicy(spec.IconConflictPolicy)
	if err != nil {
		return nil, err
	}
	typeIconMap := make(map[string]string, len(gt.Content.Entries))
	for k, v := range gt.Content.Entries {
		if s, ok := v.(string); ok {
			typeIconMap[k] = s
		}
	}
	resolution, err := r.resolveIcons(ctx, graphTypeID, stage, policy, spec.IconSetRefs, typeIconMap)
	if err != nil {
		return nil, err
	}

	layoutParams := make(map[string]map[string]any, len(layout.Content.Entries))
	for k, v := range layout.Content.Entries {
		if m, ok := v.(map[string]any); ok {
			layoutParams[k] = models.CloneMap(m)
		}
	}
	linkParams := make(map[string]models.LinkType, len(links.Content.Entries))
	for k, v := range links.Content.Entries {
		var lt models.LinkType
		if err := models.Convert(v, &lt); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeMalformedContent, "link type cannot be decoded").
				WithMeta("kind", string(models.KindLinkSet)).
				WithMeta("id", links.ID).
				WithMeta("key", k)
		}
		linkParams[k] = lt
	}

	rt := &models.Runtime{
		GraphTypeID:               graphTypeID,
		Stage:                     stage,
		GraphTypeVersion:          gt.Version,
		GraphTypeChecksum:         gt.Checksum,
		LayoutSet:                 layout.SourceRef(),
		LinkSet:                   links.SourceRef(),
		IconSets:                  resolution.Sources,
		IconConflictPolicy:        string(resolution.Policy),
		NodeTypes:                 nonNil(spec.NodeTypes),
		LinkTypes:                 nonNil(spec.LinkTypes),
		TypeIcons:                 resolution.Entries,
		KeySources:                resolution.KeySources,
		LayoutParams:              layoutParams,
		LinkParams:                linkParams,
		EdgeTypeOverrides:         edgeOverrides(layoutParams[EdgeDefaultsKey], linkParams, spec.EdgeTypeOverrides),
		ElkSettings:               models.CloneMap(spec.ElkSettings),
		IconSetResolutionChecksum: resolution.Checksum,
	}
	if rt.ElkSettings == nil {
		rt.ElkSettings = map[string]any{}
	}

	rt.RuntimeChecksum, err = checksum.Sum(map[string]string{
		"graphType":         gt.Checksum,
		"layoutSet":         layout.Checksum,
		"linkSet":           links.Checksum,
		"iconSetResolution": resolution.Checksum,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "runtime checksum failed")
	}
	return rt, nil
}

// ResolveIcons merges icon sets read at stage under policy, outside of any
// graph type.
func (r *Resolver) ResolveIcons(ctx context.Context, stage models.Stage, policy icons.Policy, refs []models.Ref, typeIconMap map[string]string) (*icons.Resolution, error) {
	return r.resolveIcons(ctx, "", stage, policy, refs, typeIconMap)
}

func (r *Resolver) resolveIcons(ctx context.Context, owner string, stage models.Stage, policy icons.Policy, refs []models.Ref, typeIconMap map[string]string) (*icons.Resolution, error) {
	sources := make([]icons.Source, 0, len(refs))
	for _, ref := range refs {
		rev, err := r.reference(ctx, owner, stage, models.KindIconSet, ref)
		if err != nil {
			return nil, err
		}
		src, err := icons.SourceFromRevision(rev)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	res, err := icons.Resolve(policy, sources, typeIconMap)
	if err != nil {
		return nil, withOwner(err, owner)
	}
	return res, nil
}

// reference reads a referenced collection. owner is the referencing graph
// type, empty for ad hoc resolutions.
func (r *Resolver) reference(ctx context.Context, owner string, stage models.Stage, kind models.Kind, ref models.Ref) (*models.Revision, error) {
	s, err := r.stores.Store(kind)
	if err != nil {
		return nil, err
	}

	var rev *models.Revision
	if stage == models.StagePublished {
		rev, err = s.GetPublishedPinned(ctx, ref.ID, ref.Version, ref.Checksum)
	} else {
		rev, err = s.Get(ctx, ref.ID, models.StageDraft, 0)
	}
	if err == nil {
		return rev, nil
	}

	if appErr.IsCode(err, appErr.CodeNotFound) {
		e := appErr.Wrap(err, appErr.CodeUnresolvedReference, "unresolved "+string(kind)+" reference "+ref.ID).
			WithMeta("kind", string(kind)).
			WithMeta("id", ref.ID)
		if ref.Version > 0 {
			e.WithMeta("version", ref.Version)
		}
		return nil, withOwner(e, owner)
	}
	return nil, withOwner(err, owner)
}

func withOwner(err error, owner string) error {
	if ae, ok := appErr.As(err); ok && owner != "" {
		ae.WithMeta("graphTypeId", owner)
	}
	return err
}

// edgeOverrides computes the effective layout properties of every link type:
// the layout set's edge defaults, then the link type's elkEdgeType and
// elkProperties, then the graph type's own override for that type.
func edgeOverrides(defaults map[string]any, links map[string]models.LinkType, own map[string]map[string]any) map[string]map[string]any {
	types := make([]string, 0, len(links)+len(own))
	for k := range links {
		types = append(types, k)
	}
	for k := range own {
		if _, ok := links[k]; !ok {
			types = append(types, k)
		}
	}
	sort.Strings(types)

	out := make(map[string]map[string]any, len(types))
	for _, t := range types {
		props := models.CloneMap(defaults)
		if props == nil {
			props = map[string]any{}
		}
		if lt, ok := links[t]; ok {
			if lt.ElkEdgeType != "" {
				props[ElkEdgeTypeProperty] = lt.ElkEdgeType
			}
			deepMerge(props, lt.ElkProperties)
		}
		deepMerge(props, own[t])
		out[t] = props
	}
	return out
}

// deepMerge copies src into dst. Nested objects merge key by key; any other
// value replaces what dst holds.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		sv, srcObj := v.(map[string]any)
		dv, dstObj := dst[k].(map[string]any)
		if srcObj && dstObj {
			merged := models.CloneMap(dv)
			deepMerge(merged, sv)
			dst[k] = merged
			continue
		}
		dst[k] = models.CloneValue(v)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
