package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/registry"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// DefaultID is the id of every built-in collection.
const DefaultID = "default"

// DefaultCSSBody is the body of the built-in theme.
const DefaultCSSBody = `svg { font-family: "Inter", "Helvetica Neue", Arial, sans-serif; }
.node rect { fill: var(--node-fill, #ffffff); stroke: var(--node-stroke, #475569); stroke-width: 1; }
.node text { fill: var(--node-text, #0f172a); font-size: 12px; }
.edge path { stroke: var(--edge-stroke, #64748b); fill: none; }
.edge text { fill: var(--edge-text, #334155); font-size: 10px; }
`

// Seeder creates the built-in collections.
type Seeder struct {
	reg *registry.Registry
}

func NewSeeder(reg *registry.Registry) *Seeder {
	return &Seeder{reg: reg}
}

type seed struct {
	kind    models.Kind
	content models.Content
}

// defaultSeeds are created in dependency order so the default graph type
// resolves as soon as it is published.
func defaultSeeds() []seed {
	thin := map[string]any{"org.eclipse.elk.edge.thickness": 1}
	link := func(label, edgeType string, props map[string]any) map[string]any {
		if props == nil {
			props = map[string]any{}
		}
		return map[string]any{"label": label, "elkEdgeType": edgeType, "elkProperties": props}
	}
	return []seed{
		{models.KindLayoutSet, models.Content{
			Name: "Default Layout Set",
			Entries: map[string]any{
				"default":       map[string]any{"width": 120, "height": 48},
				"edge-defaults": map[string]any{"org.eclipse.elk.edge.thickness": 1},
			},
		}},
		{models.KindLinkSet, models.Content{
			Name: "Default Link Set",
			Entries: map[string]any{
				"directed":       link("Directed", "DIRECTED", nil),
				"undirected":     link("Undirected", "UNDIRECTED", nil),
				"association":    link("Association", "UNDIRECTED", thin),
				"dependency":     link("Dependency", "DIRECTED", thin),
				"generalization": link("Generalization", "DIRECTED", thin),
				"none":           link("None", "UNDIRECTED", thin),
			},
		}},
		{models.KindIconSet, models.Content{
			Name: "Default Node Type Iconset",
			Entries: map[string]any{
				"service":  "mdi:cog",
				"database": "mdi:database",
				"queue":    "mdi:tray-full",
				"user":     "mdi:account",
				"server":   "mdi:server",
				"router":   "mdi:router",
				"storage":  "mdi:harddisk",
			},
		}},
		{models.KindTheme, models.Content{
			Name:     "Default Render Theme",
			Entries:  map[string]any{},
			Document: map[string]any{"cssBody": DefaultCSSBody},
		}},
		{models.KindGraphType, models.Content{
			Name:    "Default Graph Type",
			Entries: map[string]any{},
			Document: map[string]any{
				"layoutSetRef":       map[string]any{"id": DefaultID, "version": 1},
				"linkSetRef":         map[string]any{"id": DefaultID, "version": 1},
				"iconSetRefs":        []any{map[string]any{"id": DefaultID, "version": 1}},
				"iconConflictPolicy": "strict",
			},
		}},
	}
}

// EnsureDefaults creates and publishes every missing built-in collection.
// Existing collections are left alone except that an unpublished one gets its
// first version. It returns the kinds that changed.
func (s *Seeder) EnsureDefaults(ctx context.Context) ([]models.Kind, error) {
	var changed []models.Kind
	for _, sd := range defaultSeeds() {
		st, err := s.reg.Store(sd.kind)
		if err != nil {
			return changed, err
		}

		e, err := st.GetDraft(ctx, DefaultID)
		switch {
		case appErr.IsCode(err, appErr.CodeNotFound):
			if _, err := st.Create(ctx, DefaultID, sd.content); err != nil {
				return changed, err
			}
		case err != nil:
			return changed, err
		case e.LastPublishedVersion() > 0:
			continue
		}

		if _, err := st.Publish(ctx, DefaultID); err != nil {
			return changed, err
		}
		changed = append(changed, sd.kind)
		logger.L().Info("default collection seeded", zap.String("kind", string(sd.kind)), zap.String("id", DefaultID))
	}
	return changed, nil
}
