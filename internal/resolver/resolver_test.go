package resolver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/registry"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/internal/store"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

type fixture struct {
	ctx context.Context
	reg *registry.Registry
	res *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), reg: registry.New(repository.NewMemoryRepository(), store.Options{})}
	f.res = New(f.reg)

	f.create(t, models.KindLayoutSet, "base", map[string]any{
		"edge-defaults": map[string]any{
			"org.eclipse.elk.edge.thickness": 1,
			"routing":                        map[string]any{"mode": "ortho", "spacing": 10},
		},
		"router": map[string]any{"width": 80},
	}, nil)
	f.create(t, models.KindLinkSet, "links", map[string]any{
		"directed": map[string]any{
			"label":         "Directed",
			"elkEdgeType":   "directed",
			"elkProperties": map[string]any{"routing": map[string]any{"spacing": 20}},
		},
		"association": map[string]any{"label": "Association"},
	}, nil)
	f.create(t, models.KindIconSet, "aws", map[string]any{"router": "mdi:router", "db": "mdi:database"}, nil)
	f.create(t, models.KindIconSet, "gcp", map[string]any{"router": "mdi:router-network", "queue": "mdi:tray"}, nil)
	f.create(t, models.KindGraphType, "infra", map[string]any{"service": "mdi:cog"}, graphDoc("last-wins", map[string]any{"id": "aws"}, map[string]any{"id": "gcp"}))
	return f
}

func graphDoc(policy string, iconRefs ...any) map[string]any {
	return map[string]any{
		"layoutSetRef":       map[string]any{"id": "base"},
		"linkSetRef":         map[string]any{"id": "links"},
		"iconSetRefs":        iconRefs,
		"iconConflictPolicy": policy,
		"nodeTypes":          []any{"service", "router"},
		"edgeTypeOverrides": map[string]any{
			"directed": map[string]any{"routing": map[string]any{"mode": "spline"}},
		},
		"elkSettings": map[string]any{"org.eclipse.elk.direction": "RIGHT"},
	}
}

func (f *fixture) create(t *testing.T, kind models.Kind, id string, entries, doc map[string]any) {
	t.Helper()
	_, err := f.reg.MustStore(kind).Create(f.ctx, id, models.Content{Entries: entries, Document: doc})
	require.NoError(t, err)
}

func (f *fixture) publish(t *testing.T, kind models.Kind, id string) {
	t.Helper()
	_, err := f.reg.MustStore(kind).Publish(f.ctx, id)
	require.NoError(t, err)
}

func (f *fixture) publishAll(t *testing.T) {
	f.publish(t, models.KindLayoutSet, "base")
	f.publish(t, models.KindLinkSet, "links")
	f.publish(t, models.KindIconSet, "aws")
	f.publish(t, models.KindIconSet, "gcp")
	f.publish(t, models.KindGraphType, "infra")
}

func TestResolveDraft(t *testing.T) {
	f := newFixture(t)

	rt, err := f.res.Resolve(f.ctx, "infra", models.StageDraft, 0)
	require.NoError(t, err)

	require.Equal(t, models.StageDraft, rt.Stage)
	require.Equal(t, 1, rt.GraphTypeVersion)
	require.Equal(t, "last-wins", rt.IconConflictPolicy)
	require.Equal(t, map[string]string{
		"router":  "mdi:router-network",
		"db":      "mdi:database",
		"queue":   "mdi:tray",
		"service": "mdi:cog",
	}, rt.TypeIcons)
	require.Equal(t, models.KeySource{SelectedFrom: "gcp", Candidates: []string{"aws", "gcp"}}, rt.KeySources["router"])
	require.Equal(t, models.TypeIconMapSource, rt.KeySources["service"].SelectedFrom)
	require.Equal(t, []string{"router", "service"}, rt.NodeTypes)
	require.Equal(t, "RIGHT", rt.ElkSettings["org.eclipse.elk.direction"])
	require.Equal(t, []string{"aws", "gcp"}, []string{rt.IconSets[0].ID, rt.IconSets[1].ID})
	require.Len(t, rt.RuntimeChecksum, 64)
	require.Len(t, rt.IconSetResolutionChecksum, 64)
	require.Equal(t, "DIRECTED", rt.LinkParams["directed"].ElkEdgeType)
}

func TestResolveEdgeOverrides(t *testing.T) {
	f := newFixture(t)

	rt, err := f.res.Resolve(f.ctx, "infra", models.StageDraft, 0)
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"org.eclipse.elk.edge.thickness": json.Number("1"),
		ElkEdgeTypeProperty:              "DIRECTED",
		"routing":                        map[string]any{"mode": "spline", "spacing": json.Number("20")},
	}, rt.EdgeTypeOverrides["directed"])
	require.Equal(t, map[string]any{
		"org.eclipse.elk.edge.thickness": json.Number("1"),
		"routing":                        map[string]any{"mode": "ortho", "spacing": json.Number("10")},
	}, rt.EdgeTypeOverrides["association"])

	// Overrides never leak back into the layout defaults.
	require.Equal(t, "ortho", rt.LayoutParams[EdgeDefaultsKey]["routing"].(map[string]any)["mode"])
}

func TestResolvePublishedRequiresPublishedReferences(t *testing.T) {
	f := newFixture(t)
	f.publish(t, models.KindGraphType, "infra")

	_, err := f.res.Resolve(f.ctx, "infra", models.StagePublished, 0)
	require.True(t, appErr.IsCode(err, appErr.CodeNoPublishedVersion))
	ae, _ := appErr.As(err)
	require.Equal(t, "infra", ae.Meta["graphTypeId"])
}

func TestResolveUnpublishedGraphType(t *testing.T) {
	f := newFixture(t)
	_, err := f.res.Resolve(f.ctx, "infra", models.StagePublished, 0)
	require.True(t, appErr.IsCode(err, appErr.CodeNoPublishedVersion))

	_, err = f.res.Resolve(f.ctx, "nope", models.StageDraft, 0)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestPublishedRuntimeIsStableAcrossDraftEdits(t *testing.T) {
	f := newFixture(t)
	f.publishAll(t)

	pub1, err := f.res.Resolve(f.ctx, "infra", models.StagePublished, 0)
	require.NoError(t, err)
	draft1, err := f.res.Resolve(f.ctx, "infra", models.StageDraft, 0)
	require.NoError(t, err)

	_, err = f.reg.MustStore(models.KindIconSet).UpsertEntry(f.ctx, "aws", "cache", "mdi:memory")
	require.NoError(t, err)

	pub2, err := f.res.Resolve(f.ctx, "infra", models.StagePublished, 0)
	require.NoError(t, err)
	require.Equal(t, pub1.RuntimeChecksum, pub2.RuntimeChecksum)

	draft2, err := f.res.Resolve(f.ctx, "infra", models.StageDraft, 0)
	require.NoError(t, err)
	require.NotEqual(t, draft1.RuntimeChecksum, draft2.RuntimeChecksum)
	require.Equal(t, "mdi:memory", draft2.TypeIcons["cache"])
}

func TestDraftRuntimeChecksumIgnoresVersionChurn(t *testing.T) {
	f := newFixture(t)

	before, err := f.res.Resolve(f.ctx, "infra", models.StageDraft, 0)
	require.NoError(t, err)

	icons := f.reg.MustStore(models.KindIconSet)
	_, err = icons.UpsertEntry(f.ctx, "aws", "tmp", "mdi:timer")
	require.NoError(t, err)
	_, err = icons.DeleteEntry(f.ctx, "aws", "tmp")
	require.NoError(t, err)
	f.publish(t, models.KindIconSet, "gcp")

	after, err := f.res.Resolve(f.ctx, "infra", models.StageDraft, 0)
	require.NoError(t, err)
	require.Greater(t, after.IconSets[0].Version, before.IconSets[0].Version)
	require.Equal(t, before.IconSetResolutionChecksum, after.IconSetResolutionChecksum)
	require.Equal(t, before.RuntimeChecksum, after.RuntimeChecksum)
}

func TestResolveUnknownReference(t *testing.T) {
	f := newFixture(t)
	f.create(t, models.KindGraphType, "broken", nil, graphDoc("first-wins", map[string]any{"id": "ghost"}))

	_, err := f.res.Resolve(f.ctx, "broken", models.StageDraft, 0)
	require.True(t, appErr.IsCode(err, appErr.CodeUnresolvedReference))
	ae, _ := appErr.As(err)
	require.Equal(t, "ghost", ae.Meta["id"])
	require.Equal(t, string(models.KindIconSet), ae.Meta["kind"])
	require.Equal(t, "broken", ae.Meta["graphTypeId"])
}

func TestResolveStrictConflict(t *testing.T) {
	f := newFixture(t)
	f.create(t, models.KindGraphType, "strict", nil, graphDoc("strict", map[string]any{"id": "aws"}, map[string]any{"id": "gcp"}))

	_, err := f.res.Resolve(f.ctx, "strict", models.StageDraft, 0)
	require.True(t, appErr.IsCode(err, appErr.CodeConflictingIconDefinition))

	// An explicit icon for the contested type settles the conflict.
	_, err = f.reg.MustStore(models.KindGraphType).UpsertEntry(f.ctx, "strict", "router", "mdi:lan")
	require.NoError(t, err)
	rt, err := f.res.Resolve(f.ctx, "strict", models.StageDraft, 0)
	require.NoError(t, err)
	require.Equal(t, "mdi:lan", rt.TypeIcons["router"])
}

func TestResolvePinnedReference(t *testing.T) {
	f := newFixture(t)
	f.publishAll(t)

	icons := f.reg.MustStore(models.KindIconSet)
	_, err := icons.UpsertEntry(f.ctx, "aws", "db", "mdi:database-outline")
	require.NoError(t, err)
	_, err = icons.Publish(f.ctx, "aws")
	require.NoError(t, err)

	v1, err := icons.GetPublished(f.ctx, "aws", 1)
	require.NoError(t, err)

	f.create(t, models.KindGraphType, "pinned", nil, graphDoc("first-wins",
		map[string]any{"id": "aws", "version": 1, "checksum": v1.Checksum},
	))
	f.publish(t, models.KindGraphType, "pinned")

	rt, err := f.res.Resolve(f.ctx, "pinned", models.StagePublished, 0)
	require.NoError(t, err)
	require.Equal(t, "mdi:database", rt.TypeIcons["db"])
	require.Equal(t, 1, rt.IconSets[0].Version)

	// Drafts ignore pins.
	rt, err = f.res.Resolve(f.ctx, "pinned", models.StageDraft, 0)
	require.NoError(t, err)
	require.Equal(t, "mdi:database-outline", rt.TypeIcons["db"])
}

func TestResolvePinnedChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	f.publishAll(t)

	f.create(t, models.KindGraphType, "pinned", nil, graphDoc("first-wins",
		map[string]any{"id": "aws", "version": 1, "checksum": "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"},
	))
	f.publish(t, models.KindGraphType, "pinned")

	_, err := f.res.Resolve(f.ctx, "pinned", models.StagePublished, 0)
	require.True(t, appErr.IsCode(err, appErr.CodeChecksumMismatch))
}

func TestResolveExplicitGraphTypeVersion(t *testing.T) {
	f := newFixture(t)
	f.publishAll(t)

	gts := f.reg.MustStore(models.KindGraphType)
	_, err := gts.UpsertEntry(f.ctx, "infra", "service", "mdi:server")
	require.NoError(t, err)
	_, err = gts.Publish(f.ctx, "infra")
	require.NoError(t, err)

	v1, err := f.res.Resolve(f.ctx, "infra", models.StagePublished, 1)
	require.NoError(t, err)
	require.Equal(t, "mdi:cog", v1.TypeIcons["service"])

	latest, err := f.res.Resolve(f.ctx, "infra", models.StagePublished, 0)
	require.NoError(t, err)
	require.Equal(t, 2, latest.GraphTypeVersion)
	require.Equal(t, "mdi:server", latest.TypeIcons["service"])
	require.NotEqual(t, v1.RuntimeChecksum, latest.RuntimeChecksum)
}
