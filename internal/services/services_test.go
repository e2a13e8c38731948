package services

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/registry"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/internal/resolver"
	"github.com/graphrapids/graphapi/internal/store"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

func TestMain(m *testing.M) {
	_, _ = logger.Init("info", "json")
	os.Exit(m.Run())
}

func openRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(repository.NewMemoryRepository(), store.Options{})
	require.NoError(t, reg.Open(context.Background()))
	return reg
}

func seeded(t *testing.T) (*registry.Registry, ConfigService) {
	t.Helper()
	reg := openRegistry(t)
	_, err := NewSeeder(reg).EnsureDefaults(context.Background())
	require.NoError(t, err)
	return reg, NewConfigService(reg, resolver.New(reg))
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := openRegistry(t)
	seeder := NewSeeder(reg)

	changed, err := seeder.EnsureDefaults(ctx)
	require.NoError(t, err)
	require.Len(t, changed, len(models.AllKinds()))

	changed, err = seeder.EnsureDefaults(ctx)
	require.NoError(t, err)
	require.Empty(t, changed)

	for _, kind := range models.AllKinds() {
		e, err := reg.MustStore(kind).GetDraft(ctx, DefaultID)
		require.NoError(t, err)
		require.Equal(t, 1, e.LastPublishedVersion(), kind)
	}
}

func TestEnsureDefaultsPublishesExistingDraft(t *testing.T) {
	ctx := context.Background()
	reg := openRegistry(t)
	_, err := reg.MustStore(models.KindIconSet).Create(ctx, DefaultID, models.Content{Entries: map[string]any{"router": "mdi:router"}})
	require.NoError(t, err)

	_, err = NewSeeder(reg).EnsureDefaults(ctx)
	require.NoError(t, err)

	rev, err := reg.MustStore(models.KindIconSet).GetPublished(ctx, DefaultID, 0)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"router": "mdi:router"}, rev.Content.Entries)
}

func TestDefaultGraphTypeResolves(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()

	rt, err := svc.Runtime(ctx, DefaultID, RevisionQuery{})
	require.NoError(t, err)
	require.Equal(t, models.StagePublished, rt.Stage)
	require.Contains(t, rt.LinkParams, "directed")
	require.Equal(t, "mdi:database", rt.TypeIcons["database"])

	cat, err := svc.Catalog(ctx, DefaultID, RevisionQuery{})
	require.NoError(t, err)
	require.True(t, cat.HasNodeType("router"))
	require.True(t, cat.HasLinkType("generalization"))
	require.False(t, cat.HasNodeType(resolver.DefaultLayoutKey))
}

func TestConfigLifecycle(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, models.KindIconSet, &CreateInput{ID: "cloud", Name: "Cloud", Entries: map[string]any{"Bucket": "mdi:bucket"}})
	require.NoError(t, err)
	require.Equal(t, 1, e.DraftVersion)
	require.Contains(t, e.Content.Entries, "bucket")

	e, err = svc.UpsertEntry(ctx, models.KindIconSet, "cloud", "vm", "mdi:server")
	require.NoError(t, err)
	require.Equal(t, 2, e.DraftVersion)

	_, err = svc.DeleteEntry(ctx, models.KindIconSet, "cloud", "nope")
	require.True(t, appErr.IsCode(err, appErr.CodeEntryNotFound))

	_, err = svc.Revision(ctx, models.KindIconSet, "cloud", RevisionQuery{})
	require.True(t, appErr.IsCode(err, appErr.CodeNoPublishedVersion))

	e, err = svc.Publish(ctx, models.KindIconSet, "cloud")
	require.NoError(t, err)
	require.Equal(t, 1, e.LastPublishedVersion())

	rev, err := svc.Revision(ctx, models.KindIconSet, "cloud", RevisionQuery{Checksum: e.Checksum})
	require.NoError(t, err)
	require.Equal(t, 1, rev.Version)

	_, err = svc.Revision(ctx, models.KindIconSet, "cloud", RevisionQuery{Checksum: "nope"})
	require.True(t, appErr.IsCode(err, appErr.CodeChecksumMismatch))

	list, err := svc.List(ctx, models.KindIconSet)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = svc.List(ctx, "widget")
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestReplaceDraftKeepsPublished(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()

	_, err := svc.Replace(ctx, models.KindLinkSet, DefaultID, &ReplaceInput{Entries: map[string]any{
		"flow": map[string]any{"label": "Flow", "elkEdgeType": "DIRECTED"},
	}})
	require.NoError(t, err)

	draft, err := svc.Revision(ctx, models.KindLinkSet, DefaultID, RevisionQuery{Stage: models.StageDraft})
	require.NoError(t, err)
	require.Len(t, draft.Content.Entries, 1)

	pub, err := svc.Revision(ctx, models.KindLinkSet, DefaultID, RevisionQuery{})
	require.NoError(t, err)
	require.Len(t, pub.Content.Entries, 6)
}

func TestBundles(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()

	b, err := svc.Bundle(ctx, models.KindGraphType, DefaultID, RevisionQuery{})
	require.NoError(t, err)
	require.NotNil(t, b.Runtime)
	require.NotNil(t, b.Catalog)
	require.Equal(t, b.Runtime.RuntimeChecksum, b.Catalog.RuntimeChecksum)
	require.Nil(t, b.Theme)

	b, err = svc.Bundle(ctx, models.KindTheme, DefaultID, RevisionQuery{})
	require.NoError(t, err)
	require.NotNil(t, b.Theme)
	require.Contains(t, b.Theme.RenderCSS, "font-family")

	b, err = svc.Bundle(ctx, models.KindIconSet, DefaultID, RevisionQuery{})
	require.NoError(t, err)
	require.Nil(t, b.Runtime)
	require.Nil(t, b.Theme)
}

func TestResolveIcons(t *testing.T) {
	_, svc := seeded(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, models.KindIconSet, &CreateInput{ID: "alt", Entries: map[string]any{"router": "mdi:router-network"}})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, models.KindIconSet, "alt")
	require.NoError(t, err)

	refs := []models.Ref{{ID: DefaultID}, {ID: "alt"}}
	_, err = svc.ResolveIcons(ctx, &ResolveIconsInput{IconSetRefs: refs})
	require.True(t, appErr.IsCode(err, appErr.CodeConflictingIconDefinition))

	res, err := svc.ResolveIcons(ctx, &ResolveIconsInput{IconSetRefs: refs, Policy: "last-wins"})
	require.NoError(t, err)
	require.Equal(t, "mdi:router-network", res.Entries["router"])

	res, err = svc.ResolveIcons(ctx, &ResolveIconsInput{IconSetRefs: refs, TypeIconMap: map[string]string{"Router": "mdi:access-point"}})
	require.NoError(t, err)
	require.Equal(t, "mdi:access-point", res.Entries["router"])

	_, err = svc.ResolveIcons(ctx, &ResolveIconsInput{IconSetRefs: refs, Policy: "coin-flip"})
	require.True(t, appErr.IsCode(err, appErr.CodeMalformedContent))

	_, err = svc.ResolveIcons(ctx, &ResolveIconsInput{})
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = svc.ResolveIcons(ctx, &ResolveIconsInput{IconSetRefs: []models.Ref{{ID: "ghost"}}})
	require.True(t, appErr.IsCode(err, appErr.CodeUnresolvedReference))
}

func TestImportLegacyTheme(t *testing.T) {
	reg, svc := seeded(t)
	ctx := context.Background()
	seeder := NewSeeder(reg)

	res, err := seeder.ImportLegacyTheme(ctx, "legacy", ".node { fill: red; }")
	require.NoError(t, err)
	require.Equal(t, ImportCreated, res.Status)
	require.Equal(t, 1, res.Entity.LastPublishedVersion())

	res, err = seeder.ImportLegacyTheme(ctx, "legacy", ".node { fill: blue; }")
	require.NoError(t, err)
	require.Equal(t, ImportSkipped, res.Status)

	doc, err := svc.Theme(ctx, "legacy", RevisionQuery{})
	require.NoError(t, err)
	require.Contains(t, doc.RenderCSS, "fill: red")

	_, err = svc.Create(ctx, models.KindTheme, &CreateInput{ID: "empty", Entries: map[string]any{}})
	require.NoError(t, err)
	res, err = seeder.ImportLegacyTheme(ctx, "empty", "svg { color: black; }")
	require.NoError(t, err)
	require.Equal(t, ImportFilled, res.Status)

	_, err = seeder.ImportLegacyTheme(ctx, "x", "   ")
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}
