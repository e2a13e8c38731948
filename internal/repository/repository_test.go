package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/pkg/database"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

func TestMain(m *testing.M) {
	_, _ = logger.Init("info", "json")
	os.Exit(m.Run())
}

func newSQLite(t *testing.T) *GormRepository {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "graphapi.db"), false)
	require.NoError(t, err)
	repo := NewGormRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// newPostgres starts a throwaway postgres container. The test is skipped
// when no container runtime is reachable.
func newPostgres(t *testing.T) *GormRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("graphapi"),
		tcpostgres.WithUsername("graphapi"),
		tcpostgres.WithPassword("graphapi"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.OpenPostgres(ctx, dsn, false)
	require.NoError(t, err)

	repo := NewGormRepository(db)
	require.NoError(t, repo.Migrate(ctx))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleEntity() *models.Entity {
	return &models.Entity{
		Kind:         models.KindLinkSet,
		ID:           "default",
		DraftVersion: 1,
		Checksum:     "c1",
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Content: models.Content{
			Name: "Default Link Set",
			Entries: map[string]any{
				"dependency": map[string]any{"label": "Dependency", "elkProperties": map[string]any{"weight": json.Number("2")}},
			},
		},
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	e := sampleEntity()
	require.NoError(t, repo.Insert(ctx, e))

	err := repo.Insert(ctx, e)
	require.True(t, appErr.IsCode(err, appErr.CodeAlreadyExists))

	e.DraftVersion = 2
	e.Checksum = "c2"
	e.Content.Entries["none"] = map[string]any{"label": "None"}
	require.NoError(t, repo.SaveDraft(ctx, e))

	snap := models.Snapshot{
		Version:     1,
		Checksum:    "c2",
		Content:     e.Content.Clone(),
		PublishedAt: time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC),
	}
	e.DraftVersion = 3
	require.NoError(t, repo.Publish(ctx, e, snap))

	err = repo.Publish(ctx, e, snap)
	require.True(t, appErr.IsCode(err, appErr.CodeConflict))

	missing := sampleEntity()
	missing.ID = "ghost"
	require.True(t, appErr.IsCode(repo.SaveDraft(ctx, missing), appErr.CodeNotFound))

	loaded, err := repo.LoadAll(ctx, models.KindLinkSet)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	require.Equal(t, 3, got.DraftVersion)
	require.Equal(t, "c2", got.Checksum)
	require.Equal(t, "Default Link Set", got.Content.Name)
	require.Len(t, got.Content.Entries, 2)
	require.Len(t, got.Published, 1)
	require.Equal(t, 1, got.Published[0].Version)
	require.True(t, snap.PublishedAt.Equal(got.Published[0].PublishedAt))

	dep := got.Content.Entries["dependency"].(map[string]any)
	require.Equal(t, json.Number("2"), dep["elkProperties"].(map[string]any)["weight"])

	other, err := repo.LoadAll(ctx, models.KindTheme)
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, repo.Ping(ctx))
}

func TestGormRepositorySQLite(t *testing.T) {
	exerciseRepository(t, newSQLite(t))
}

func TestGormRepositoryPostgres(t *testing.T) {
	repo := newPostgres(t)
	exerciseRepository(t, repo)
	exerciseDocumentRoundTrip(t, repo)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestGormRepositorySQLiteDocumentRoundTrip(t *testing.T) {
	exerciseDocumentRoundTrip(t, newSQLite(t))
}

func TestGormRepositoryMigrateIsIdempotent(t *testing.T) {
	repo := newSQLite(t)
	require.NoError(t, repo.Migrate(context.Background()))
	exerciseRepository(t, repo)
}

func exerciseDocumentRoundTrip(t *testing.T, repo Repository) {
	ctx := context.Background()

	e := &models.Entity{
		Kind:         models.KindTheme,
		ID:           "midnight",
		DraftVersion: 1,
		Checksum:     "t1",
		UpdatedAt:    time.Now().UTC(),
		Content: models.Content{
			Entries:  map[string]any{},
			Document: map[string]any{"cssBody": "svg { fill: none; }"},
		},
	}
	require.NoError(t, repo.Insert(ctx, e))

	loaded, err := repo.LoadAll(ctx, models.KindTheme)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "svg { fill: none; }", loaded[0].Content.Document["cssBody"])
	require.NotNil(t, loaded[0].Content.Entries)
}
