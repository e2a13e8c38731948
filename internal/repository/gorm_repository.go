package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/graphrapids/graphapi/internal/models"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

var draftColumns = []string{"name", "draft_version", "checksum", "entries", "document", "updated_at"}

// GormRepository stores collections through gorm. It backs both the
// postgres and the embedded sqlite drivers.
type GormRepository struct {
	db        *gorm.DB
	heads     BaseRepository[models.CollectionRow]
	published BaseRepository[models.PublishedRow]
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{
		db:        db,
		heads:     NewBaseRepository[models.CollectionRow](db),
		published: NewBaseRepository[models.PublishedRow](db),
	}
}

var _ Repository = (*GormRepository)(nil)

// Migrate creates or updates both tables.
func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.CollectionRow{}, &models.PublishedRow{}); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "auto migrate failed")
	}
	return nil
}

func (r *GormRepository) LoadAll(ctx context.Context, kind models.Kind) ([]*models.Entity, error) {
	var heads []models.CollectionRow
	if err := r.heads.Find(ctx, &heads, "id", "kind = ?", string(kind)); err != nil {
		return nil, err
	}
	var snaps []models.PublishedRow
	if err := r.published.Find(ctx, &snaps, "collection_id, version", "kind = ?", string(kind)); err != nil {
		return nil, err
	}

	out := make([]*models.Entity, 0, len(heads))
	byID := make(map[string]*models.Entity, len(heads))
	for _, h := range heads {
		content, err := decodeContent(h.Name, h.Entries, h.Document)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeInternal, "decode collection failed").WithMeta("id", h.ID)
		}
		e := &models.Entity{
			Kind:         kind,
			ID:           h.ID,
			DraftVersion: h.DraftVersion,
			Checksum:     h.Checksum,
			UpdatedAt:    utc(h.UpdatedAt),
			Content:      content,
		}
		out = append(out, e)
		byID[h.ID] = e
	}
	for _, s := range snaps {
		e, ok := byID[s.CollectionID]
		if !ok {
			continue
		}
		content, err := decodeContent(s.Name, s.Entries, s.Document)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeInternal, "decode published version failed").WithMeta("id", s.CollectionID)
		}
		e.Published = append(e.Published, models.Snapshot{
			Version:     s.Version,
			Checksum:    s.Checksum,
			Content:     content,
			PublishedAt: utc(s.PublishedAt),
		})
	}
	return out, nil
}

func (r *GormRepository) Insert(ctx context.Context, e *models.Entity) error {
	row, err := headRow(e)
	if err != nil {
		return err
	}
	row.CreatedAt = row.UpdatedAt
	if err := r.heads.Create(ctx, row); err != nil {
		if appErr.IsCode(err, appErr.CodeAlreadyExists) {
			return appErr.Newf(appErr.CodeAlreadyExists, "%s %q already exists", e.Kind, e.ID)
		}
		return err
	}
	return nil
}

func (r *GormRepository) SaveDraft(ctx context.Context, e *models.Entity) error {
	return r.saveDraft(ctx, r.heads, e)
}

func (r *GormRepository) saveDraft(ctx context.Context, heads BaseRepository[models.CollectionRow], e *models.Entity) error {
	row, err := headRow(e)
	if err != nil {
		return err
	}
	if err := heads.Update(ctx, row, draftColumns, "kind = ? AND id = ?", string(e.Kind), e.ID); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.Newf(appErr.CodeNotFound, "%s %q not found", e.Kind, e.ID)
		}
		return err
	}
	return nil
}

// Publish updates the head and appends the snapshot in one transaction.
func (r *GormRepository) Publish(ctx context.Context, e *models.Entity, snap models.Snapshot) error {
	row, err := publishedRow(e, snap)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.saveDraft(ctx, NewBaseRepository[models.CollectionRow](tx), e); err != nil {
			return err
		}
		if err := NewBaseRepository[models.PublishedRow](tx).Create(ctx, row); err != nil {
			if appErr.IsCode(err, appErr.CodeAlreadyExists) {
				return appErr.Newf(appErr.CodeConflict, "%s %q version %d already published", e.Kind, e.ID, snap.Version)
			}
			return err
		}
		return nil
	})
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "gorm db handle failed")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "database unavailable")
	}
	return nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func headRow(e *models.Entity) (*models.CollectionRow, error) {
	entries, document, err := encodeContent(e.Content)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "encode collection failed")
	}
	return &models.CollectionRow{
		Kind:         string(e.Kind),
		ID:           e.ID,
		Name:         e.Content.Name,
		DraftVersion: e.DraftVersion,
		Checksum:     e.Checksum,
		Entries:      datatypes.JSON(entries),
		Document:     jsonOrNil(document),
		UpdatedAt:    utc(e.UpdatedAt),
	}, nil
}

func publishedRow(e *models.Entity, snap models.Snapshot) (*models.PublishedRow, error) {
	entries, document, err := encodeContent(snap.Content)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "encode snapshot failed")
	}
	return &models.PublishedRow{
		Kind:         string(e.Kind),
		CollectionID: e.ID,
		Version:      snap.Version,
		Checksum:     snap.Checksum,
		Name:         snap.Content.Name,
		Entries:      datatypes.JSON(entries),
		Document:     jsonOrNil(document),
		PublishedAt:  utc(snap.PublishedAt),
	}, nil
}

func jsonOrNil(b []byte) datatypes.JSON {
	if b == nil {
		return nil
	}
	return datatypes.JSON(b)
}
