package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/catalog"
	"github.com/graphrapids/graphapi/internal/icons"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/registry"
	"github.com/graphrapids/graphapi/internal/resolver"
	"github.com/graphrapids/graphapi/internal/store"
	"github.com/graphrapids/graphapi/internal/theme"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// ConfigService exposes the collection lifecycle of every kind plus the
// derived views (runtime, catalog, theme css, bundles).
type ConfigService interface {
	List(ctx context.Context, kind models.Kind) ([]models.Summary, error)
	Create(ctx context.Context, kind models.Kind, input *CreateInput) (*models.Entity, error)
	Get(ctx context.Context, kind models.Kind, id string) (*models.Entity, error)
	Revision(ctx context.Context, kind models.Kind, id string, q RevisionQuery) (*models.Revision, error)
	Replace(ctx context.Context, kind models.Kind, id string, input *ReplaceInput) (*models.Entity, error)
	UpsertEntry(ctx context.Context, kind models.Kind, id, key string, value any) (*models.Entity, error)
	DeleteEntry(ctx context.Context, kind models.Kind, id, key string) (*models.Entity, error)
	Publish(ctx context.Context, kind models.Kind, id string) (*models.Entity, error)

	Bundle(ctx context.Context, kind models.Kind, id string, q RevisionQuery) (*Bundle, error)
	Runtime(ctx context.Context, graphTypeID string, q RevisionQuery) (*models.Runtime, error)
	Catalog(ctx context.Context, graphTypeID string, q RevisionQuery) (*catalog.Catalog, error)
	Theme(ctx context.Context, themeID string, q RevisionQuery) (*theme.Document, error)
	ResolveIcons(ctx context.Context, input *ResolveIconsInput) (*icons.Resolution, error)
}

type CreateInput struct {
	ID       string
	Name     string
	Entries  map[string]any
	Document map[string]any
}

type ReplaceInput struct {
	Name     string
	Entries  map[string]any
	Document map[string]any
}

// RevisionQuery selects a revision. An empty stage means published; version
// 0 means the latest. Checksum pins a published revision.
type RevisionQuery struct {
	Stage    models.Stage
	Version  int
	Checksum string
}

func (q RevisionQuery) stage() models.Stage {
	if q.Stage == "" {
		return models.StagePublished
	}
	return q.Stage
}

type ResolveIconsInput struct {
	Stage       models.Stage
	Policy      string
	IconSetRefs []models.Ref
	TypeIconMap map[string]string
}

// Bundle is a revision plus everything derived from it.
type Bundle struct {
	Revision *models.Revision `json:"revision"`
	Theme    *theme.Document  `json:"theme,omitempty"`
	Runtime  *models.Runtime  `json:"runtime,omitempty"`
	Catalog  *catalog.Catalog `json:"catalog,omitempty"`
}

type configService struct {
	reg      *registry.Registry
	resolver *resolver.Resolver
}

func NewConfigService(reg *registry.Registry, res *resolver.Resolver) ConfigService {
	return &configService{reg: reg, resolver: res}
}

var _ ConfigService = (*configService)(nil)

func (s *configService) List(ctx context.Context, kind models.Kind) ([]models.Summary, error) {
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	return st.List(ctx), nil
}

func (s *configService) Create(ctx context.Context, kind models.Kind, input *CreateInput) (*models.Entity, error) {
	logger.L().Info("create collection called", zap.String("kind", string(kind)), zap.String("id", input.ID))
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	e, err := st.Create(ctx, input.ID, models.Content{Name: input.Name, Entries: input.Entries, Document: input.Document})
	if err != nil {
		return nil, err
	}
	logger.L().Info("collection created", zap.String("kind", string(kind)), zap.String("id", e.ID), zap.String("checksum", e.Checksum))
	return e, nil
}

func (s *configService) Get(ctx context.Context, kind models.Kind, id string) (*models.Entity, error) {
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	return st.GetDraft(ctx, id)
}

func (s *configService) Revision(ctx context.Context, kind models.Kind, id string, q RevisionQuery) (*models.Revision, error) {
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	return revision(ctx, st, id, q)
}

func revision(ctx context.Context, st *store.Store, id string, q RevisionQuery) (*models.Revision, error) {
	if q.stage() == models.StagePublished && q.Checksum != "" {
		return st.GetPublishedPinned(ctx, id, q.Version, q.Checksum)
	}
	return st.Get(ctx, id, q.stage(), q.Version)
}

func (s *configService) Replace(ctx context.Context, kind models.Kind, id string, input *ReplaceInput) (*models.Entity, error) {
	logger.L().Info("replace draft called", zap.String("kind", string(kind)), zap.String("id", id))
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	e, err := st.ReplaceDraft(ctx, id, models.Content{Name: input.Name, Entries: input.Entries, Document: input.Document})
	if err != nil {
		return nil, err
	}
	logger.L().Info("draft replaced", zap.String("kind", string(kind)), zap.String("id", id), zap.Int("draft_version", e.DraftVersion))
	return e, nil
}

func (s *configService) UpsertEntry(ctx context.Context, kind models.Kind, id, key string, value any) (*models.Entity, error) {
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	e, err := st.UpsertEntry(ctx, id, key, value)
	if err != nil {
		return nil, err
	}
	logger.L().Info("entry upserted", zap.String("kind", string(kind)), zap.String("id", id), zap.String("key", key), zap.Int("draft_version", e.DraftVersion))
	return e, nil
}

func (s *configService) DeleteEntry(ctx context.Context, kind models.Kind, id, key string) (*models.Entity, error) {
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	e, err := st.DeleteEntry(ctx, id, key)
	if err != nil {
		return nil, err
	}
	logger.L().Info("entry deleted", zap.String("kind", string(kind)), zap.String("id", id), zap.String("key", key), zap.Int("draft_version", e.DraftVersion))
	return e, nil
}

func (s *configService) Publish(ctx context.Context, kind models.Kind, id string) (*models.Entity, error) {
	logger.L().Info("publish called", zap.String("kind", string(kind)), zap.String("id", id))
	st, err := s.reg.Store(kind)
	if err != nil {
		return nil, err
	}
	e, err := st.Publish(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.L().Info("collection published",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.Int("version", e.LastPublishedVersion()),
		zap.String("checksum", e.Checksum),
	)
	return e, nil
}

func (s *configService) Bundle(ctx context.Context, kind models.Kind, id string, q RevisionQuery) (*Bundle, error) {
	rev, err := s.Revision(ctx, kind, id, q)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Revision: rev}

	switch kind {
	case models.KindTheme:
		if b.Theme, err = theme.FromRevision(rev); err != nil {
			return nil, err
		}
	case models.KindGraphType:
		if b.Runtime, err = s.resolver.Resolve(ctx, id, rev.Stage, rev.Version); err != nil {
			return nil, err
		}
		if b.Catalog, err = catalog.Build(b.Runtime); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *configService) Runtime(ctx context.Context, graphTypeID string, q RevisionQuery) (*models.Runtime, error) {
	if q.Checksum != "" {
		// Validates the pin before resolving.
		if _, err := s.Revision(ctx, models.KindGraphType, graphTypeID, q); err != nil {
			return nil, err
		}
	}
	rt, err := s.resolver.Resolve(ctx, graphTypeID, q.stage(), q.Version)
	if err != nil {
		return nil, err
	}
	logger.L().Info("graph type resolved",
		zap.String("graph_type_id", graphTypeID),
		zap.String("stage", string(rt.Stage)),
		zap.Int("version", rt.GraphTypeVersion),
		zap.String("runtime_checksum", rt.RuntimeChecksum),
	)
	return rt, nil
}

func (s *configService) Catalog(ctx context.Context, graphTypeID string, q RevisionQuery) (*catalog.Catalog, error) {
	rt, err := s.Runtime(ctx, graphTypeID, q)
	if err != nil {
		return nil, err
	}
	return catalog.Build(rt)
}

func (s *configService) Theme(ctx context.Context, themeID string, q RevisionQuery) (*theme.Document, error) {
	rev, err := s.Revision(ctx, models.KindTheme, themeID, q)
	if err != nil {
		return nil, err
	}
	return theme.FromRevision(rev)
}

func (s *configService) ResolveIcons(ctx context.Context, input *ResolveIconsInput) (*icons.Resolution, error) {
	policy, err := icons.ParsePolicy(input.Policy)
	if err != nil {
		return nil, err
	}
	if len(input.IconSetRefs) == 0 {
		return nil, appErr.New(appErr.CodeInvalid, "iconSetRefs must not be empty")
	}
	overrides := make(map[string]string, len(input.TypeIconMap))
	for raw, rawIcon := range input.TypeIconMap {
		key, ok := models.NormalizeKey(raw)
		if !ok {
			return nil, appErr.Newf(appErr.CodeMalformedContent, "type %q is not a valid name", raw).WithMeta("key", raw)
		}
		icon, ok := icons.NormalizeIcon(rawIcon)
		if !ok {
			return nil, appErr.Newf(appErr.CodeMalformedContent, "icon %q for %q is not an iconify name", rawIcon, raw).WithMeta("key", raw)
		}
		overrides[key] = icon
	}
	stage := input.Stage
	if stage == "" {
		stage = models.StagePublished
	}
	return s.resolver.ResolveIcons(ctx, stage, policy, input.IconSetRefs, overrides)
}
