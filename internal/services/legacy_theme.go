package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/theme"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// Import outcomes.
const (
	ImportCreated = "created"
	ImportFilled  = "filled"
	ImportSkipped = "skipped"
)

type ImportResult struct {
	Status string         `json:"status"`
	Entity *models.Entity `json:"entity"`
}

// ImportLegacyTheme moves a CSS-only theme into the store. A theme that
// already has variables or a body is never touched.
func (s *Seeder) ImportLegacyTheme(ctx context.Context, id, css string) (*ImportResult, error) {
	if strings.TrimSpace(css) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "legacy css is empty")
	}
	st, err := s.reg.Store(models.KindTheme)
	if err != nil {
		return nil, err
	}
	content := models.Content{Name: "Imported Theme", Entries: map[string]any{}, Document: map[string]any{"cssBody": css}}

	status := ImportCreated
	cur, err := st.GetDraft(ctx, id)
	switch {
	case appErr.IsCode(err, appErr.CodeNotFound):
		if _, err := st.Create(ctx, id, content); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case len(cur.Content.Entries) > 0 || theme.Body(cur.Content) != "":
		logger.L().Info("legacy theme import skipped", zap.String("id", id))
		return &ImportResult{Status: ImportSkipped, Entity: cur}, nil
	default:
		status = ImportFilled
		if cur.Content.Name != "" {
			content.Name = cur.Content.Name
		}
		if _, err := st.ReplaceDraft(ctx, id, content); err != nil {
			return nil, err
		}
	}

	e, err := st.Publish(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.L().Info("legacy theme imported", zap.String("id", id), zap.String("status", status), zap.Int("version", e.LastPublishedVersion()))
	return &ImportResult{Status: status, Entity: e}, nil
}
