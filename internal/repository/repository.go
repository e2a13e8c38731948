package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/graphrapids/graphapi/internal/models"
)

// Repository persists collection heads and their published logs. Every call
// is synchronous; the store writes through before exposing a new state.
type Repository interface {
	Migrate(ctx context.Context) error
	LoadAll(ctx context.Context, kind models.Kind) ([]*models.Entity, error)
	Insert(ctx context.Context, e *models.Entity) error
	SaveDraft(ctx context.Context, e *models.Entity) error
	// Publish updates the draft head and appends snap in one transaction.
	Publish(ctx context.Context, e *models.Entity, snap models.Snapshot) error
	Ping(ctx context.Context) error
	Close() error
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := models.DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode payload: expected object, got %T", v)
	}
	return m, nil
}

func decodeContent(name string, entries, document []byte) (models.Content, error) {
	e, err := decodeObject(entries)
	if err != nil {
		return models.Content{}, err
	}
	d, err := decodeObject(document)
	if err != nil {
		return models.Content{}, err
	}
	if e == nil {
		e = map[string]any{}
	}
	return models.Content{Name: name, Entries: e, Document: d}, nil
}

func encodeContent(c models.Content) (entries, document []byte, err error) {
	if entries, err = encodeJSON(c.Entries); err != nil {
		return nil, nil, err
	}
	if len(c.Document) == 0 {
		return entries, nil, nil
	}
	if document, err = encodeJSON(c.Document); err != nil {
		return nil, nil, err
	}
	return entries, document, nil
}

func utc(t time.Time) time.Time { return t.UTC() }
