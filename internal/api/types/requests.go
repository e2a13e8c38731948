package types

import "github.com/graphrapids/graphapi/internal/models"

type CollectionCreateRequest struct {
	ID       string         `json:"id" validate:"required,max=128"`
	Name     string         `json:"name" validate:"max=256"`
	Entries  map[string]any `json:"entries"`
	Document map[string]any `json:"document"`
}

type DraftReplaceRequest struct {
	Name     string         `json:"name" validate:"max=256"`
	Entries  map[string]any `json:"entries"`
	Document map[string]any `json:"document"`
}

type EntryUpsertRequest struct {
	Value any `json:"value" validate:"required"`
}

type IconResolveRequest struct {
	Stage       string            `json:"stage" validate:"omitempty,oneof=draft published"`
	Policy      string            `json:"policy"`
	IconSetRefs []models.Ref      `json:"iconSetRefs" validate:"required,min=1,dive"`
	TypeIconMap map[string]string `json:"typeIconMap"`
}

type RenderRequest struct {
	YAML        string `json:"yaml" validate:"required"`
	GraphTypeID string `json:"graphTypeId" validate:"max=128"`
	Stage       string `json:"stage" validate:"omitempty,oneof=draft published"`
	Version     int    `json:"version" validate:"gte=0"`
	ThemeID     string `json:"themeId" validate:"max=128"`
}
