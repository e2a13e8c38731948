package kinds

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/graphrapids/graphapi/internal/icons"
	"github.com/graphrapids/graphapi/internal/models"
)

const (
	maxLinkTypes     = 256
	maxIconEntries   = 2000
	maxLayoutEntries = 512
)

var (
	validate      = validator.New(validator.WithRequiredStructEnabled())
	elkEdgeTypeRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
)

type layoutSetRules struct{}

func (layoutSetRules) Kind() models.Kind { return models.KindLayoutSet }

func (r layoutSetRules) NormalizeKey(raw string) (string, error) {
	return normalizeKey(r.Kind(), raw)
}

// Validate requires every layout entry to be an object of layout parameters.
func (r layoutSetRules) Validate(c models.Content) (models.Content, error) {
	entries, err := normalizeEntries(r.Kind(), c.Entries, maxLayoutEntries, func(key string, value any) (any, error) {
		return objectValue(r.Kind(), key, value)
	})
	if err != nil {
		return models.Content{}, err
	}
	if err := rejectDocument(r.Kind(), c.Document); err != nil {
		return models.Content{}, err
	}
	return models.Content{Name: strings.TrimSpace(c.Name), Entries: entries}, nil
}

type linkSetRules struct{}

func (linkSetRules) Kind() models.Kind { return models.KindLinkSet }

func (r linkSetRules) NormalizeKey(raw string) (string, error) {
	return normalizeKey(r.Kind(), raw)
}

type linkEntry struct {
	Label         string         `json:"label" validate:"required,max=128"`
	ElkEdgeType   string         `json:"elkEdgeType,omitempty" validate:"omitempty,max=64"`
	ElkProperties map[string]any `json:"elkProperties,omitempty"`
}

func (r linkSetRules) Validate(c models.Content) (models.Content, error) {
	entries, err := normalizeEntries(r.Kind(), c.Entries, maxLinkTypes, func(key string, value any) (any, error) {
		obj, err := objectValue(r.Kind(), key, value)
		if err != nil {
			return nil, err
		}
		var e linkEntry
		if err := decodeStrict(obj, &e); err != nil {
			return nil, malformed(r.Kind(), key, "link type %q: %v", key, err)
		}
		e.Label = strings.TrimSpace(e.Label)
		e.ElkEdgeType = strings.ToUpper(strings.TrimSpace(e.ElkEdgeType))
		if err := validate.Struct(e); err != nil {
			return nil, malformed(r.Kind(), key, "link type %q: %v", key, err)
		}
		if e.ElkEdgeType != "" && !elkEdgeTypeRe.MatchString(e.ElkEdgeType) {
			return nil, malformed(r.Kind(), key, "link type %q: elkEdgeType %q is invalid", key, e.ElkEdgeType)
		}
		return models.NormalizeMap(models.LinkType{Label: e.Label, ElkEdgeType: e.ElkEdgeType, ElkProperties: e.ElkProperties})
	})
	if err != nil {
		return models.Content{}, err
	}
	if err := rejectDocument(r.Kind(), c.Document); err != nil {
		return models.Content{}, err
	}
	return models.Content{Name: strings.TrimSpace(c.Name), Entries: entries}, nil
}

type iconSetRules struct{}

func (iconSetRules) Kind() models.Kind { return models.KindIconSet }

func (r iconSetRules) NormalizeKey(raw string) (string, error) {
	return normalizeKey(r.Kind(), raw)
}

func (r iconSetRules) Validate(c models.Content) (models.Content, error) {
	entries, err := normalizeEntries(r.Kind(), c.Entries, maxIconEntries, func(key string, value any) (any, error) {
		return iconValue(r.Kind(), key, value)
	})
	if err != nil {
		return models.Content{}, err
	}
	if err := rejectDocument(r.Kind(), c.Document); err != nil {
		return models.Content{}, err
	}
	return models.Content{Name: strings.TrimSpace(c.Name), Entries: entries}, nil
}

func iconValue(kind models.Kind, key string, value any) (any, error) {
	s, err := stringValue(kind, key, value)
	if err != nil {
		return nil, err
	}
	icon, ok := icons.NormalizeIcon(s)
	if !ok {
		return nil, malformed(kind, key, "icon %q for %q is not an iconify name (prefix:name)", s, key)
	}
	return icon, nil
}
