// Package kinds holds the per-kind rules applied to collection content
// before it is stored: key normalization, entry shapes and document fields.
package kinds

import (
	"fmt"
	"sort"

	"github.com/graphrapids/graphapi/internal/models"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Rules validates and normalizes the content of one collection kind.
type Rules interface {
	Kind() models.Kind
	// NormalizeKey maps a raw entry key to its stored form.
	NormalizeKey(raw string) (string, error)
	// Validate returns a normalized copy of c or a MalformedContent,
	// InvalidVariableType or similar content error.
	Validate(c models.Content) (models.Content, error)
}

// For returns the rules of kind.
func For(kind models.Kind) (Rules, error) {
	switch kind {
	case models.KindLayoutSet:
		return layoutSetRules{}, nil
	case models.KindLinkSet:
		return linkSetRules{}, nil
	case models.KindIconSet:
		return iconSetRules{}, nil
	case models.KindTheme:
		return themeRules{}, nil
	case models.KindGraphType:
		return graphTypeRules{}, nil
	}
	return nil, appErr.Newf(appErr.CodeInvalid, "unknown collection kind %q", kind)
}

// MustFor is For for kinds known at compile time.
func MustFor(kind models.Kind) Rules {
	r, err := For(kind)
	if err != nil {
		panic(err)
	}
	return r
}

func malformed(kind models.Kind, key, format string, args ...any) *appErr.AppError {
	e := appErr.Newf(appErr.CodeMalformedContent, format, args...).WithMeta("kind", string(kind))
	if key != "" {
		e = e.WithMeta("key", key)
	}
	return e
}

func normalizeKey(kind models.Kind, raw string) (string, error) {
	normalize := models.NormalizeKey
	if kind == models.KindTheme {
		normalize = models.NormalizeThemeKey
	}
	key, ok := normalize(raw)
	if !ok {
		return "", malformed(kind, raw, "%s key %q is not a valid name", kind, raw)
	}
	return key, nil
}

// entryValidator normalizes one entry value.
type entryValidator func(key string, value any) (any, error)

// normalizeEntries folds keys, rejects keys that collide after folding and
// validates each value.
func normalizeEntries(kind models.Kind, entries map[string]any, maxEntries int, validate entryValidator) (map[string]any, error) {
	if maxEntries > 0 && len(entries) > maxEntries {
		return nil, malformed(kind, "", "%s holds %d entries, limit is %d", kind, len(entries), maxEntries)
	}

	raw := make([]string, 0, len(entries))
	for k := range entries {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	out := make(map[string]any, len(entries))
	origin := make(map[string]string, len(entries))
	for _, rk := range raw {
		key, err := normalizeKey(kind, rk)
		if err != nil {
			return nil, err
		}
		if prev, dup := origin[key]; dup {
			return nil, malformed(kind, key, "%s keys %q and %q both normalize to %q", kind, prev, rk, key)
		}
		v, err := validate(key, entries[rk])
		if err != nil {
			return nil, err
		}
		origin[key] = rk
		out[key] = v
	}
	return out, nil
}

func objectValue(kind models.Kind, key string, value any) (map[string]any, error) {
	m, err := models.NormalizeMap(value)
	if err != nil {
		return nil, malformed(kind, key, "%s entry %q must be an object", kind, key)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func stringValue(kind models.Kind, key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", malformed(kind, key, "%s entry %q must be a string, got %s", kind, key, typeName(value))
	}
	return s, nil
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// rejectDocument is used by kinds without document fields.
func rejectDocument(kind models.Kind, doc map[string]any) error {
	if len(doc) > 0 {
		return malformed(kind, "", "%s does not accept document fields", kind)
	}
	return nil
}
