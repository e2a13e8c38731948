package kinds

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/graphrapids/graphapi/internal/icons"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/theme"
)

const maxIconSetRefs = 8

var (
	elkSettingKeyRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)
	reservedSettings = map[string]struct{}{"type_icon_map": {}, "edge_type_overrides": {}}
)

// decodeStrict decodes a generic value into dst rejecting unknown fields.
func decodeStrict(src any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	return dec.Decode(dst)
}

type themeRules struct{}

func (themeRules) Kind() models.Kind { return models.KindTheme }

func (r themeRules) NormalizeKey(raw string) (string, error) {
	return normalizeKey(r.Kind(), raw)
}

type themeDocument struct {
	CSSBody string `json:"cssBody"`
}

// Validate checks every variable, then the css body against the managed
// property names.
func (r themeRules) Validate(c models.Content) (models.Content, error) {
	vars := map[string]models.ThemeVariable{}
	entries, err := normalizeEntries(r.Kind(), c.Entries, 0, func(key string, value any) (any, error) {
		v, err := decodeVariable(key, value)
		if err != nil {
			return nil, err
		}
		if err := theme.ValidateVariable(key, v); err != nil {
			return nil, err
		}
		vars[key] = v
		return models.NormalizeMap(v)
	})
	if err != nil {
		return models.Content{}, err
	}

	var doc themeDocument
	if len(c.Document) > 0 {
		if err := decodeStrict(c.Document, &doc); err != nil {
			return models.Content{}, malformed(r.Kind(), "", "theme document: %v", err)
		}
	}
	if err := theme.ValidateBody(vars, doc.CSSBody); err != nil {
		return models.Content{}, err
	}

	out := models.Content{Name: strings.TrimSpace(c.Name), Entries: entries}
	if doc.CSSBody != "" {
		out.Document = map[string]any{"cssBody": doc.CSSBody}
	}
	return out, nil
}

// decodeVariable accepts string or numeric values; numbers keep their
// literal form.
func decodeVariable(key string, value any) (models.ThemeVariable, error) {
	obj, err := objectValue(models.KindTheme, key, value)
	if err != nil {
		return models.ThemeVariable{}, err
	}
	for _, field := range []string{"lightValue", "darkValue"} {
		switch fv := obj[field].(type) {
		case nil:
			return models.ThemeVariable{}, malformed(models.KindTheme, key, "variable %q requires %s", key, field)
		case json.Number:
			obj[field] = fv.String()
		case string:
		default:
			return models.ThemeVariable{}, malformed(models.KindTheme, key, "variable %q %s must be a string", key, field)
		}
	}
	var v models.ThemeVariable
	if err := decodeStrict(obj, &v); err != nil {
		return models.ThemeVariable{}, malformed(models.KindTheme, key, "variable %q: %v", key, err)
	}
	v.ValueType = models.ValueType(strings.ToLower(strings.TrimSpace(string(v.ValueType))))
	v.LightValue = strings.TrimSpace(v.LightValue)
	v.DarkValue = strings.TrimSpace(v.DarkValue)
	return v, nil
}

type graphTypeRules struct{}

func (graphTypeRules) Kind() models.Kind { return models.KindGraphType }

func (r graphTypeRules) NormalizeKey(raw string) (string, error) {
	return normalizeKey(r.Kind(), raw)
}

// Validate normalizes the typeIconMap entries and the graph-type document.
func (r graphTypeRules) Validate(c models.Content) (models.Content, error) {
	entries, err := normalizeEntries(r.Kind(), c.Entries, maxIconEntries, func(key string, value any) (any, error) {
		return iconValue(r.Kind(), key, value)
	})
	if err != nil {
		return models.Content{}, err
	}

	var gt models.GraphTypeSpec
	if err := decodeStrict(c.Document, &gt); err != nil {
		return models.Content{}, malformed(r.Kind(), "", "graph type document: %v", err)
	}
	if err := r.normalizeSpec(&gt); err != nil {
		return models.Content{}, err
	}
	doc, err := models.NormalizeMap(gt)
	if err != nil {
		return models.Content{}, malformed(r.Kind(), "", "graph type document: %v", err)
	}
	return models.Content{Name: strings.TrimSpace(c.Name), Entries: entries, Document: doc}, nil
}

func (r graphTypeRules) normalizeSpec(gt *models.GraphTypeSpec) error {
	kind := r.Kind()
	if err := normalizeRef(kind, "layoutSetRef", &gt.LayoutSetRef); err != nil {
		return err
	}
	if err := normalizeRef(kind, "linkSetRef", &gt.LinkSetRef); err != nil {
		return err
	}
	if len(gt.IconSetRefs) == 0 {
		return malformed(kind, "", "iconSetRefs must reference at least one icon set")
	}
	if len(gt.IconSetRefs) > maxIconSetRefs {
		return malformed(kind, "", "iconSetRefs holds %d refs, limit is %d", len(gt.IconSetRefs), maxIconSetRefs)
	}
	seen := map[string]struct{}{}
	for i := range gt.IconSetRefs {
		if err := normalizeRef(kind, "iconSetRefs", &gt.IconSetRefs[i]); err != nil {
			return err
		}
		id := gt.IconSetRefs[i].ID
		if _, dup := seen[id]; dup {
			return malformed(kind, "", "iconSetRefs references %q more than once", id)
		}
		seen[id] = struct{}{}
	}

	policy, err := icons.ParsePolicy(gt.IconConflictPolicy)
	if err != nil {
		return err
	}
	gt.IconConflictPolicy = string(policy)

	if gt.NodeTypes, err = typeList(kind, "nodeTypes", gt.NodeTypes); err != nil {
		return err
	}
	if gt.LinkTypes, err = typeList(kind, "linkTypes", gt.LinkTypes); err != nil {
		return err
	}

	if len(gt.EdgeTypeOverrides) > 0 {
		overrides := make(map[string]map[string]any, len(gt.EdgeTypeOverrides))
		for raw, props := range gt.EdgeTypeOverrides {
			key, err := normalizeKey(kind, raw)
			if err != nil {
				return err
			}
			if _, dup := overrides[key]; dup {
				return malformed(kind, key, "edgeTypeOverrides has two keys normalizing to %q", key)
			}
			if props == nil {
				props = map[string]any{}
			}
			overrides[key] = props
		}
		gt.EdgeTypeOverrides = overrides
	}

	for k := range gt.ElkSettings {
		if !elkSettingKeyRe.MatchString(k) {
			return malformed(kind, k, "elkSettings key %q is invalid", k)
		}
		if _, reserved := reservedSettings[k]; reserved {
			return malformed(kind, k, "elkSettings key %q is reserved", k)
		}
	}
	return nil
}

func normalizeRef(kind models.Kind, field string, ref *models.Ref) error {
	ref.ID = strings.TrimSpace(ref.ID)
	if !models.ValidID(ref.ID) {
		return malformed(kind, "", "%s id %q is invalid", field, ref.ID)
	}
	ref.Checksum = strings.ToLower(strings.TrimSpace(ref.Checksum))
	if err := validate.Struct(ref); err != nil {
		return malformed(kind, "", "%s: %v", field, err)
	}
	return nil
}

// typeList normalizes, dedupes and sorts a list of type names.
func typeList(kind models.Kind, field string, in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	set := map[string]struct{}{}
	for _, raw := range in {
		key, err := normalizeKey(kind, raw)
		if err != nil {
			return nil, malformed(kind, raw, "%s entry %q is not a valid type name", field, raw)
		}
		set[key] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
