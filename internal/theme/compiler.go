// Package theme validates typed light/dark variables and compiles them into
// a CSS custom-property prologue followed by the author's CSS body.
package theme

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/graphrapids/graphapi/internal/models"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

var valueTypes = map[models.ValueType]struct{}{
	models.ValueColor:   {},
	models.ValueFloat:   {},
	models.ValueLength:  {},
	models.ValuePercent: {},
	models.ValueString:  {},
	models.ValueCustom:  {},
}

var (
	numberPattern  = `[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`
	floatRe        = regexp.MustCompile(`^` + numberPattern + `$`)
	percentRe      = regexp.MustCompile(`^` + numberPattern + `%$`)
	lengthRe       = regexp.MustCompile(`^` + numberPattern + `(?:px|em|rem|ex|ch|vw|vh|vmin|vmax|cm|mm|in|pt|pc|q)$`)
	declarationRe  = regexp.MustCompile(`(--[A-Za-z0-9_-]+)\s*:`)
	forbiddenChars = ";{}<>\n\r"
)

// ValidValueType reports whether t is one of the supported value types.
func ValidValueType(t models.ValueType) bool {
	_, ok := valueTypes[t]
	return ok
}

// ValidateVariable checks the type and both values of one variable.
func ValidateVariable(key string, v models.ThemeVariable) error {
	if !ValidValueType(v.ValueType) {
		return appErr.Newf(appErr.CodeInvalidVariableType, "variable %q has unsupported valueType %q", key, v.ValueType).
			WithMeta("key", key).
			WithMeta("valueType", string(v.ValueType))
	}
	sides := []struct{ field, value string }{
		{"lightValue", v.LightValue},
		{"darkValue", v.DarkValue},
	}
	for _, side := range sides {
		if err := validateValue(v.ValueType, side.value); err != nil {
			return appErr.Newf(appErr.CodeMalformedContent, "variable %q %s: %s", key, side.field, err.Error()).
				WithMeta("key", key).
				WithMeta("field", side.field)
		}
	}
	return nil
}

func validateValue(t models.ValueType, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("value is required")
	}
	if strings.ContainsAny(trimmed, forbiddenChars) {
		return fmt.Errorf("value contains a forbidden character")
	}
	switch t {
	case models.ValueFloat:
		if !floatRe.MatchString(trimmed) {
			return fmt.Errorf("%q is not a number", trimmed)
		}
	case models.ValuePercent:
		if !percentRe.MatchString(trimmed) {
			return fmt.Errorf("%q is not a percentage", trimmed)
		}
	case models.ValueLength:
		if trimmed != "0" && !lengthRe.MatchString(trimmed) {
			return fmt.Errorf("%q is not a css length", trimmed)
		}
	}
	return nil
}

// ValidateBody rejects a css body that declares one of the properties the
// prologue manages for vars.
func ValidateBody(vars map[string]models.ThemeVariable, body string) error {
	if len(vars) == 0 || body == "" {
		return nil
	}
	managed := map[string]string{}
	for raw := range vars {
		key, _ := models.NormalizeKey(raw)
		managed["--"+key] = key
		managed["--light-"+key] = key
		managed["--dark-"+key] = key
	}
	for _, m := range declarationRe.FindAllStringSubmatch(body, -1) {
		if key, ok := managed[m[1]]; ok {
			return appErr.Newf(appErr.CodeMalformedContent, "cssBody redeclares managed property %s", m[1]).
				WithMeta("key", key).
				WithMeta("property", m[1])
		}
	}
	return nil
}

// Compile renders vars as a :root prologue followed by cssBody verbatim.
// Keys are normalized and emitted in sorted order; when two raw keys
// normalize to the same key, the later one in sorted raw order wins.
// With no variables the result is cssBody unchanged.
func Compile(vars map[string]models.ThemeVariable, cssBody string) (string, error) {
	if len(vars) == 0 {
		return cssBody, nil
	}

	raw := make([]string, 0, len(vars))
	for k := range vars {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	normalized := make(map[string]models.ThemeVariable, len(vars))
	for _, k := range raw {
		key, ok := models.NormalizeThemeKey(k)
		if !ok {
			return "", appErr.Newf(appErr.CodeMalformedContent, "variable key %q is not a valid name", k).WithMeta("key", k)
		}
		v := vars[k]
		if err := ValidateVariable(key, v); err != nil {
			return "", err
		}
		normalized[key] = v
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	b.WriteString("  color-scheme: light dark;\n")
	for _, k := range keys {
		v := normalized[k]
		fmt.Fprintf(&b, "  --light-%s: %s;\n", k, strings.TrimSpace(v.LightValue))
		fmt.Fprintf(&b, "  --dark-%s: %s;\n", k, strings.TrimSpace(v.DarkValue))
		fmt.Fprintf(&b, "  --%s: light-dark(var(--light-%s), var(--dark-%s));\n", k, k, k)
	}
	b.WriteString("}\n")
	if cssBody != "" {
		b.WriteString("\n")
		b.WriteString(cssBody)
	}
	return b.String(), nil
}
