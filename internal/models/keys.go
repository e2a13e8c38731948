package models

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	idPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)
	keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{0,63}$`)
	// Theme keys become CSS custom property names, so no dots.
	themeKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,63}$`)
)

// ValidID reports whether id is an acceptable collection id.
func ValidID(id string) bool { return idPattern.MatchString(id) }

// NormalizeKey folds an entry key to kebab-case: leading custom-property
// markers are stripped, camelCase is split, '_' and spaces become '-'.
// "--Background_Color", "backgroundColor" and "background-color" all map to
// "background-color". The second result is false when nothing usable remains.
func NormalizeKey(raw string) (string, bool) {
	out := foldKey(raw)
	return out, keyPattern.MatchString(out)
}

// NormalizeThemeKey folds raw like NormalizeKey but only accepts names that
// are valid as the tail of a CSS custom property.
func NormalizeThemeKey(raw string) (string, bool) {
	out := foldKey(raw)
	return out, themeKeyPattern.MatchString(out)
}

func foldKey(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "-")

	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == ' ' || r == '\t':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}
