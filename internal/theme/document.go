package theme

import (
	"github.com/graphrapids/graphapi/internal/models"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Document is the typed view of a theme revision.
type Document struct {
	ID        string                          `json:"id"`
	Version   int                             `json:"version"`
	Checksum  string                          `json:"checksum"`
	Variables map[string]models.ThemeVariable `json:"variables"`
	CSSBody   string                          `json:"cssBody"`
	RenderCSS string                          `json:"renderCss"`
}

// Variables decodes theme entries.
func Variables(c models.Content) (map[string]models.ThemeVariable, error) {
	vars := make(map[string]models.ThemeVariable, len(c.Entries))
	for k, raw := range c.Entries {
		var v models.ThemeVariable
		if err := models.Convert(raw, &v); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeMalformedContent, "theme variable is not an object").WithMeta("key", k)
		}
		vars[k] = v
	}
	return vars, nil
}

// Body returns the stored css body of a theme.
func Body(c models.Content) string {
	if s, ok := c.Document["cssBody"].(string); ok {
		return s
	}
	return ""
}

// FromRevision compiles a stored theme revision.
func FromRevision(rev *models.Revision) (*Document, error) {
	vars, err := Variables(rev.Content)
	if err != nil {
		return nil, err
	}
	body := Body(rev.Content)
	css, err := Compile(vars, body)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:        rev.ID,
		Version:   rev.Version,
		Checksum:  rev.Checksum,
		Variables: vars,
		CSSBody:   body,
		RenderCSS: css,
	}, nil
}
