// Package icons merges ordered icon sets into one type to icon mapping.
package icons

import (
	"regexp"
	"sort"
	"strings"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/pkg/checksum"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Policy decides which icon set wins when several define the same type.
type Policy string

const (
	FirstWins Policy = "first-wins"
	LastWins  Policy = "last-wins"
	Strict    Policy = "strict"

	// DefaultPolicy applies when a graph type does not name one.
	DefaultPolicy = Strict
)

var iconRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*:[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// ParsePolicy accepts the policy spellings plus "reject" as an alias of strict.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPolicy, nil
	case string(FirstWins):
		return FirstWins, nil
	case string(LastWins):
		return LastWins, nil
	case string(Strict), "reject":
		return Strict, nil
	}
	return "", appErr.Newf(appErr.CodeMalformedContent, "unknown icon conflict policy %q", s).WithMeta("iconConflictPolicy", s)
}

// NormalizeIcon lower-cases and validates an iconify reference ("prefix:name").
func NormalizeIcon(s string) (string, bool) {
	icon := strings.ToLower(strings.TrimSpace(s))
	return icon, iconRe.MatchString(icon)
}

// Source is one icon-set revision taking part in a resolution.
type Source struct {
	Ref     models.SourceRef
	Entries map[string]string
}

// SourceFromRevision extracts the icon mapping of an icon-set revision.
func SourceFromRevision(rev *models.Revision) (Source, error) {
	entries := make(map[string]string, len(rev.Content.Entries))
	for k, v := range rev.Content.Entries {
		s, ok := v.(string)
		if !ok {
			return Source{}, appErr.Newf(appErr.CodeMalformedContent, "icon set %q entry %q is not a string", rev.ID, k).
				WithMeta("kind", string(models.KindIconSet)).
				WithMeta("id", rev.ID).
				WithMeta("key", k)
		}
		entries[k] = s
	}
	return Source{Ref: rev.SourceRef(), Entries: entries}, nil
}

// Resolution is the outcome of merging icon sets.
type Resolution struct {
	Policy     Policy                      `json:"policy"`
	Sources    []models.SourceRef          `json:"sources"`
	Entries    map[string]string           `json:"entries"`
	KeySources map[string]models.KeySource `json:"keySources"`
	Checksum   string                      `json:"checksum"`
}

// Resolve merges sources in order under policy. Explicit overrides win
// outright and are never subject to the policy.
func Resolve(policy Policy, sources []Source, overrides map[string]string) (*Resolution, error) {
	res := &Resolution{
		Policy:     policy,
		Sources:    make([]models.SourceRef, 0, len(sources)),
		Entries:    map[string]string{},
		KeySources: map[string]models.KeySource{},
	}

	definedBy := map[string][]string{}
	for _, src := range sources {
		res.Sources = append(res.Sources, src.Ref)
		for _, key := range sortedKeys(src.Entries) {
			if _, explicit := overrides[key]; explicit {
				continue
			}
			icon := src.Entries[key]
			definedBy[key] = append(definedBy[key], src.Ref.ID)

			ks := res.KeySources[key]
			ks.Candidates = append(ks.Candidates, src.Ref.ID)
			_, seen := res.Entries[key]
			switch {
			case !seen:
				res.Entries[key] = icon
				ks.SelectedFrom = src.Ref.ID
			case policy == LastWins:
				res.Entries[key] = icon
				ks.SelectedFrom = src.Ref.ID
			}
			res.KeySources[key] = ks
		}
	}

	if policy == Strict {
		if err := conflicts(definedBy); err != nil {
			return nil, err
		}
	}

	for key, icon := range overrides {
		res.Entries[key] = icon
		res.KeySources[key] = models.KeySource{SelectedFrom: models.TypeIconMapSource, Candidates: []string{models.TypeIconMapSource}}
	}

	// Source versions are left out: a draft version moves on every write
	// even when the content, and so the checksum, is unchanged.
	hashed := make([]map[string]string, 0, len(res.Sources))
	for _, ref := range res.Sources {
		hashed = append(hashed, map[string]string{"id": ref.ID, "checksum": ref.Checksum})
	}
	sum, err := checksum.Sum(map[string]any{
		"policy":  res.Policy,
		"sources": hashed,
		"entries": res.Entries,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "icon resolution checksum failed")
	}
	res.Checksum = sum
	return res, nil
}

func conflicts(definedBy map[string][]string) error {
	var types []string
	for key, ids := range definedBy {
		if len(ids) > 1 {
			types = append(types, key)
		}
	}
	if len(types) == 0 {
		return nil
	}
	sort.Strings(types)

	first := types[0]
	details := make(map[string][]string, len(types))
	for _, t := range types {
		details[t] = definedBy[t]
	}
	return appErr.Newf(appErr.CodeConflictingIconDefinition,
		"node type %q is defined by icon sets %s under strict policy", first, strings.Join(definedBy[first], ", ")).
		WithMeta("type", first).
		WithMeta("iconSetIds", definedBy[first]).
		WithMeta("conflicts", details)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
