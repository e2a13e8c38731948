package models

import (
	"sort"
	"time"
)

// Kind names a family of versioned collections.
type Kind string

const (
	KindLayoutSet Kind = "layout-set"
	KindLinkSet   Kind = "link-set"
	KindIconSet   Kind = "icon-set"
	KindTheme     Kind = "theme"
	KindGraphType Kind = "graph-type"
)

// AllKinds lists every collection kind in registry order.
func AllKinds() []Kind {
	return []Kind{KindLayoutSet, KindLinkSet, KindIconSet, KindTheme, KindGraphType}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Stage selects the draft head or a published snapshot.
type Stage string

const (
	StageDraft     Stage = "draft"
	StagePublished Stage = "published"
)

// Content is the checksummed payload of a collection: its keyed entries plus
// the kind-specific document fields (graph-type references, theme css body).
type Content struct {
	Name     string         `json:"name,omitempty"`
	Entries  map[string]any `json:"entries"`
	Document map[string]any `json:"document,omitempty"`
}

// Clone returns a deep copy.
func (c Content) Clone() Content {
	out := Content{Name: c.Name, Entries: CloneMap(c.Entries), Document: CloneMap(c.Document)}
	if out.Entries == nil {
		out.Entries = map[string]any{}
	}
	return out
}

// Keys returns the entry keys sorted.
func (c Content) Keys() []string {
	keys := make([]string, 0, len(c.Entries))
	for k := range c.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot is one immutable published version.
type Snapshot struct {
	Version     int       `json:"version"`
	Checksum    string    `json:"checksum"`
	Content     Content   `json:"content"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Entity is a versioned collection: a mutable draft head plus an append-only
// log of published snapshots.
type Entity struct {
	Kind         Kind       `json:"kind"`
	ID           string     `json:"id"`
	DraftVersion int        `json:"draftVersion"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Checksum     string     `json:"checksum"`
	Content      Content    `json:"content"`
	Published    []Snapshot `json:"publishedVersions"`
}

// LatestPublished returns the most recent snapshot.
func (e *Entity) LatestPublished() (Snapshot, bool) {
	if len(e.Published) == 0 {
		return Snapshot{}, false
	}
	return e.Published[len(e.Published)-1], true
}

// PublishedVersion returns the snapshot with the given version number.
func (e *Entity) PublishedVersion(version int) (Snapshot, bool) {
	for _, s := range e.Published {
		if s.Version == version {
			return s, true
		}
	}
	return Snapshot{}, false
}

// LastPublishedVersion is 0 when nothing has been published.
func (e *Entity) LastPublishedVersion() int {
	if s, ok := e.LatestPublished(); ok {
		return s.Version
	}
	return 0
}

// Draft returns the draft head as a revision.
func (e *Entity) Draft() *Revision {
	return &Revision{
		Kind:      e.Kind,
		ID:        e.ID,
		Stage:     StageDraft,
		Version:   e.DraftVersion,
		Checksum:  e.Checksum,
		UpdatedAt: e.UpdatedAt,
		Content:   e.Content.Clone(),
	}
}

// Clone returns a deep copy. Published snapshots share nothing with the original.
func (e *Entity) Clone() *Entity {
	out := *e
	out.Content = e.Content.Clone()
	out.Published = make([]Snapshot, len(e.Published))
	for i, s := range e.Published {
		s.Content = s.Content.Clone()
		out.Published[i] = s
	}
	return &out
}

// Summary is the list view of an entity.
type Summary struct {
	Kind             Kind      `json:"kind"`
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	DraftVersion     int       `json:"draftVersion"`
	PublishedVersion int       `json:"publishedVersion,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Checksum         string    `json:"checksum"`
}

// Summarize builds the list view of e.
func (e *Entity) Summarize() Summary {
	return Summary{
		Kind:             e.Kind,
		ID:               e.ID,
		Name:             e.Content.Name,
		DraftVersion:     e.DraftVersion,
		PublishedVersion: e.LastPublishedVersion(),
		UpdatedAt:        e.UpdatedAt,
		Checksum:         e.Checksum,
	}
}

// Revision is a consistent read of one entity at one stage.
type Revision struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Version   int       `json:"version"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
	Content   Content   `json:"content"`
}

// SnapshotRevision wraps a published snapshot as a revision.
func SnapshotRevision(kind Kind, id string, s Snapshot) *Revision {
	return &Revision{
		Kind:      kind,
		ID:        id,
		Stage:     StagePublished,
		Version:   s.Version,
		Checksum:  s.Checksum,
		UpdatedAt: s.PublishedAt,
		Content:   s.Content.Clone(),
	}
}

// SourceRef identifies the exact revision a derived value was built from.
func (r *Revision) SourceRef() SourceRef {
	return SourceRef{ID: r.ID, Version: r.Version, Checksum: r.Checksum}
}

// SourceRef identifies a collection revision by id, version and checksum.
type SourceRef struct {
	ID       string `json:"id"`
	Version  int    `json:"version"`
	Checksum string `json:"checksum"`
}
