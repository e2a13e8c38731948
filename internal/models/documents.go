package models

// Ref points a graph type at another collection. Version and Checksum pin a
// published snapshot and are ignored when resolving drafts.
type Ref struct {
	ID       string `json:"id" validate:"required"`
	Version  int    `json:"version,omitempty" validate:"gte=0"`
	Checksum string `json:"checksum,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

// LinkType is a link-set entry.
type LinkType struct {
	Label         string         `json:"label"`
	ElkEdgeType   string         `json:"elkEdgeType,omitempty"`
	ElkProperties map[string]any `json:"elkProperties,omitempty"`
}

// ValueType enumerates theme variable types.
type ValueType string

const (
	ValueColor   ValueType = "color"
	ValueFloat   ValueType = "float"
	ValueLength  ValueType = "length"
	ValuePercent ValueType = "percent"
	ValueString  ValueType = "string"
	ValueCustom  ValueType = "custom"
)

// ThemeVariable is a theme entry. Both values are required.
type ThemeVariable struct {
	ValueType  ValueType `json:"valueType"`
	LightValue string    `json:"lightValue"`
	DarkValue  string    `json:"darkValue"`
}

// GraphTypeSpec is the document of a graph-type collection. The graph type's
// entries hold its typeIconMap.
type GraphTypeSpec struct {
	LayoutSetRef       Ref                       `json:"layoutSetRef"`
	LinkSetRef         Ref                       `json:"linkSetRef"`
	IconSetRefs        []Ref                     `json:"iconSetRefs"`
	IconConflictPolicy string                    `json:"iconConflictPolicy"`
	NodeTypes          []string                  `json:"nodeTypes,omitempty"`
	LinkTypes          []string                  `json:"linkTypes,omitempty"`
	EdgeTypeOverrides  map[string]map[string]any `json:"edgeTypeOverrides,omitempty"`
	ElkSettings        map[string]any            `json:"elkSettings,omitempty"`
}

// KeySource records which icon set supplied a resolved type and which sets
// defined it.
type KeySource struct {
	SelectedFrom string   `json:"selectedFrom"`
	Candidates   []string `json:"candidates"`
}

// TypeIconMapSource marks icons taken from the graph type's own map.
const TypeIconMapSource = "typeIconMap"

// Runtime is the resolved, checksummed descriptor of a graph type. It is
// derived on every resolution and never stored.
type Runtime struct {
	GraphTypeID               string                    `json:"graphTypeId"`
	Stage                     Stage                     `json:"stage"`
	GraphTypeVersion          int                       `json:"graphTypeVersion"`
	GraphTypeChecksum         string                    `json:"graphTypeChecksum"`
	LayoutSet                 SourceRef                 `json:"layoutSet"`
	LinkSet                   SourceRef                 `json:"linkSet"`
	IconSets                  []SourceRef               `json:"iconSets"`
	IconConflictPolicy        string                    `json:"iconConflictPolicy"`
	NodeTypes                 []string                  `json:"nodeTypes"`
	LinkTypes                 []string                  `json:"linkTypes"`
	TypeIcons                 map[string]string         `json:"typeIcons"`
	KeySources                map[string]KeySource      `json:"keySources"`
	LayoutParams              map[string]map[string]any `json:"layoutParams"`
	LinkParams                map[string]LinkType       `json:"linkParams"`
	EdgeTypeOverrides         map[string]map[string]any `json:"edgeTypeOverrides"`
	ElkSettings               map[string]any            `json:"elkSettings"`
	IconSetResolutionChecksum string                    `json:"iconSetResolutionChecksum"`
	RuntimeChecksum           string                    `json:"runtimeChecksum"`
}
