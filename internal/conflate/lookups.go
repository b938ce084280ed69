package conflate

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed lookups.yaml
var defaultLookups []byte

// BuildingType is the classification a detailed type code resolves to.
type BuildingType struct {
	Simple            string `yaml:"simple"`
	TypeID            int    `yaml:"type_id"`
	DevelopmentTypeID *int   `yaml:"development_type_id"`
}

// BuildingTypes is an immutable detailed-code lookup.
type BuildingTypes struct {
	byCode map[string]BuildingType
}

// NewBuildingTypes copies m into a lookup keyed by upper-case code.
func NewBuildingTypes(m map[string]BuildingType) BuildingTypes {
	byCode := make(map[string]BuildingType, len(m))
	for code, bt := range m {
		byCode[strings.ToUpper(strings.TrimSpace(code))] = bt
	}
	return BuildingTypes{byCode: byCode}
}

// Lookup resolves a detailed type code.
func (b BuildingTypes) Lookup(code string) (BuildingType, bool) {
	bt, ok := b.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return bt, ok
}

// Codes returns the known detailed codes in sorted order.
func (b BuildingTypes) Codes() []string {
	codes := make([]string, 0, len(b.byCode))
	for c := range b.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of known codes.
func (b BuildingTypes) Len() int { return len(b.byCode) }

// Lookups holds the static tables a conflation run depends on.
type Lookups struct {
	BuildingTypes BuildingTypes
	Counties      map[int]string
	AddOverrides  []int64
	// B10Types maps a 2010 base building development_type_id to its simple type.
	B10Types map[int]BuildingType
}

type lookupsDoc struct {
	BuildingTypes map[string]BuildingType `yaml:"building_types"`
	Counties      map[int]string          `yaml:"counties"`
	AddOverrides  []int64                 `yaml:"add_overrides"`
	B10Types      map[int]BuildingType    `yaml:"b10_development_types"`
}

// DefaultLookups parses the embedded lookup document.
func DefaultLookups() (*Lookups, error) {
	return ParseLookups(defaultLookups)
}

// LoadLookups reads a lookup document from path, or the embedded one when
// path is empty.
func LoadLookups(path string) (*Lookups, error) {
	if path == "" {
		return DefaultLookups()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "conflate: read lookups %s", path)
	}
	return ParseLookups(data)
}

// ParseLookups decodes a YAML lookup document.
func ParseLookups(data []byte) (*Lookups, error) {
	var doc lookupsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "conflate: parse lookups")
	}
	if len(doc.BuildingTypes) == 0 {
		return nil, eris.New("conflate: lookups define no building_types")
	}
	for code, bt := range doc.BuildingTypes {
		if bt.Simple == "" {
			return nil, eris.Errorf("conflate: building type %s has no simple code", code)
		}
	}
	return &Lookups{
		BuildingTypes: NewBuildingTypes(doc.BuildingTypes),
		Counties:      doc.Counties,
		AddOverrides:  doc.AddOverrides,
		B10Types:      doc.B10Types,
	}, nil
}

// CountyName resolves a numeric county code.
func (l *Lookups) CountyName(code int) (string, bool) {
	name, ok := l.Counties[code]
	return name, ok
}
