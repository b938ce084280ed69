package conflate

import (
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// Row is one source feature together with the parcel that contains it.
// Parcel is nil when the point fell outside every parcel.
type Row struct {
	Layer  *layer.Layer
	Index  int
	Parcel *geo.Parcel
}

// Value returns the trimmed text of a source column.
func (r Row) Value(col string) string {
	return r.Layer.Value(r.Index, col)
}

// Note kinds raised while mapping a record. They are counted, never fatal.
const (
	NoteUnparsedValue       = "unparsed_value"
	NoteUnmappedCounty      = "unmapped_county"
	NoteUnitDivisionGuarded = "unit_division_guarded"
)

// Note is one non-fatal condition raised while mapping a record.
type Note struct {
	Kind   string
	Detail string
}

// Notes collects the conditions raised for one record.
type Notes []Note

// Add records a condition.
func (n *Notes) Add(kind, detail string) {
	*n = append(*n, Note{Kind: kind, Detail: detail})
}

// DeriveFunc computes canonical fields from a row. It writes new pointers
// into rec and reports non-fatal conditions through notes.
type DeriveFunc func(r Row, rec *model.DevelopmentRecord, notes *Notes)

// Rule fills one canonical field. Exactly one of Column, Value or Derive is set.
type Rule struct {
	Target string
	// Column copies a source column through the target's parser.
	Column string
	// Value is a constant parsed through the target's parser.
	Value string
	// Derive computes the target; Reads lists the columns it needs.
	Derive DeriveFunc
	Reads  []string
	// Optional rules are skipped when their column is absent.
	Optional bool
}

// Copy maps a source column onto a canonical field.
func Copy(target, column string) Rule {
	return Rule{Target: target, Column: column}
}

// CopyIfPresent is Copy for a column some deliveries of the layer lack.
func CopyIfPresent(target, column string) Rule {
	return Rule{Target: target, Column: column, Optional: true}
}

// Const fills a canonical field with a fixed value.
func Const(target, value string) Rule {
	return Rule{Target: target, Value: value}
}

// Derive computes a canonical field from the columns it reads.
func Derive(target string, fn DeriveFunc, reads ...string) Rule {
	return Rule{Target: target, Derive: fn, Reads: reads}
}

// IfPresent marks a rule that is skipped when a column it reads is absent.
func (r Rule) IfPresent() Rule {
	r.Optional = true
	return r
}

func (r Rule) available(l *layer.Layer) bool {
	if r.Column != "" {
		return l.HasColumn(r.Column)
	}
	for _, c := range r.Reads {
		if !l.HasColumn(c) {
			return false
		}
	}
	return true
}

// ScenarioFunc fills scenario flags for the scenario ids of a run.
type ScenarioFunc func(r Row, scenarios []int) map[int]int

// Mapping is the explicit field mapping of one source onto the canonical
// development record.
type Mapping struct {
	Source model.Source
	Rules  []Rule
	// Scenarios fills scen<id> flags. Nil leaves them null.
	Scenarios ScenarioFunc
	// InclColumn names the inclusion flag column. Empty means the source has
	// no inclusion filter.
	InclColumn string
}

// Columns returns the source columns the mapping requires.
func (m Mapping) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, rule := range m.Rules {
		if rule.Optional {
			continue
		}
		add(rule.Column)
		for _, c := range rule.Reads {
			add(c)
		}
	}
	add(m.InclColumn)
	return cols
}

// Validate checks that every required column exists and that every rule
// targets a known field.
func (m Mapping) Validate(l *layer.Layer) error {
	for _, rule := range m.Rules {
		if rule.Derive == nil {
			if _, ok := setters[rule.Target]; !ok {
				return eris.Errorf("conflate: mapping for %s targets unknown field %q", m.Source, rule.Target)
			}
		}
	}
	for _, col := range m.Columns() {
		if !l.HasColumn(col) {
			return &SchemaMappingError{Source: m.Source, Layer: l.Name, Column: col}
		}
	}
	return nil
}

// Apply maps one row. Parcel identity is attached from r.Parcel; the
// caller sets audit fields.
func (m Mapping) Apply(r Row, scenarios []int) (*model.DevelopmentRecord, Notes) {
	rec := &model.DevelopmentRecord{
		Source: m.Source,
		Action: model.ActionBuild,
	}
	var notes Notes

	if r.Parcel != nil {
		rec.ParcelID = model.Ptr(r.Parcel.ParcelID)
		rec.ZoneID = r.Parcel.ZoneID
	}
	if m.Scenarios != nil {
		rec.Scenarios = m.Scenarios(r, scenarios)
	}

	for _, rule := range m.Rules {
		if rule.Optional && !rule.available(r.Layer) {
			continue
		}
		switch {
		case rule.Derive != nil:
			rule.Derive(r, rec, &notes)
		case rule.Column != "":
			v := r.Value(rule.Column)
			if v == "" {
				continue
			}
			if err := setters[rule.Target](rec, v); err != nil {
				notes.Add(NoteUnparsedValue, rule.Target)
			}
		default:
			if err := setters[rule.Target](rec, rule.Value); err != nil {
				notes.Add(NoteUnparsedValue, rule.Target)
			}
		}
	}

	if m.InclColumn != "" {
		if v := r.Value(m.InclColumn); v != "" {
			if err := setters["incl"](rec, v); err != nil {
				notes.Add(NoteUnparsedValue, "incl")
			}
		}
	}
	return rec, notes
}

// AllScenarios flags every scenario with 1.
func AllScenarios(_ Row, scenarios []int) map[int]int {
	out := make(map[int]int, len(scenarios))
	for _, id := range scenarios {
		out[id] = 1
	}
	return out
}

// ScenarioColumns copies scen<id> columns from the layer. Absent or empty
// columns stay null.
func ScenarioColumns(r Row, scenarios []int) map[int]int {
	out := make(map[int]int, len(scenarios))
	for _, id := range scenarios {
		v := r.Value("scen" + strconv.Itoa(id))
		if v == "" {
			continue
		}
		f, err := parseNumber(v)
		if err != nil {
			continue
		}
		out[id] = int(f)
	}
	return out
}
