package conflate

import (
	"sort"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/smelt-cli/internal/model"
)

// SourceStats are the per-stage counts of one source layer.
type SourceStats struct {
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	Source     model.Source `json:"source"`
	Raw        int          `json:"raw"`
	Included   int          `json:"included"`
	Kept       int          `json:"kept"`
	Deduped    int          `json:"deduped"`
	NoLocation int          `json:"no_location"`
	Unlocated  int          `json:"unlocated"`
	Notes      NoteCounts   `json:"-"`
}

// OutputStats summarize one merged table.
type OutputStats struct {
	Name            string               `json:"name"`
	Rows            int                  `json:"rows"`
	BySource        map[model.Source]int `json:"by_source"`
	UnitsByYear     map[int]int          `json:"units_by_year"`
	TotalUnits      int                  `json:"total_units"`
	NonResByYear    map[int]float64      `json:"non_res_by_year"`
	TotalNonRes     float64              `json:"total_non_res"`
	MultiPointGeoms int                  `json:"multi_point_geoms"`
	Unclassified    int                  `json:"unclassified"`
	UnknownCodes    map[string]int       `json:"unknown_codes"`
	Reconciled      int                  `json:"reconciled"`
	Overridden      int                  `json:"overridden"`
}

// Summarize computes the totals reported for a merged table.
func Summarize(name string, recs []*model.DevelopmentRecord) *OutputStats {
	s := &OutputStats{
		Name:         name,
		Rows:         len(recs),
		BySource:     make(map[model.Source]int),
		UnitsByYear:  make(map[int]int),
		NonResByYear: make(map[int]float64),
		UnknownCodes: make(map[string]int),
	}
	geoms := make(map[int64]int)
	for _, r := range recs {
		s.BySource[r.Source]++
		if r.ResidentialUnits != nil {
			s.TotalUnits += *r.ResidentialUnits
			if r.YearBuilt != nil {
				s.UnitsByYear[*r.YearBuilt] += *r.ResidentialUnits
			}
		}
		if r.NonResidentialSqft != nil {
			s.TotalNonRes += *r.NonResidentialSqft
			if r.YearBuilt != nil {
				s.NonResByYear[*r.YearBuilt] += *r.NonResidentialSqft
			}
		}
		if r.GeomID != nil {
			geoms[*r.GeomID]++
		}
		if r.BuildingType == nil {
			s.Unclassified++
			if r.BuildingTypeDet != nil {
				s.UnknownCodes[*r.BuildingTypeDet]++
			}
		}
	}
	for _, n := range geoms {
		if n > 1 {
			s.MultiPointGeoms++
		}
	}
	return s
}

// MultiPointGeomIDs returns the geometry keys carried by more than one
// record, ascending. Null keys are ignored.
func MultiPointGeomIDs(recs []*model.DevelopmentRecord) []int64 {
	counts := make(map[int64]int)
	for _, r := range recs {
		if r.GeomID != nil {
			counts[*r.GeomID]++
		}
	}
	var ids []int64
	for id, n := range counts {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Diagnostics is the run report of a conflation run.
type Diagnostics struct {
	Sources   []*SourceStats    `json:"sources"`
	Outputs   []*OutputStats    `json:"outputs"`
	Buildings *BuildingsSummary `json:"buildings,omitempty"`
}

// Notes sums mapping notes over every source.
func (d *Diagnostics) Notes() NoteCounts {
	all := make(NoteCounts)
	for _, s := range d.Sources {
		all.Merge(s.Notes)
	}
	return all
}

// UnmappedCounties returns unmapped county codes and how often each occurred.
func (d *Diagnostics) UnmappedCounties() map[string]int {
	out := make(map[string]int)
	for note, n := range d.Notes() {
		if note.Kind == NoteUnmappedCounty {
			out[note.Detail] += n
		}
	}
	return out
}

// Metadata flattens the report for the run log.
func (d *Diagnostics) Metadata() map[string]any {
	md := map[string]any{
		"sources": d.Sources,
		"outputs": d.Outputs,
	}
	notes := d.Notes()
	md["unmapped_counties"] = d.UnmappedCounties()
	md["unit_division_guarded"] = notes.Kind(NoteUnitDivisionGuarded)
	md["unparsed_values"] = notes.Kind(NoteUnparsedValue)
	if d.Buildings != nil {
		md["buildings"] = d.Buildings
	}
	return md
}

// Log writes the report with thousands separators.
func (d *Diagnostics) Log(log *zap.Logger) {
	p := message.NewPrinter(language.English)

	for _, s := range d.Sources {
		log.Info(p.Sprintf("%s: %d raw, %d with incl = 1, %d kept, %d dropped as duplicates",
			s.Name, s.Raw, s.Included, s.Kept, s.Deduped),
			zap.String("source", string(s.Source)),
			zap.Int("no_location", s.NoLocation),
			zap.Int("unlocated", s.Unlocated))
	}

	for _, o := range d.Outputs {
		for _, y := range sortedKeys(o.UnitsByYear) {
			log.Info(p.Sprintf("%s: %d units built in %d", o.Name, o.UnitsByYear[y], y))
		}
		log.Info(p.Sprintf("%s: total number of residential units: %d", o.Name, o.TotalUnits))
		for _, y := range sortedKeys(o.NonResByYear) {
			log.Info(p.Sprintf("%s: %.0f non-residential sqft built in %d", o.Name, o.NonResByYear[y], y))
		}
		log.Info(p.Sprintf("%s: total non-residential sqft: %.0f", o.Name, o.TotalNonRes))
		log.Info(p.Sprintf("%s: %d rows, %d parcels with more than one development point", o.Name, o.Rows, o.MultiPointGeoms))
		if o.Unclassified > 0 {
			log.Warn(p.Sprintf("%s: %d records have no building type", o.Name, o.Unclassified),
				zap.Any("unknown_codes", o.UnknownCodes))
		}
		log.Info("stage summary",
			zap.String("output", o.Name),
			zap.Int("reconciled", o.Reconciled),
			zap.Int("overridden_to_add", o.Overridden))
	}

	notes := d.Notes()
	if counties := d.UnmappedCounties(); len(counties) > 0 {
		log.Warn("unmapped county codes", zap.Any("codes", counties))
	}
	if n := notes.Kind(NoteUnitDivisionGuarded); n > 0 {
		log.Warn(p.Sprintf("%d records had no unit count to divide building area by", n))
	}
	if n := notes.Kind(NoteUnparsedValue); n > 0 {
		log.Warn(p.Sprintf("%d source values could not be parsed and were left null", n))
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
