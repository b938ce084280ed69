package capacity

import "github.com/sells-group/smelt-cli/internal/model"

// Conversion constants for imputing density and FAR.
const (
	SquareFeetPerAcre   = 43560.0
	SquareFeetPerDU     = 1200.0
	FeetPerStory        = 11.0
	ParcelUseEfficiency = 0.5
)

// Metric is an imputed capacity metric.
type Metric string

const (
	MetricDUA Metric = "dua"
	MetricFAR Metric = "far"
)

// Candidate is a value proposed for a metric with its provenance tag.
type Candidate struct {
	Value float64
	Tag   string
}

// Rule proposes a metric value from one source's capacity, or reports that
// it has none. Rules never modify their input.
type Rule func(src model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool)

// DUARules impute max_dua, first match wins.
var DUARules = []Rule{directDUA, minDUA, singleDUA}

// FARRules impute max_far, first match wins.
var FARRules = []Rule{directFAR, farFromHeightRule}

// RulesFor returns the ordered rules of m.
func RulesFor(m Metric) []Rule {
	if m == MetricFAR {
		return FARRules
	}
	return DUARules
}

// FARFromHeight converts a height limit into a FAR.
func FARFromHeight(height float64) float64 {
	return height / FeetPerStory * ParcelUseEfficiency
}

// DUAFromFAR converts a FAR into dwelling units per acre.
func DUAFromFAR(far float64) float64 {
	return far * SquareFeetPerAcre / SquareFeetPerDU
}

// Evaluate runs rules in order. When none applies the metric is missing.
func Evaluate(rules []Rule, src model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool) {
	for _, rule := range rules {
		if c, ok := rule(src, sc); ok {
			return c, true
		}
	}
	return Candidate{Tag: model.ProvenanceMissing}, false
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func directDUA(src model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool) {
	if !positive(sc.MaxDUA) {
		return Candidate{}, false
	}
	return Candidate{Value: *sc.MaxDUA, Tag: string(src)}, true
}

// duaCandidates derives density from the FAR and from the height limit.
func duaCandidates(sc *model.SourceCapacity) (fromFAR, fromHeight *float64) {
	if sc.MaxFAR != nil {
		v := DUAFromFAR(*sc.MaxFAR)
		fromFAR = &v
	}
	if sc.MaxHeight != nil {
		v := DUAFromFAR(FARFromHeight(*sc.MaxHeight))
		fromHeight = &v
	}
	return fromFAR, fromHeight
}

// minDUA takes the smaller of two positive candidates. A tie goes to FAR.
func minDUA(_ model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool) {
	far, height := duaCandidates(sc)
	if !positive(far) || !positive(height) {
		return Candidate{}, false
	}
	if *height < *far {
		return Candidate{Value: *height, Tag: model.ProvenanceFromHeightAsMin}, true
	}
	return Candidate{Value: *far, Tag: model.ProvenanceFromFARAsMin}, true
}

func singleDUA(_ model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool) {
	far, height := duaCandidates(sc)
	switch {
	case positive(far):
		return Candidate{Value: *far, Tag: model.ProvenanceFromFAR}, true
	case positive(height):
		return Candidate{Value: *height, Tag: model.ProvenanceFromHeight}, true
	}
	return Candidate{}, false
}

func directFAR(src model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool) {
	if !positive(sc.MaxFAR) {
		return Candidate{}, false
	}
	return Candidate{Value: *sc.MaxFAR, Tag: string(src)}, true
}

func farFromHeightRule(_ model.CapacitySource, sc *model.SourceCapacity) (Candidate, bool) {
	if sc.MaxHeight == nil {
		return Candidate{}, false
	}
	return Candidate{Value: FARFromHeight(*sc.MaxHeight), Tag: model.ProvenanceFromHeight}, true
}

// Outcome is the imputation result of one metric for one parcel. Value is
// nil when the metric stays at its input value.
type Outcome struct {
	Value *float64
	Tag   string
}

// Impute evaluates a metric for sc without modifying it.
func Impute(m Metric, src model.CapacitySource, sc *model.SourceCapacity) Outcome {
	c, ok := Evaluate(RulesFor(m), src, sc)
	if !ok {
		return Outcome{Tag: c.Tag}
	}
	v := c.Value
	return Outcome{Value: &v, Tag: c.Tag}
}

// Apply writes an outcome into sc. A missing metric keeps its input value.
func (o Outcome) Apply(m Metric, sc *model.SourceCapacity) {
	switch m {
	case MetricDUA:
		sc.SourceDUA = o.Tag
		if o.Value != nil {
			sc.MaxDUA = o.Value
		}
	case MetricFAR:
		sc.SourceFAR = o.Tag
		if o.Value != nil {
			sc.MaxFAR = o.Value
		}
	}
}
