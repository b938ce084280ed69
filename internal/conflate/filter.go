package conflate

import (
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// CountIncluded counts raw features whose inclusion flag is 1. A layer
// without the column counts zero.
func CountIncluded(l *layer.Layer, inclColumn string) int {
	if inclColumn == "" || !l.HasColumn(inclColumn) {
		return 0
	}
	n := 0
	for i := range l.Len() {
		if f, err := parseNumber(l.Value(i, inclColumn)); err == nil && f == 1 {
			n++
		}
	}
	return n
}

// FilterIncluded keeps records with incl = 1 and checks that exactly
// expected records survived.
func FilterIncluded(src model.Source, layerName string, expected int, recs []*model.DevelopmentRecord) ([]*model.DevelopmentRecord, error) {
	kept := make([]*model.DevelopmentRecord, 0, expected)
	for _, r := range recs {
		if r.Incl != nil && *r.Incl == 1 {
			kept = append(kept, r)
		}
	}
	if len(kept) != expected {
		return nil, &InclusionCountError{Source: src, Layer: layerName, Expected: expected, Got: len(kept)}
	}
	return kept, nil
}
