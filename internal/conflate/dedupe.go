package conflate

import "github.com/sells-group/smelt-cli/internal/model"

// ParcelKeySet accumulates the parcel keys already admitted to the merged
// table. Sources must be admitted in priority order.
type ParcelKeySet struct {
	keys map[int64]struct{}
}

// NewParcelKeySet creates an empty accumulator.
func NewParcelKeySet() *ParcelKeySet {
	return &ParcelKeySet{keys: make(map[int64]struct{})}
}

// Contains reports whether key was admitted by an earlier batch.
func (s *ParcelKeySet) Contains(key int64) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of admitted keys.
func (s *ParcelKeySet) Len() int { return len(s.keys) }

// Admit drops records whose parcel key an earlier batch already admitted,
// then adds the keys of every kept record. Exempt batches keep all records
// but still add their keys. Records without a parcel key are always kept
// and never added.
func (s *ParcelKeySet) Admit(recs []*model.DevelopmentRecord, exempt bool) (kept []*model.DevelopmentRecord, dropped int) {
	kept = make([]*model.DevelopmentRecord, 0, len(recs))
	for _, r := range recs {
		if !exempt && r.ParcelID != nil && s.Contains(*r.ParcelID) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	for _, r := range kept {
		if r.ParcelID != nil {
			s.keys[*r.ParcelID] = struct{}{}
		}
	}
	return kept, dropped
}
