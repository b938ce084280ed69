package conflate

import "github.com/sells-group/smelt-cli/internal/model"

// Merge concatenates batches in the order given and numbers the rows 1..N.
// Records are cloned so one record can appear in several merged tables
// under different ids.
func Merge(batches ...[]*model.DevelopmentRecord) []*model.DevelopmentRecord {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	out := make([]*model.DevelopmentRecord, 0, total)
	for _, b := range batches {
		for _, r := range b {
			c := r.Clone()
			c.DevelopmentProjectsID = int64(len(out) + 1)
			out = append(out, c)
		}
	}
	return out
}
