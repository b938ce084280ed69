package conflate

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// NoteCounts tallies mapping notes by kind and detail.
type NoteCounts map[Note]int

// Merge adds other into c.
func (c NoteCounts) Merge(other NoteCounts) {
	for k, v := range other {
		c[k] += v
	}
}

// Kind sums every note of one kind.
func (c NoteCounts) Kind(kind string) int {
	total := 0
	for k, v := range c {
		if k.Kind == kind {
			total += v
		}
	}
	return total
}

// Normalizer maps source features onto development records.
type Normalizer struct {
	scenarios []int
	editDate  int
	editor    string
	workers   int
}

// NewNormalizer creates a Normalizer stamping records with the given
// scenario list and audit fields.
func NewNormalizer(scenarios []int, editDate int, editor string, workers int) *Normalizer {
	if workers < 1 {
		workers = 1
	}
	return &Normalizer{scenarios: scenarios, editDate: editDate, editor: editor, workers: workers}
}

// Scenarios returns the scenario ids records are flagged for.
func (n *Normalizer) Scenarios() []int { return n.scenarios }

// Normalize maps every feature of l through m. Records come back in layer
// order. att may be nil when no parcel lookup was made.
func (n *Normalizer) Normalize(ctx context.Context, m Mapping, l *layer.Layer, att *Attachment) ([]*model.DevelopmentRecord, NoteCounts, error) {
	if err := m.Validate(l); err != nil {
		return nil, nil, err
	}
	if att != nil && len(att.Parcels) != l.Len() {
		return nil, nil, eris.Errorf("conflate: attachment has %d parcels for %d features of %s", len(att.Parcels), l.Len(), l.Name)
	}

	recs := make([]*model.DevelopmentRecord, l.Len())
	notes := make([]Notes, l.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i := range l.Len() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := Row{Layer: l, Index: i}
			if att != nil {
				row.Parcel = att.Parcels[i]
			}
			rec, recNotes := m.Apply(row, n.scenarios)
			if x, y, ok := l.Point(i, "x", "y"); ok {
				rec.PointX = model.Ptr(x)
				rec.PointY = model.Ptr(y)
			}
			rec.EditDate = model.Ptr(n.editDate)
			rec.Editor = model.Ptr(n.editor)
			recs[i] = rec
			notes[i] = recNotes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrapf(err, "conflate: normalize %s", l.Name)
	}

	counts := make(NoteCounts)
	for _, ns := range notes {
		for _, note := range ns {
			counts[note]++
		}
	}
	return recs, counts, nil
}
