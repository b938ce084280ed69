package conflate

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/layer"
)

// Attacher resolves the parcel containing each point of a source layer.
type Attacher struct {
	locator geo.Locator
	workers int
}

// NewAttacher creates an Attacher. workers bounds concurrent lookups.
func NewAttacher(locator geo.Locator, workers int) *Attacher {
	if workers < 1 {
		workers = 1
	}
	return &Attacher{locator: locator, workers: workers}
}

// Attachment is the parcel lookup result for one layer, aligned with its
// features. Parcels[i] is nil when feature i has no location or falls
// outside every parcel.
type Attachment struct {
	Parcels    []*geo.Parcel
	Unlocated  int
	NoLocation int
}

// Attach looks up every feature of l. A locator error aborts the layer.
func (a *Attacher) Attach(ctx context.Context, l *layer.Layer) (*Attachment, error) {
	parcels := make([]*geo.Parcel, l.Len())
	hasPoint := make([]bool, l.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range l.Len() {
		g.Go(func() error {
			x, y, ok := l.Point(i, "x", "y")
			if !ok {
				return nil
			}
			hasPoint[i] = true
			p, err := a.locator.Locate(gctx, x, y)
			if err != nil {
				return eris.Wrapf(err, "conflate: locate feature %d of %s", i, l.Name)
			}
			parcels[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Attachment{Parcels: parcels}
	for i, p := range parcels {
		switch {
		case !hasPoint[i]:
			out.NoLocation++
		case p == nil:
			out.Unlocated++
		}
	}
	return out, nil
}
