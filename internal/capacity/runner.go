package capacity

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/smelt-cli/internal/model"
)

// Options configures a capacity run.
type Options struct {
	Workers int
}

// Summary is the run report of a capacity run.
type Summary struct {
	Joins *JoinStats `json:"joins"`
	// MissingBefore counts null inputs per source and metric before imputation.
	MissingBefore map[string]int `json:"missing_before"`
	// Tags counts provenance tags per source and metric after imputation.
	Tags                 map[string]map[string]int `json:"tags"`
	Comparison           map[string]map[string]int `json:"comparison"`
	MissingPLUIDBasis    int                       `json:"missing_plu_id_basis"`
	MissingZoningIDPBA40 int                       `json:"missing_zoning_id_pba40"`
}

// Metadata flattens the report for the run log.
func (s *Summary) Metadata() map[string]any {
	return map[string]any{
		"joins":                   s.Joins,
		"missing_before":          s.MissingBefore,
		"tags":                    s.Tags,
		"comparison":              s.Comparison,
		"missing_plu_id_basis":    s.MissingPLUIDBasis,
		"missing_zoning_id_pba40": s.MissingZoningIDPBA40,
	}
}

// Log writes the report with thousands separators and percentages.
func (s *Summary) Log(log *zap.Logger) {
	p := message.NewPrinter(language.English)
	j := s.Joins
	pct := func(n int) string {
		if j.Parcels == 0 {
			return "0.0%"
		}
		return p.Sprintf("%.1f%%", 100*float64(n)/float64(j.Parcels))
	}
	log.Info("capacity joins",
		zap.String("parcels", p.Sprintf("%d", j.Parcels)),
		zap.String("missing_zoning_id", p.Sprintf("%d (%s)", j.MissingZoningID, pct(j.MissingZoningID))),
		zap.String("missing_pba40_zone", p.Sprintf("%d (%s)", j.MissingPBA40Zone, pct(j.MissingPBA40Zone))),
		zap.String("missing_basis", p.Sprintf("%d (%s)", j.MissingBasis, pct(j.MissingBasis))),
		zap.String("missing_zoning_mods", p.Sprintf("%d", j.MissingZoningMods)),
		zap.String("missing_juris", p.Sprintf("%d", j.MissingJuris)),
		zap.Int("invalid_parcel_ids", j.InvalidParcelIDs),
		zap.Any("duplicate_keys", j.DuplicateKeys),
	)
	for key, n := range s.MissingBefore {
		log.Info("missing before imputation", zap.String("metric", key), zap.String("parcels", p.Sprintf("%d", n)))
	}
	for key, tags := range s.Tags {
		log.Info("imputation sources", zap.String("metric", key), zap.Any("tags", tags))
	}
	log.Info("plu id completeness",
		zap.Int("missing_plu_id_basis", s.MissingPLUIDBasis),
		zap.Int("missing_zoning_id_pba40", s.MissingZoningIDPBA40),
	)
}

// Result is the output of a capacity run.
type Result struct {
	Parcels              []*model.ParcelCapacity
	Comparison           []TypeComparison
	MissingPLUIDBasis    []*model.ParcelCapacity
	MissingZoningIDPBA40 []*model.ParcelCapacity
	Summary              *Summary
}

// Runner combines and imputes the parcel capacity table.
type Runner struct {
	opts Options
	log  *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{opts: opts, log: zap.L().With(zap.String("component", "capacity"))}
}

type pair struct {
	src    model.CapacitySource
	metric Metric
}

func pairKey(src model.CapacitySource, m Metric) string {
	return string(m) + "_" + string(src)
}

// Run combines the inputs, sums allowed building types, imputes DUA and
// FAR per source, and compares the two datasets.
func (r *Runner) Run(ctx context.Context, in *Inputs) (*Result, error) {
	parcels, joins, err := Combine(in)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Joins:         joins,
		MissingBefore: make(map[string]int),
		Tags:          make(map[string]map[string]int),
	}

	for _, p := range parcels {
		for _, src := range model.CapacitySources {
			sc := p.Source(src)
			SetAllowed(sc)
			if sc.MaxDUA == nil {
				sum.MissingBefore[pairKey(src, MetricDUA)]++
			}
			if sc.MaxFAR == nil {
				sum.MissingBefore[pairKey(src, MetricFAR)]++
			}
		}
	}

	var pairs []pair
	for _, src := range model.CapacitySources {
		pairs = append(pairs, pair{src, MetricDUA}, pair{src, MetricFAR})
	}

	// Every pair reads the unimputed inputs, so outcomes are collected
	// first and applied once all pairs finish.
	outcomes := make([][]Outcome, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for k, pr := range pairs {
		g.Go(func() error {
			out := make([]Outcome, len(parcels))
			for i, p := range parcels {
				if i%4096 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				out[i] = Impute(pr.metric, pr.src, p.Sources[pr.src])
			}
			outcomes[k] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "capacity: impute")
	}

	for k, pr := range pairs {
		tags := make(map[string]int)
		for i, p := range parcels {
			o := outcomes[k][i]
			o.Apply(pr.metric, p.Sources[pr.src])
			tags[o.Tag]++
		}
		sum.Tags[pairKey(pr.src, pr.metric)] = tags
	}

	res := &Result{
		Parcels:              parcels,
		MissingPLUIDBasis:    MissingPLUIDBasis(parcels),
		MissingZoningIDPBA40: MissingZoningIDPBA40(parcels),
		Summary:              sum,
	}
	res.Comparison, sum.Comparison = CompareTypes(parcels)
	sum.MissingPLUIDBasis = len(res.MissingPLUIDBasis)
	sum.MissingZoningIDPBA40 = len(res.MissingZoningIDPBA40)

	sum.Log(r.log)
	return res, nil
}
