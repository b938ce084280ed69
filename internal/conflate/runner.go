package conflate

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// Output table names.
const (
	OutputPipeline            = "pipeline"
	OutputDevelopmentProjects = "development_projects"
)

// Input is one source layer of a run.
type Input struct {
	Name  string
	Kind  string
	Layer *layer.Layer
}

// Options configure a conflation run.
type Options struct {
	Scenarios          []int
	EditDate           int
	Editor             string
	Workers            int
	SingleFamilyMarker string
}

// Result holds the merged tables and the run report.
type Result struct {
	Pipeline            []*model.DevelopmentRecord
	DevelopmentProjects []*model.DevelopmentRecord
	Diagnostics         *Diagnostics
}

// Runner conflates source layers into the pipeline and development
// projects tables.
type Runner struct {
	attacher   *Attacher
	normalizer *Normalizer
	lookups    *Lookups
	opts       Options
}

// NewRunner creates a Runner that resolves parcels through locator.
func NewRunner(locator geo.Locator, lookups *Lookups, opts Options) *Runner {
	return &Runner{
		attacher:   NewAttacher(locator, opts.Workers),
		normalizer: NewNormalizer(opts.Scenarios, opts.EditDate, opts.Editor, opts.Workers),
		lookups:    lookups,
		opts:       opts,
	}
}

type sourceBatch struct {
	source model.Source
	recs   []*model.DevelopmentRecord
}

// Run processes inputs one source at a time in priority order. Any fatal
// error returns before a table is produced.
func (r *Runner) Run(ctx context.Context, inputs []Input) (*Result, error) {
	log := zap.L().With(zap.String("component", "conflate.runner"))

	ordered, err := orderInputs(inputs)
	if err != nil {
		return nil, err
	}

	keys := NewParcelKeySet()
	diag := &Diagnostics{}
	var pipelineBatches, oppBatches []sourceBatch

	for _, in := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sLog := log.With(zap.String("source", in.Name), zap.String("kind", in.Kind))

		batch, stats, err := r.processSource(ctx, in, keys)
		if err != nil {
			var incl *InclusionCountError
			if errors.As(err, &incl) {
				sLog.Error("records with incl = 1 were lost",
					zap.Int("expected", incl.Expected),
					zap.Int("got", incl.Got))
			}
			return nil, eris.Wrapf(err, "conflate: source %s", in.Name)
		}
		diag.Sources = append(diag.Sources, stats)
		sLog.Info("source processed",
			zap.Int("raw", stats.Raw),
			zap.Int("kept", stats.Kept),
			zap.Int("deduped", stats.Deduped))

		if batch.source == model.SourceOpportunitySite {
			oppBatches = append(oppBatches, batch)
		} else {
			pipelineBatches = append(pipelineBatches, batch)
		}
	}

	pipeline := Merge(recsOf(pipelineBatches)...)
	devproj := Merge(append(recsOf(pipelineBatches), recsOf(oppBatches)...)...)

	res := &Result{Pipeline: pipeline, DevelopmentProjects: devproj, Diagnostics: diag}
	for _, out := range []struct {
		name string
		recs []*model.DevelopmentRecord
	}{
		{OutputPipeline, pipeline},
		{OutputDevelopmentProjects, devproj},
	} {
		reconciled := 0
		for _, rec := range out.recs {
			r.lookups.BuildingTypes.Classify(rec)
			if Reconcile(rec) {
				reconciled++
			}
		}
		stats := Summarize(out.name, out.recs)
		stats.Reconciled = reconciled
		stats.Overridden = ApplyAddOverrides(out.recs, r.lookups.AddOverrides)
		diag.Outputs = append(diag.Outputs, stats)
	}

	diag.Log(log)
	return res, nil
}

func (r *Runner) processSource(ctx context.Context, in Input, keys *ParcelKeySet) (sourceBatch, *SourceStats, error) {
	m, err := MappingFor(in.Kind, MappingOptions{Lookups: r.lookups, SingleFamilyMarker: r.opts.SingleFamilyMarker})
	if err != nil {
		return sourceBatch{}, nil, err
	}
	if err := m.Validate(in.Layer); err != nil {
		return sourceBatch{}, nil, err
	}

	att, err := r.attacher.Attach(ctx, in.Layer)
	if err != nil {
		return sourceBatch{}, nil, err
	}
	recs, notes, err := r.normalizer.Normalize(ctx, m, in.Layer, att)
	if err != nil {
		return sourceBatch{}, nil, err
	}

	stats := &SourceStats{
		Name:       in.Name,
		Kind:       in.Kind,
		Source:     m.Source,
		Raw:        in.Layer.Len(),
		NoLocation: att.NoLocation,
		Unlocated:  att.Unlocated,
		Notes:      notes,
	}

	if m.InclColumn != "" {
		stats.Included = CountIncluded(in.Layer, m.InclColumn)
		recs, err = FilterIncluded(m.Source, in.Layer.Name, stats.Included, recs)
		if err != nil {
			return sourceBatch{}, nil, err
		}
	} else {
		stats.Included = len(recs)
	}

	kept, dropped := keys.Admit(recs, m.Source == model.SourceOpportunitySite)
	stats.Kept = len(kept)
	stats.Deduped = dropped
	return sourceBatch{source: m.Source, recs: kept}, stats, nil
}

// orderInputs sorts inputs by source priority, keeping configuration order
// within a source.
func orderInputs(inputs []Input) ([]Input, error) {
	out := make([]Input, len(inputs))
	copy(out, inputs)
	prio := make(map[string]int, len(out))
	for _, in := range out {
		src, err := SourceForKind(in.Kind)
		if err != nil {
			return nil, err
		}
		if in.Layer == nil {
			return nil, eris.Errorf("conflate: source %s has no layer", in.Name)
		}
		prio[in.Kind] = src.Priority()
	}
	sort.SliceStable(out, func(i, j int) bool { return prio[out[i].Kind] < prio[out[j].Kind] })
	return out, nil
}

func recsOf(batches []sourceBatch) [][]*model.DevelopmentRecord {
	out := make([][]*model.DevelopmentRecord, len(batches))
	for i, b := range batches {
		out[i] = b.recs
	}
	return out
}
