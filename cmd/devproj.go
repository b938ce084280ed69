package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/smelt-cli/internal/config"
	"github.com/sells-group/smelt-cli/internal/conflate"
	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
	"github.com/sells-group/smelt-cli/internal/store"
)

var devprojCmd = &cobra.Command{
	Use:   "devproj",
	Short: "Build the pipeline and development_projects tables",
}

var devprojRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Conflate the configured source layers",
	Long: "Attaches every source point to its parcel, maps it into the canonical schema, " +
		"drops lower-priority duplicates and writes the pipeline and development_projects tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if out, _ := cmd.Flags().GetString("output-dir"); out != "" {
			cfg.Devproj.OutputDir = out
		}
		if cmd.Flags().Changed("no-shapefiles") {
			cfg.Devproj.WriteShapefiles = false
		}
		if err := cfg.Validate("devproj"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var locator geo.Locator
		if table, _ := cmd.Flags().GetString("parcels-table"); table != "" {
			pg, ok := st.(*store.PostgresStore)
			if !ok {
				return eris.New("devproj: --parcels-table needs the postgres store driver")
			}
			locator = geo.NewPostGISLocator(pg.Pool(), table, geo.WithAttributeColumns("residential_units"))
		}

		return recordRun(ctx, st, model.RunKindDevproj, func(ctx context.Context) (map[string]any, error) {
			return runDevproj(ctx, cfg.Devproj, st, locator, time.Now())
		})
	},
}

var devprojTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "Print the building type lookup table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lookups, err := conflate.LoadLookups(cfg.Devproj.LookupsPath)
		if err != nil {
			return err
		}
		formatBuildingTypes(os.Stdout, lookups.BuildingTypes)
		return nil
	},
}

func init() {
	devprojRunCmd.Flags().String("output-dir", "", "directory for the CSV and shapefile outputs (overrides devproj.output_dir)")
	devprojRunCmd.Flags().String("parcels-table", "", "resolve parcels with PostGIS against this schema-qualified table instead of the parcel layer")
	devprojRunCmd.Flags().Bool("no-shapefiles", false, "skip the point shapefile outputs")

	devprojCmd.AddCommand(devprojRunCmd)
	devprojCmd.AddCommand(devprojTypesCmd)
	rootCmd.AddCommand(devprojCmd)
}

// recordRun wraps fn in a run log entry: the run completes with fn's
// metadata or fails with its error.
func recordRun(ctx context.Context, st store.Store, kind model.RunKind, fn func(context.Context) (map[string]any, error)) error {
	log := zap.L().With(zap.String("component", "cmd"), zap.String("kind", string(kind)))

	run, err := st.StartRun(ctx, kind)
	if err != nil {
		return err
	}

	md, err := fn(ctx)
	if err != nil {
		if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
			log.Warn("failed to record run failure", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return err
	}

	if err := st.CompleteRun(ctx, run.ID, md); err != nil {
		return err
	}
	log.Info("run complete", zap.String("run_id", run.ID))
	return nil
}

// runDevproj conflates the configured sources and writes every output.
// Nothing is written until conflation has succeeded, and files of a run
// whose later writes fail are removed. A nil locator builds an in-memory
// index over the parcel layer.
func runDevproj(ctx context.Context, dc config.DevprojConfig, st store.Store, locator geo.Locator, now time.Time) (_ map[string]any, err error) {
	log := zap.L().With(zap.String("component", "devproj"))

	lookups, err := conflate.LoadLookups(dc.LookupsPath)
	if err != nil {
		return nil, err
	}

	if locator == nil {
		ix, err := loadParcelIndex(ctx, dc)
		if err != nil {
			return nil, err
		}
		locator = ix
	}

	inputs, err := loadSources(ctx, dc.Sources)
	if err != nil {
		return nil, err
	}

	runner := conflate.NewRunner(locator, lookups, conflate.Options{
		Scenarios:          dc.Scenarios,
		EditDate:           dc.EditDate,
		Editor:             dc.Editor,
		Workers:            dc.Workers,
		SingleFamilyMarker: dc.SingleFamilyMarker,
	})
	res, err := runner.Run(ctx, inputs)
	if err != nil {
		return nil, err
	}

	var buildings *conflate.BuildingsTable
	if dc.BuildingsPath != "" {
		base, err := layer.Open(ctx, dc.BuildingsPath)
		if err != nil {
			return nil, err
		}
		buildings, err = conflate.ComposeBuildings(base, res.Pipeline, lookups.B10Types)
		if err != nil {
			return nil, err
		}
		res.Diagnostics.Buildings = &buildings.Summary
		s := buildings.Summary
		log.Info("buildings composed",
			zap.Int("removed_units", s.RemovedUnits),
			zap.Int("built_units", s.BuiltUnits),
			zap.Float64("removed_nonres", s.RemovedNonres),
			zap.Float64("built_nonres", s.BuiltNonres),
			zap.Int("missing_type", s.MissingType))
	}

	stamp := export.Stamp(now)
	cols := export.DevprojColumns(dc.Scenarios)
	files, err := writeDevprojOutputs(dc.OutputDir, stamp, cols, res, dc.WriteShapefiles)
	if err != nil {
		return nil, err
	}
	// A failed store write leaves no files of this run behind.
	defer func() {
		if err != nil {
			removeOutputs(files)
		}
	}()

	if buildings != nil {
		if buildings.Summary.NetIncrease() {
			path := export.Path(dc.OutputDir, stamp, "buildings", ".csv")
			files = append(files, path)
			if err = export.WriteCSV(path, conflate.BuildingColumns, buildings.Rows); err != nil {
				return nil, err
			}
		} else {
			log.Warn("buildings table not written: build events do not add both units and non-residential sqft")
		}
	}

	for _, out := range []struct {
		table string
		recs  []*model.DevelopmentRecord
	}{
		{conflate.OutputPipeline, res.Pipeline},
		{conflate.OutputDevelopmentProjects, res.DevelopmentProjects},
	} {
		var n int64
		n, err = st.WriteDevelopmentProjects(ctx, out.table, cols, out.recs)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Info("table stored", zap.String("table", out.table), zap.Int64("rows", n))
		}
	}

	md := res.Diagnostics.Metadata()
	md["stamp"] = stamp
	md["files"] = files
	return md, nil
}

func loadParcelIndex(ctx context.Context, dc config.DevprojConfig) (*geo.ParcelIndex, error) {
	parcels, err := layer.Open(ctx, dc.ParcelsPath)
	if err != nil {
		return nil, err
	}
	ix, err := geo.NewParcelIndex(parcels)
	if err != nil {
		return nil, err
	}
	if dc.ParcelAttrsPath != "" {
		attrs, err := layer.Open(ctx, dc.ParcelAttrsPath)
		if err != nil {
			return nil, err
		}
		n, err := ix.JoinAttributes(attrs)
		if err != nil {
			return nil, err
		}
		zap.L().Info("parcel attributes joined", zap.Int("parcels", ix.Len()), zap.Int("matched", n))
	}
	return ix, nil
}

// loadSources reads every source layer concurrently, keeping configuration
// order.
func loadSources(ctx context.Context, sources []config.SourceConfig) ([]conflate.Input, error) {
	inputs := make([]conflate.Input, len(sources))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sc := range sources {
		g.Go(func() error {
			if _, err := conflate.SourceForKind(sc.Kind); err != nil {
				return err
			}
			l, err := layer.Open(gCtx, sc.Path)
			if err != nil {
				return err
			}
			name := sc.Name
			if name == "" {
				name = l.Name
			}
			inputs[i] = conflate.Input{Name: name, Kind: sc.Kind, Layer: l}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "devproj: load sources")
	}
	return inputs, nil
}

// writeDevprojOutputs writes the CSV exports and, when shapefiles is set,
// the point shapefiles of both tables. It returns the written paths; on
// error the files it already wrote are removed.
func writeDevprojOutputs(dir, stamp string, cols []export.Column, res *conflate.Result, shapefiles bool) (_ []string, err error) {
	log := zap.L().With(zap.String("component", "devproj.export"))
	var files []string
	defer func() {
		if err != nil {
			removeOutputs(files)
		}
	}()

	for _, out := range []struct {
		name string
		recs []*model.DevelopmentRecord
	}{
		{conflate.OutputPipeline, res.Pipeline},
		{conflate.OutputDevelopmentProjects, res.DevelopmentProjects},
	} {
		path := export.Path(dir, stamp, out.name, ".csv")
		files = append(files, path)
		if err = export.WriteCSV(path, export.Names(cols), export.Rows(cols, out.recs)); err != nil {
			return nil, err
		}

		if !shapefiles {
			continue
		}
		path = export.Path(dir, stamp, out.name, ".shp")
		files = append(files, path)
		var written, skipped int
		written, skipped, err = export.WriteShapefile(path, cols, out.recs)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			log.Warn("records without a point left out of the shapefile",
				zap.String("table", out.name), zap.Int("skipped", skipped))
		}
		log.Info("shapefile written", zap.String("path", path), zap.Int("features", written))
	}
	return files, nil
}

// removeOutputs deletes the given output files, with the .shx and .dbf
// companions of shapefiles. Missing files are ignored.
func removeOutputs(files []string) {
	log := zap.L().With(zap.String("component", "cmd"))
	for _, f := range files {
		paths := []string{f}
		if ext := filepath.Ext(f); ext == ".shp" {
			base := strings.TrimSuffix(f, ext)
			paths = append(paths, base+".shx", base+".dbf")
		}
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warn("failed to remove partial output", zap.String("path", p), zap.Error(err))
			}
		}
	}
}

// formatBuildingTypes writes the building type lookup as a table.
func formatBuildingTypes(out io.Writer, types conflate.BuildingTypes) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tSIMPLE\tTYPE_ID\tDEVELOPMENT_TYPE_ID")
	_, _ = fmt.Fprintln(w, "----\t------\t-------\t-------------------")
	for _, code := range types.Codes() {
		bt, _ := types.Lookup(code)
		devType := "null"
		if bt.DevelopmentTypeID != nil {
			devType = strconv.Itoa(*bt.DevelopmentTypeID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", code, bt.Simple, bt.TypeID, devType)
	}
	_ = w.Flush()
}
