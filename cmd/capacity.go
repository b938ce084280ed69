package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/smelt-cli/internal/capacity"
	"github.com/sells-group/smelt-cli/internal/config"
	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/model"
	"github.com/sells-group/smelt-cli/internal/store"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Build the parcel zoning capacity table",
}

var capacityRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Combine and impute zoning capacity",
	Long: "Joins the parcel, pba40 zoning, basis capacity, zoning modification and jurisdiction tables, " +
		"imputes missing max_dua and max_far per dataset, and writes the combined table with its QA reports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if out, _ := cmd.Flags().GetString("output-dir"); out != "" {
			cfg.Capacity.OutputDir = out
		}
		if cmd.Flags().Changed("no-qa") {
			cfg.Capacity.WriteQA = false
		}
		if err := cfg.Validate("capacity"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return recordRun(ctx, st, model.RunKindCapacity, func(ctx context.Context) (map[string]any, error) {
			return runCapacity(ctx, cfg.Capacity, st, time.Now())
		})
	},
}

func init() {
	capacityRunCmd.Flags().String("output-dir", "", "directory for the capacity outputs (overrides capacity.output_dir)")
	capacityRunCmd.Flags().Bool("no-qa", false, "skip the QA comparison reports")

	capacityCmd.AddCommand(capacityRunCmd)
	rootCmd.AddCommand(capacityCmd)
}

// runCapacity loads the capacity inputs, runs the imputation and writes the
// outputs.
func runCapacity(ctx context.Context, cc config.CapacityConfig, st store.Store, now time.Time) (map[string]any, error) {
	in, err := capacity.LoadInputs(ctx, cc)
	if err != nil {
		return nil, err
	}

	res, err := capacity.NewRunner(capacity.Options{Workers: cc.Workers}).Run(ctx, in)
	if err != nil {
		return nil, err
	}

	files, err := writeCapacityOutputs(cc.OutputDir, export.DateStamp(now), res, cc.WriteQA)
	if err != nil {
		return nil, err
	}

	n, err := st.WriteCapacity(ctx, res.Parcels)
	if err != nil {
		removeOutputs(files)
		return nil, err
	}
	if n > 0 {
		zap.L().Info("capacity table stored", zap.Int64("rows", n))
	}

	md := res.Summary.Metadata()
	md["files"] = files
	return md, nil
}

// writeCapacityOutputs writes the combined table to dir and, when qa is set,
// the comparison and plu id reports to dir/qa. On error the files it already
// wrote are removed.
func writeCapacityOutputs(dir, stamp string, res *capacity.Result, qa bool) (_ []string, err error) {
	path := export.Path(dir, stamp, "p10_plu_boc_allAttrs", ".csv")
	files := []string{path}
	defer func() {
		if err != nil {
			removeOutputs(files)
		}
	}()
	if err = export.WriteCSV(path, export.CapacityColumns(), export.CapacityRows(res.Parcels)); err != nil {
		return nil, err
	}
	if !qa {
		return files, nil
	}

	qaDir := filepath.Join(dir, "qa")
	reports := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"devType_comparison", export.ComparisonColumns(), export.ComparisonRows(res.Comparison)},
		{"missing_plu_id_basis", export.MissingIDColumns, export.MissingIDRows(res.MissingPLUIDBasis)},
		{"missing_zoning_id_pba40", export.MissingIDColumns, export.MissingIDRows(res.MissingZoningIDPBA40)},
	}
	for _, r := range reports {
		path := export.Path(qaDir, stamp, r.name, ".csv")
		files = append(files, path)
		if err = export.WriteCSV(path, r.header, r.rows); err != nil {
			return nil, err
		}
	}
	return files, nil
}
