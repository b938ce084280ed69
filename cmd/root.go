package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/smelt-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "smelt-cli",
	Short: "Development pipeline conflation and zoning capacity imputation",
	Long:  "Conflates development project points from several sources into the pipeline and development_projects tables, and imputes missing zoning capacity for the parcel base map.",
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// The pre-run hook is attached in init because runName refers to rootCmd,
// which would otherwise form an initialization cycle.
func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log.ForRun(runName(cmd), time.Now())); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	}
}

// runName names a run after its top-level command, so "devproj run" logs
// to devproj_<timestamp>.log.
func runName(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent() != rootCmd {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
