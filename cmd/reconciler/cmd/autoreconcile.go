package cmd

import (
	"context"
	"fmt"
	"time"

	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/scheduler"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var autoReconcileLines []int64

var autoReconcileCmd = &cobra.Command{
	Use:   "autoreconcile",
	Short: "Run one automatic reconciliation pass",
	Long: `Autoreconcile applies the auto-reconcile models to the unreconciled
statement lines, oldest checked first, and posts every line the models settle.
Lines older than the recency cutoff are left alone unless listed with --lines,
which also lifts the time budget.

Examples:
  reconciler autoreconcile
  reconciler autoreconcile --batch-size 50 --time-budget 30s
  reconciler autoreconcile --lines 3,4,5 --output-format json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range autoReconcileLines {
			if id <= 0 {
				return fmt.Errorf("invalid statement line id %d", id)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, log, err := loadSettings()
		if err != nil {
			return err
		}
		rt, err := openRuntime(settings, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := runAutoReconcile(cmd.Context(), rt.service, autoReconcileLines)
		if report != nil {
			if werr := writeReport(settings, log, report, cmd.OutOrStdout()); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(autoReconcileCmd)

	flags := autoReconcileCmd.Flags()
	flags.Int("batch-size", scheduler.DefaultBatchSize, "maximum number of statement lines inspected")
	flags.Duration("time-budget", time.Minute, "stop before the next line once this much time has passed")
	flags.Duration("recency-cutoff", scheduler.DefaultRecencyCutoff, "skip statement lines older than this")
	flags.Int64SliceVar(&autoReconcileLines, "lines", nil, "comma-separated statement line ids to inspect")

	_ = viper.BindPFlag("batch-size", flags.Lookup("batch-size"))
	_ = viper.BindPFlag("time-budget", flags.Lookup("time-budget"))
	_ = viper.BindPFlag("recency-cutoff", flags.Lookup("recency-cutoff"))
}

// runAutoReconcile runs a pass with the configured defaults. Lines that
// failed are in the report; the error joins their causes.
func runAutoReconcile(ctx context.Context, service *reconciler.Service, lineIDs []int64) (*scheduler.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return service.AutoReconcile(ctx, scheduler.Options{LineIDs: lineIDs})
}
