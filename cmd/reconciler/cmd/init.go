package cmd

import (
	"context"
	"io"

	"golang-bankrec-service/cmd/reconciler/config"
	fixtures "golang-bankrec-service/internal/config"
	"golang-bankrec-service/internal/db"
	"golang-bankrec-service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the ledger database and load the fixture lines",
	Long: `Init creates the SQLite database, sets the journal opening balances and
loads the ledger and statement lines of the fixture. Fixture ids of lines are
ignored; the report lists the ids the database assigned.

Example:
  reconciler init --fixture ledger.yaml --db bankrec.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, log, err := loadSettings()
		if err != nil {
			return err
		}
		return runInit(cmd.Context(), settings, log, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(ctx context.Context, settings *config.Settings, log logger.Logger, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	fixture, err := fixtures.LoadFixture(settings.FixturePath)
	if err != nil {
		return err
	}
	// Validates the chart before anything is written.
	if _, err := fixture.Chart(); err != nil {
		return err
	}

	store, err := db.OpenStore(settings.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	result, err := fixture.Seed(ctx, store)
	if err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		"db":              settings.DatabasePath,
		"ledger_lines":    len(result.LedgerLineIDs),
		"statement_lines": len(result.StatementLineIDs),
	}).Info("Ledger initialized")
	return writeReport(settings, log, result, out)
}
