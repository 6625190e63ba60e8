package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summaryJournalID int64

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the balance and the lines left to reconcile of a journal",
	Long: `Summary prints the running balance of a bank journal, formatted in the
company currency, and the number of statement lines still to reconcile.

Example:
  reconciler summary --journal 1`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if summaryJournalID <= 0 {
			return fmt.Errorf("journal must be a positive journal id")
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

		info, err := rt.service.CollectSummaryInfo(cmd.Context(), summaryJournalID)
		if err != nil {
			return err
		}
		return writeReport(settings, log, info, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().Int64VarP(&summaryJournalID, "journal", "j", 0, "bank journal id (required)")
	_ = summaryCmd.MarkFlagRequired("journal")
}
