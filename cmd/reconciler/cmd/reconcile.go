package cmd

import (
	"context"
	"fmt"
	"strconv"

	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"

	"github.com/spf13/cobra"
)

// reconcileOptions are the steps applied to one session, in this order:
// model, matching rules, matches, account of the open balance, validation.
type reconcileOptions struct {
	StatementLineID int64
	ModelID         int64
	Rules           bool
	LedgerLineIDs   []int64
	AccountID       int64
	Validate        bool
}

var reconcileFlags reconcileOptions

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile one bank statement line",
	Long: `Reconcile opens a session on one statement line, applies the requested
steps and prints the resulting lines. Nothing is posted unless --validate is
given; an unbalanced session or one still on the suspense account is not
posted and the command fails with the reason.

Examples:
  # Show the lines proposed by the matching rules
  reconciler reconcile --line 3 --rules

  # Settle against two open invoices and post the entry
  reconciler reconcile --line 3 --match 1,2 --validate

  # Book bank fees with the write-off model
  reconciler reconcile --line 5 --model 2 --validate

  # Send the open balance to an account
  reconciler reconcile --line 5 --account 21 --validate --output-format json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcileCommand,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	flags := reconcileCmd.Flags()
	flags.Int64VarP(&reconcileFlags.StatementLineID, "line", "l", 0, "statement line id (required)")
	flags.Int64Var(&reconcileFlags.ModelID, "model", 0, "reconcile model to apply")
	flags.BoolVar(&reconcileFlags.Rules, "rules", false, "apply the matching rules")
	flags.Int64SliceVarP(&reconcileFlags.LedgerLineIDs, "match", "m", nil, "comma-separated ledger line ids to match")
	flags.Int64Var(&reconcileFlags.AccountID, "account", 0, "account receiving the open balance")
	flags.BoolVar(&reconcileFlags.Validate, "validate", false, "post the entry when the session is valid")

	_ = reconcileCmd.MarkFlagRequired("line")
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	return reconcileFlags.validate()
}

func (o *reconcileOptions) validate() error {
	if o.StatementLineID <= 0 {
		return fmt.Errorf("line must be a positive statement line id")
	}
	if o.ModelID < 0 || o.AccountID < 0 {
		return fmt.Errorf("model and account ids cannot be negative")
	}
	for _, id := range o.LedgerLineIDs {
		if id <= 0 {
			return fmt.Errorf("invalid ledger line id %d", id)
		}
	}
	if o.ModelID == 0 && !o.Rules && len(o.LedgerLineIDs) == 0 && o.AccountID == 0 && o.Validate {
		return fmt.Errorf("nothing to validate: give --rules, --model, --match or --account")
	}
	return nil
}

func runReconcileCommand(cmd *cobra.Command, args []string) error {
	settings, log, err := loadSettings()
	if err != nil {
		return err
	}
	rt, err := openRuntime(settings, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := runReconcile(cmd.Context(), rt.service, reconcileFlags)
	if result != nil {
		if werr := writeReport(settings, log, result, cmd.OutOrStdout()); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// runReconcile returns the last snapshot, or the validation result when
// validation was requested, together with the first error met.
func runReconcile(ctx context.Context, service *reconciler.Service, opts reconcileOptions) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	snapshot, err := service.OpenSession(ctx, opts.StatementLineID)
	if err != nil {
		return nil, err
	}
	id := snapshot.ID

	steps := []struct {
		enabled bool
		apply   func() (*reconciler.Snapshot, error)
	}{
		{opts.ModelID != 0, func() (*reconciler.Snapshot, error) {
			return service.SelectReconcileModel(ctx, id, opts.ModelID)
		}},
		{opts.Rules, func() (*reconciler.Snapshot, error) {
			return service.TriggerMatchingRules(ctx, id)
		}},
		{len(opts.LedgerLineIDs) > 0, func() (*reconciler.Snapshot, error) {
			return service.AddMatch(ctx, id, opts.LedgerLineIDs...)
		}},
		{opts.AccountID != 0, func() (*reconciler.Snapshot, error) {
			return assignOpenBalance(ctx, service, snapshot, opts.AccountID)
		}},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		next, err := step.apply()
		if next != nil {
			snapshot = next
		}
		if err != nil {
			_ = service.CloseSession(id)
			return snapshot, err
		}
	}

	if !opts.Validate {
		_ = service.CloseSession(id)
		return snapshot, nil
	}
	result, err := service.Validate(ctx, id)
	if err != nil {
		_ = service.CloseSession(id)
	}
	if result == nil {
		return snapshot, err
	}
	return result, err
}

// assignOpenBalance moves the auto-balance line of the session to accountID.
func assignOpenBalance(ctx context.Context, service *reconciler.Service, snapshot *reconciler.Snapshot, accountID int64) (*reconciler.Snapshot, error) {
	for _, line := range snapshot.Lines {
		if line.Flag == session.FlagAutoBalance {
			return service.EditField(ctx, snapshot.ID, line.Index, session.FieldAccount, strconv.FormatInt(accountID, 10))
		}
	}
	return snapshot, errors.InvalidError(errors.CodeInvalidLine, "the session has no open balance to assign").
		WithSuggestion("Drop --account, the lines already balance")
}
