package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if errs := multierr.Errors(err); len(errs) > 1 {
		return h.handleErrorList(errs)
	}
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}
	return h.handleGenericError(err)
}

// handleReconcilerError handles ReconcilerError with detailed context
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := h.getCategoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleErrorList prints aggregated failures, such as the lines an
// automatic pass skipped, and exits with the worst code among them.
func (h *CLIErrorHandler) handleErrorList(errs []error) int {
	fmt.Fprintf(h.out, "%s\n", formatErrorList(errs))

	code := 1
	var reconcilerErrs []*errors.ReconcilerError
	for _, err := range errs {
		if re, ok := errors.AsReconcilerError(err); ok {
			reconcilerErrs = append(reconcilerErrs, re)
		}
	}
	if len(reconcilerErrs) > 0 {
		code = errors.NewErrorSummary(reconcilerErrs).GetExitCode()
	}
	return code
}

// handleGenericError handles non-ReconcilerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case h.isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check the --db, --fixture and --queue paths\n")
		return 2
	case h.isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case h.isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryNotFound:
		return `Not found help:
• Check the statement line, ledger line or journal id
• Run 'reconciler init' if the database is empty
• Reconciled statement lines cannot be opened again`

	case errors.CategoryInvalid:
		return `Reconciliation help:
• The entry must balance and no line may stay on the suspense account
• Match open lines with --match, apply a model with --model or --rules
• Send the open balance to an account with --account`

	case errors.CategoryConcurrency:
		return `Concurrency help:
• A matched ledger line changed while the session was open
• Run the command again to reload the open lines`

	case errors.CategoryRate:
		return `Currency help:
• Add a rate for the currency on or before the statement date to the fixture`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and BANKREC_ environment variables
• Verify configuration file syntax if using --config
• Validate the ledger fixture (accounts, journals and currencies)`

	case errors.CategoryStorage:
		return `Storage help:
• Check that the database and queue files are writable
• Only one process may write the queue file at a time`

	default:
		return ""
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// formatErrorList formats several errors in a user-friendly way
func formatErrorList(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return fmt.Sprintf("Error: %v", errs[0])
	}

	lines := []string{fmt.Sprintf("Found %d errors:", len(errs))}
	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
	}
	return strings.Join(lines, "\n")
}
