package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang-bankrec-service/cmd/reconciler/config"
	fixtures "golang-bankrec-service/internal/config"
	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"go.uber.org/multierr"
)

const fixturePath = "../../../testdata/fixture.yaml"

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		DatabasePath: filepath.Join(t.TempDir(), "bankrec.db"),
		FixturePath:  fixturePath,
		OutputFormat: "json",
		SessionTTL:   time.Hour,
		BatchSize:    10,
		TimeBudget:   time.Minute,
	}
}

// initLedger runs the init command and returns the ids it assigned.
func initLedger(t *testing.T, settings *config.Settings) *fixtures.SeedResult {
	t.Helper()
	var out bytes.Buffer
	if err := runInit(context.Background(), settings, logger.NewNopLogger(), &out); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	var seeded fixtures.SeedResult
	if err := json.Unmarshal(out.Bytes(), &seeded); err != nil {
		t.Fatalf("init output is not JSON: %v\n%s", err, out.String())
	}
	if len(seeded.StatementLineIDs) != 3 || len(seeded.LedgerLineIDs) != 3 {
		t.Fatalf("unexpected seed result %+v", seeded)
	}
	return &seeded
}

func openTestRuntime(t *testing.T, settings *config.Settings) *runtime {
	t.Helper()
	rt, err := openRuntime(settings, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestReconcileOptionsValidate(t *testing.T) {
	tests := []struct {
		name          string
		opts          reconcileOptions
		errorContains string
	}{
		{name: "line only", opts: reconcileOptions{StatementLineID: 1}},
		{name: "rules and validate", opts: reconcileOptions{StatementLineID: 1, Rules: true, Validate: true}},
		{name: "missing line", opts: reconcileOptions{}, errorContains: "positive statement line id"},
		{name: "negative model", opts: reconcileOptions{StatementLineID: 1, ModelID: -1}, errorContains: "cannot be negative"},
		{name: "invalid match", opts: reconcileOptions{StatementLineID: 1, LedgerLineIDs: []int64{3, 0}}, errorContains: "invalid ledger line id 0"},
		{name: "validate without steps", opts: reconcileOptions{StatementLineID: 1, Validate: true}, errorContains: "nothing to validate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error containing %q, got %v", tt.errorContains, err)
			}
		})
	}
}

func TestRunReconcile_MatchAndValidate(t *testing.T) {
	settings := testSettings(t)
	seeded := initLedger(t, settings)
	rt := openTestRuntime(t, settings)
	ctx := context.Background()

	result, err := runReconcile(ctx, rt.service, reconcileOptions{
		StatementLineID: seeded.StatementLineIDs[0],
		LedgerLineIDs:   []int64{seeded.LedgerLineIDs[0]},
		Validate:        true,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	validation, ok := result.(*reconciler.ValidationResult)
	if !ok {
		t.Fatalf("expected a validation result, got %T", result)
	}
	if validation.Commit == nil || validation.Commit.EntryID == 0 {
		t.Fatalf("expected a posted entry, got %+v", validation.Commit)
	}
	if validation.Snapshot.State != session.StateReconciled {
		t.Errorf("expected reconciled state, got %s", validation.Snapshot.State)
	}
	if rt.service.OpenSessions() != 0 {
		t.Errorf("expected no open session after validation, got %d", rt.service.OpenSessions())
	}

	_, err = runReconcile(ctx, rt.service, reconcileOptions{StatementLineID: seeded.StatementLineIDs[0]})
	if !errors.HasCode(err, errors.CodeAlreadyReconciled) {
		t.Errorf("expected already reconciled, got %v", err)
	}

	info, err := rt.service.CollectSummaryInfo(ctx, 1)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if info.UnreconciledCount != 2 {
		t.Errorf("expected 2 lines left to reconcile, got %d", info.UnreconciledCount)
	}
}

func TestRunReconcile_AssignOpenBalance(t *testing.T) {
	settings := testSettings(t)
	seeded := initLedger(t, settings)
	rt := openTestRuntime(t, settings)
	ctx := context.Background()
	feesLine := seeded.StatementLineIDs[2]

	// Without an account the open balance stays on the suspense account.
	result, err := runReconcile(ctx, rt.service, reconcileOptions{StatementLineID: feesLine})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	snapshot := result.(*reconciler.Snapshot)
	if snapshot.State != session.StateInvalid {
		t.Errorf("expected an invalid session on the suspense account, got %s", snapshot.State)
	}
	if rt.service.OpenSessions() != 0 {
		t.Errorf("expected the session to be closed, got %d open", rt.service.OpenSessions())
	}

	result, err = runReconcile(ctx, rt.service, reconcileOptions{StatementLineID: feesLine, AccountID: 21, Validate: true})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	validation := result.(*reconciler.ValidationResult)
	if validation.Commit == nil {
		t.Fatal("expected a posted entry")
	}
	for _, line := range validation.Snapshot.Lines {
		if line.Flag == session.FlagManual && line.AccountID != 21 {
			t.Errorf("expected the open balance on account 21, got %d", line.AccountID)
		}
	}
}

func TestRunReconcile_InvalidValidationReportsSession(t *testing.T) {
	settings := testSettings(t)
	seeded := initLedger(t, settings)
	rt := openTestRuntime(t, settings)

	result, err := runReconcile(context.Background(), rt.service, reconcileOptions{
		StatementLineID: seeded.StatementLineIDs[2],
		Rules:           true,
		Validate:        true,
	})
	if !errors.HasCode(err, errors.CodeSuspenseAccount) {
		t.Fatalf("expected suspense account error, got %v", err)
	}
	validation, ok := result.(*reconciler.ValidationResult)
	if !ok || validation.Snapshot == nil {
		t.Fatalf("expected the rejected session in the result, got %T", result)
	}
	if validation.Commit != nil {
		t.Error("expected nothing posted")
	}
	if rt.service.OpenSessions() != 0 {
		t.Errorf("expected the rejected session to be closed, got %d open", rt.service.OpenSessions())
	}
}

func TestRunReconcile_AccountWithoutOpenBalance(t *testing.T) {
	settings := testSettings(t)
	seeded := initLedger(t, settings)
	rt := openTestRuntime(t, settings)

	_, err := runReconcile(context.Background(), rt.service, reconcileOptions{
		StatementLineID: seeded.StatementLineIDs[0],
		LedgerLineIDs:   []int64{seeded.LedgerLineIDs[0]},
		AccountID:       21,
	})
	if !errors.HasCode(err, errors.CodeInvalidLine) {
		t.Errorf("expected invalid line, got %v", err)
	}
}

func TestRunAutoReconcile(t *testing.T) {
	settings := testSettings(t)
	seeded := initLedger(t, settings)
	rt := openTestRuntime(t, settings)

	report, _ := runAutoReconcile(context.Background(), rt.service, seeded.StatementLineIDs)
	if report == nil {
		t.Fatal("expected a report")
	}
	if len(report.InspectedIDs) != 3 {
		t.Errorf("expected 3 inspected lines, got %v", report.InspectedIDs)
	}
	found := false
	for _, id := range report.ReconciledIDs {
		if id == seeded.StatementLineIDs[0] {
			found = true
		}
	}
	if !found {
		t.Errorf("expected statement line %d to be reconciled, got %v", seeded.StatementLineIDs[0], report.ReconciledIDs)
	}
}

func TestWriteReportToFile(t *testing.T) {
	settings := testSettings(t)
	settings.OutputFormat = "csv"
	settings.OutputFile = filepath.Join(t.TempDir(), "summary.csv")

	info := &reconciler.SummaryInfo{JournalID: 1, BalanceAmount: "$ 2257.50", UnreconciledCount: 3}
	if err := writeReport(settings, logger.NewNopLogger(), info, &bytes.Buffer{}); err != nil {
		t.Fatalf("write report failed: %v", err)
	}
	data, err := os.ReadFile(settings.OutputFile)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	if !strings.HasPrefix(string(data), "Journal,Balance") || !strings.Contains(string(data), "$ 2257.50") {
		t.Errorf("unexpected report:\n%s", data)
	}
}

func TestOpenRuntime_Errors(t *testing.T) {
	settings := testSettings(t)
	settings.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := openRuntime(settings, logger.NewNopLogger()); !errors.HasCode(err, errors.CodeMissingConfig) {
		t.Errorf("expected missing config, got %v", err)
	}
}

func TestOpenRuntime_WithQueue(t *testing.T) {
	settings := testSettings(t)
	settings.QueuePath = filepath.Join(t.TempDir(), "bankrec.bolt")
	initLedger(t, settings)
	rt := openTestRuntime(t, settings)

	if rt.queue == nil {
		t.Fatal("expected a bbolt queue")
	}
	pending, err := rt.queue.Pending(context.Background())
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected an empty queue, got %d tasks", len(pending))
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		contains []string
	}{
		{name: "nil", err: nil, wantCode: 0},
		{
			name:     "not found",
			err:      errors.NotFoundError(errors.CodeStatementLineNotFound, "statement line", 9),
			wantCode: 2,
			contains: []string{"Error:", "Not found help"},
		},
		{
			name:     "configuration",
			err:      errors.ConfigurationError(errors.CodeMissingConfig, "fixture", "x.yaml", nil).WithSuggestion("Check the --fixture path"),
			wantCode: 4,
			contains: []string{"Suggestion: Check the --fixture path", "BANKREC_"},
		},
		{
			name: "aggregated failures",
			err: multierr.Combine(
				errors.InvalidError(errors.CodeUnbalanced, "statement line 3 does not balance"),
				errors.RateUnavailableError("EUR", "2017-01-05"),
			),
			wantCode: 5,
			contains: []string{"Found 2 errors:", "1. ", "2. "},
		},
		{
			name:     "file not found",
			err:      fmt.Errorf("open fixture: %w", os.ErrNotExist),
			wantCode: 2,
			contains: []string{"File not found"},
		},
		{
			name:     "generic",
			err:      fmt.Errorf("boom"),
			wantCode: 1,
			contains: []string{"Error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &CLIErrorHandler{logger: logger.NewNopLogger(), out: &out}
			if code := h.HandleError(tt.err); code != tt.wantCode {
				t.Errorf("expected exit code %d, got %d", tt.wantCode, code)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"init", "reconcile", "autoreconcile", "summary", "serve", "version"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}

	for _, flag := range []string{"line", "model", "rules", "match", "account", "validate"} {
		if reconcileCmd.Flags().Lookup(flag) == nil {
			t.Errorf("reconcile flag %q not found", flag)
		}
	}
	for _, flag := range []string{"db", "fixture", "queue", "output-format", "output-file"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("global flag %q not found", flag)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.0", "abc123", "2024-01-01")
	defer SetVersionInfo("dev", "unknown", "unknown")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "reconciler 1.2.0 (commit abc123") {
		t.Errorf("unexpected version output %q", out.String())
	}
}
