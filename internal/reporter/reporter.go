// Package reporter renders reconciliation results for the command line.
//
// The generator writes session snapshots, validation results, automatic
// reconciliation reports and journal summaries in one of three formats:
//   - Console: human-readable output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one record per line for spreadsheet applications
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	if err != nil {
//		return err
//	}
//	err = generator.GenerateReport(snapshot, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"golang-bankrec-service/internal/config"
	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/scheduler"
	"golang-bankrec-service/internal/session"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeLines    bool `json:"include_lines"`
	IncludeFailures bool `json:"include_failures"`
	IncludeIDs      bool `json:"include_ids"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// SortByIndex orders session lines by index instead of display order.
	SortByIndex bool `json:"sort_by_index"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatConsole,
		IncludeLines:    true,
		IncludeFailures: true,
		IncludeIDs:      false,
		TableMaxWidth:   120,
		CSVDelimiter:    ',',
		CSVHeaders:      true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}
	return nil
}

// ReportGenerator renders reconciliation results in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if config.CSVDelimiter == 0 {
		config.CSVDelimiter = ','
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes result to writer. Supported results are
// *reconciler.Snapshot, *reconciler.ValidationResult, *scheduler.Report,
// *reconciler.SummaryInfo and *config.SeedResult.
func (rg *ReportGenerator) GenerateReport(result interface{}, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if rg.config.Format == FormatJSON {
		return rg.generateJSONReport(result, writer)
	}

	csvOut := rg.config.Format == FormatCSV
	switch r := result.(type) {
	case *reconciler.Snapshot:
		if csvOut {
			return rg.sessionCSV(r, writer)
		}
		rg.sessionConsole(r, writer)
	case *reconciler.ValidationResult:
		if r.Snapshot == nil {
			return fmt.Errorf("validation result has no session")
		}
		if csvOut {
			return rg.sessionCSV(r.Snapshot, writer)
		}
		rg.validationConsole(r, writer)
	case *scheduler.Report:
		if csvOut {
			return rg.autoReconcileCSV(r, writer)
		}
		rg.autoReconcileConsole(r, writer)
	case *reconciler.SummaryInfo:
		if csvOut {
			return rg.summaryCSV(r, writer)
		}
		rg.summaryConsole(r, writer)
	case *config.SeedResult:
		if csvOut {
			return rg.seedCSV(r, writer)
		}
		rg.seedConsole(r, writer)
	default:
		return fmt.Errorf("unsupported result type %T", result)
	}
	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterForOutput(result))
}

func (rg *ReportGenerator) filterForOutput(result interface{}) interface{} {
	switch r := result.(type) {
	case *reconciler.Snapshot:
		if rg.config.IncludeLines {
			return r
		}
		filtered := *r
		filtered.Lines = nil
		return &filtered
	case *scheduler.Report:
		filtered := *r
		if !rg.config.IncludeFailures {
			filtered.Failures = nil
		}
		if !rg.config.IncludeIDs {
			filtered.InspectedIDs = nil
		}
		return &filtered
	}
	return result
}

// Console output

func (rg *ReportGenerator) sessionConsole(s *reconciler.Snapshot, writer io.Writer) {
	fmt.Fprintf(writer, "RECONCILIATION SESSION %s\n", s.ID)
	fmt.Fprintf(writer, "Statement Line: %d\n", s.StatementLineID)
	fmt.Fprintf(writer, "State:          %s\n", s.State)
	if s.PartnerID != 0 {
		fmt.Fprintf(writer, "Partner:        %d\n", s.PartnerID)
	}
	if s.ReconcileModelID != 0 {
		fmt.Fprintf(writer, "Model:          %d (auto reconcile: %t)\n", s.ReconcileModelID, s.AutoReconcile)
	}
	if s.ToCheck {
		fmt.Fprintf(writer, "To Check:       yes\n")
	}
	fmt.Fprintf(writer, "Total:          %s\n", s.Total.StringFixed(2))
	if s.Problem != "" {
		fmt.Fprintf(writer, "Problem:        %s\n", s.Problem)
	}
	for _, w := range s.RateWarnings {
		fmt.Fprintf(writer, "Warning:        %s\n", w)
	}

	if rg.config.IncludeLines && len(s.Lines) > 0 {
		fmt.Fprintf(writer, "\n=== LINES ===\n")
		rg.printLines(rg.orderedLines(s.Lines), writer)
	}
}

func (rg *ReportGenerator) validationConsole(r *reconciler.ValidationResult, writer io.Writer) {
	rg.sessionConsole(r.Snapshot, writer)
	if r.Commit == nil {
		return
	}
	fmt.Fprintf(writer, "\n=== COMMIT ===\n")
	fmt.Fprintf(writer, "Entry:          %d\n", r.Commit.EntryID)
}

func (rg *ReportGenerator) printLines(lines []session.Line, writer io.Writer) {
	nameWidth := rg.config.TableMaxWidth - 70
	if nameWidth < 10 {
		nameWidth = 10
	}
	fmt.Fprintf(writer, "%-5s %-14s %-8s %-*s %14s %14s %-4s\n",
		"Index", "Flag", "Account", nameWidth, "Label", "Amount", "Balance", "Cur")
	for _, l := range lines {
		fmt.Fprintf(writer, "%-5d %-14s %-8d %-*s %14s %14s %-4s\n",
			l.Index,
			l.Flag,
			l.AccountID,
			nameWidth, truncate(l.Name, nameWidth),
			l.AmountCurrency.StringFixed(2),
			l.Balance.StringFixed(2),
			l.Currency.String())
	}
}

func (rg *ReportGenerator) orderedLines(lines []session.Line) []session.Line {
	if !rg.config.SortByIndex {
		return lines
	}
	sorted := make([]session.Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return sorted
}

func (rg *ReportGenerator) autoReconcileConsole(r *scheduler.Report, writer io.Writer) {
	fmt.Fprintf(writer, "AUTOMATIC RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Started: %s\n", r.StartedAt.Format(time.RFC3339))
	if r.Skipped != "" {
		fmt.Fprintf(writer, "Skipped: %s\n", r.Skipped)
		return
	}
	fmt.Fprintf(writer, "Elapsed: %v\n\n", r.Stats.Elapsed)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Selected:   %d\n", r.Stats.Total)
	fmt.Fprintf(writer, "Inspected:  %d\n", r.Stats.Inspected)
	fmt.Fprintf(writer, "Reconciled: %d (%.1f%%)\n", r.Stats.Reconciled,
		rg.calculatePercentage(r.Stats.Reconciled, r.Stats.Inspected))
	fmt.Fprintf(writer, "Failed:     %d\n", r.Stats.Failed)
	if r.BudgetExhausted {
		fmt.Fprintf(writer, "Budget exhausted, next line %d\n", r.RemainingLineID)
	}
	if r.Continuation != nil {
		fmt.Fprintf(writer, "Continuation scheduled at %s\n", r.Continuation.RunAt.Format(time.RFC3339))
	}

	if len(r.ReconciledIDs) > 0 {
		fmt.Fprintf(writer, "\n=== RECONCILED LINES ===\n")
		printIDs(r.ReconciledIDs, writer)
	}
	if rg.config.IncludeFailures && len(r.Failures) > 0 {
		fmt.Fprintf(writer, "\n=== FAILURES ===\n")
		for _, f := range r.Failures {
			fmt.Fprintf(writer, "  - %d: %s\n", f.StatementLineID, f.Error)
		}
	}
}

func (rg *ReportGenerator) summaryConsole(info *reconciler.SummaryInfo, writer io.Writer) {
	fmt.Fprintf(writer, "JOURNAL SUMMARY\n")
	fmt.Fprintf(writer, "Journal:            %d\n", info.JournalID)
	fmt.Fprintf(writer, "Balance:            %s\n", info.BalanceAmount)
	fmt.Fprintf(writer, "Lines to reconcile: %d\n", info.UnreconciledCount)
}

func (rg *ReportGenerator) seedConsole(r *config.SeedResult, writer io.Writer) {
	fmt.Fprintf(writer, "LEDGER INITIALIZED\n")
	fmt.Fprintf(writer, "Opening balances: %d\n", r.Journals)
	fmt.Fprintf(writer, "Ledger lines:     %d\n", len(r.LedgerLineIDs))
	fmt.Fprintf(writer, "Statement lines:  %d\n", len(r.StatementLineIDs))
}

func printIDs(ids []int64, writer io.Writer) {
	for i, id := range ids {
		fmt.Fprintf(writer, "  %d. %d\n", i+1, id)
		if i >= 9 && len(ids) > 10 {
			fmt.Fprintf(writer, "  ... and %d more\n", len(ids)-10)
			break
		}
	}
}

// CSV output

func (rg *ReportGenerator) newCSVWriter(writer io.Writer) *csv.Writer {
	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	return w
}

func (rg *ReportGenerator) writeRecords(writer io.Writer, headers []string, records [][]string) error {
	w := rg.newCSVWriter(writer)
	if rg.config.CSVHeaders {
		if err := w.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}
	return nil
}

func (rg *ReportGenerator) sessionCSV(s *reconciler.Snapshot, writer io.Writer) error {
	headers := []string{
		"Session", "State", "Index", "Flag", "Account", "Partner",
		"Label", "Currency", "Amount_Currency", "Balance", "Source_Line",
	}
	var records [][]string
	for _, l := range rg.orderedLines(s.Lines) {
		records = append(records, []string{
			s.ID,
			string(s.State),
			strconv.Itoa(l.Index),
			string(l.Flag),
			strconv.FormatInt(l.AccountID, 10),
			formatID(l.PartnerID),
			l.Name,
			l.Currency.String(),
			l.AmountCurrency.String(),
			l.Balance.String(),
			formatID(l.SourceLineID()),
		})
	}
	return rg.writeRecords(writer, headers, records)
}

func (rg *ReportGenerator) autoReconcileCSV(r *scheduler.Report, writer io.Writer) error {
	headers := []string{"Statement_Line", "Status", "Notes"}
	var records [][]string
	for _, id := range r.ReconciledIDs {
		records = append(records, []string{strconv.FormatInt(id, 10), "Reconciled", ""})
	}
	if rg.config.IncludeFailures {
		for _, f := range r.Failures {
			records = append(records, []string{strconv.FormatInt(f.StatementLineID, 10), "Failed", f.Error})
		}
	}
	return rg.writeRecords(writer, headers, records)
}

func (rg *ReportGenerator) summaryCSV(info *reconciler.SummaryInfo, writer io.Writer) error {
	return rg.writeRecords(writer,
		[]string{"Journal", "Balance", "Formatted_Balance", "Unreconciled"},
		[][]string{{
			strconv.FormatInt(info.JournalID, 10),
			info.Balance.String(),
			info.BalanceAmount,
			strconv.Itoa(info.UnreconciledCount),
		}})
}

func (rg *ReportGenerator) seedCSV(r *config.SeedResult, writer io.Writer) error {
	var records [][]string
	for _, id := range r.LedgerLineIDs {
		records = append(records, []string{"Ledger Line", strconv.FormatInt(id, 10)})
	}
	for _, id := range r.StatementLineIDs {
		records = append(records, []string{"Statement Line", strconv.FormatInt(id, 10)})
	}
	return rg.writeRecords(writer, []string{"Type", "ID"}, records)
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}
	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
