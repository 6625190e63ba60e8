// Package ledger defines the persistence boundary of the engine: reading
// statement and ledger lines and committing reconciliations atomically.
package ledger

import (
	"context"
	"time"

	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

// Reader is the read side used by sessions and matching rules.
type Reader interface {
	StatementLine(ctx context.Context, id int64) (*models.StatementLine, error)
	LedgerLines(ctx context.Context, ids []int64) ([]*models.LedgerLine, error)
	OpenLedgerLines(ctx context.Context, filter LedgerFilter) ([]*models.LedgerLine, error)
}

// Store is the full ledger store.
type Store interface {
	Reader

	CreateStatementLine(ctx context.Context, line *models.StatementLine) (int64, error)
	CreateLedgerLine(ctx context.Context, line *models.LedgerLine) (int64, error)
	FindStatementLines(ctx context.Context, filter StatementFilter) ([]*models.StatementLine, error)
	MarkChecked(ctx context.Context, ids []int64, at time.Time) error
	Commit(ctx context.Context, req *CommitRequest) (*CommitResult, error)
	JournalEntry(ctx context.Context, id int64) (*models.JournalEntry, error)
	Partials(ctx context.Context, ledgerLineID int64) ([]*models.Partial, error)
	SetOpeningBalance(ctx context.Context, journalID int64, balance decimal.Decimal) error
	JournalSummary(ctx context.Context, journalID int64) (*Summary, error)
	Close() error
}

// LedgerFilter selects open ledger lines.
type LedgerFilter struct {
	AccountIDs []int64
	PartnerID  int64
	ExcludeIDs []int64
	Limit      int
}

// StatementFilter selects statement lines. Results are ordered with never
// checked lines first, then by oldest check, then by id.
type StatementFilter struct {
	IDs          []int64
	Unreconciled bool
	DateAfter    time.Time
	Limit        int
}

// Settlement applies part of a commit to one ledger line.
type Settlement struct {
	LedgerLineID    int64
	ExpectedVersion int64
	// ItemIndex is the position of the settling item in CommitRequest.Entry.
	ItemIndex int
	// ResidualDelta and ResidualCurrencyDelta are added to the line residuals.
	ResidualDelta         decimal.Decimal
	ResidualCurrencyDelta decimal.Decimal
	// ExchangeIndex is the position in CommitRequest.ExchangeEntries, or -1.
	ExchangeIndex int
}

// CommitRequest is everything written when a session is validated.
type CommitRequest struct {
	StatementLineID int64
	PartnerID       int64
	Entry           *models.JournalEntry
	ExchangeEntries []*models.JournalEntry
	Settlements     []Settlement
}

// CommitResult carries the ids assigned by the store.
type CommitResult struct {
	EntryID          int64   `json:"entry_id"`
	ExchangeEntryIDs []int64 `json:"exchange_entry_ids,omitempty"`
	PartialIDs       []int64 `json:"partial_ids,omitempty"`
	ReconciledIDs    []int64 `json:"reconciled_ledger_line_ids,omitempty"`
}

// Summary aggregates a journal for the dashboard.
type Summary struct {
	JournalID         int64           `json:"journal_id"`
	Balance           decimal.Decimal `json:"balance"`
	UnreconciledCount int             `json:"unreconciled_count"`
}
