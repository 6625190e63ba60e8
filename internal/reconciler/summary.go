package reconciler

import (
	"context"

	"github.com/shopspring/decimal"
)

// SummaryInfo is the dashboard figure of a bank journal.
type SummaryInfo struct {
	JournalID         int64           `json:"journal_id"`
	BalanceAmount     string          `json:"balance_amount"`
	Balance           decimal.Decimal `json:"balance"`
	UnreconciledCount int             `json:"unreconciled_count"`
}

// CollectSummaryInfo returns the running balance and the number of
// unreconciled statement lines of a journal. An unknown journal yields an
// empty balance and no error.
func (s *Service) CollectSummaryInfo(ctx context.Context, journalID int64) (*SummaryInfo, error) {
	info := &SummaryInfo{JournalID: journalID}
	if _, err := s.deps.Chart.Journal(journalID); err != nil {
		return info, nil
	}

	summary, err := s.store.JournalSummary(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return info, nil
	}

	info.Balance = summary.Balance
	info.BalanceAmount = s.deps.Chart.CompanyCurrency().Format(summary.Balance)
	info.UnreconciledCount = summary.UnreconciledCount
	return info, nil
}
