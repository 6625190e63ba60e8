// Package committer turns a balanced session into posted journal entries
// and reconciliation partials.
package committer

import (
	"context"
	"fmt"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"
)

// Committer validates sessions against a ledger store.
type Committer struct {
	store  ledger.Store
	chart  *chart.Chart
	logger logger.Logger
}

// New creates a committer.
func New(store ledger.Store, c *chart.Chart, log logger.Logger) *Committer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Committer{store: store, chart: c, logger: log.WithComponent("committer")}
}

// Commit writes the session and marks it reconciled. Nothing is written
// when the session is invalid or the store rejects the request.
func (c *Committer) Commit(ctx context.Context, s *session.Session) (*ledger.CommitResult, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}

	req := BuildRequest(s)
	st := s.StatementLine()
	if req.PartnerID != 0 && st.AccountNumber != "" {
		if owner, ok := c.chart.PartnerByBankAccount(st.AccountNumber); ok && owner.ID != req.PartnerID {
			return nil, errors.ConstraintViolationError(errors.CodeDuplicateBankAccount,
				fmt.Sprintf("bank account %s belongs to partner %d", st.AccountNumber, owner.ID), nil).
				WithContext("statement_line_id", st.ID)
		}
	}

	var result *ledger.CommitResult
	err := logger.TimedOperation("commit", c.logger.WithField("statement_line_id", st.ID), func() error {
		var err error
		result, err = c.store.Commit(ctx, req)
		return err
	})
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeTransactionFailed, "commit reconciliation")
	}

	if req.PartnerID != 0 && st.AccountNumber != "" {
		if err := c.chart.LinkBankAccount(req.PartnerID, st.AccountNumber); err != nil {
			c.logger.WithError(err).Warn("Bank account not linked to partner")
		}
	}
	s.MarkReconciled(result.EntryID)

	c.logger.WithFields(logger.Fields{
		"statement_line_id": st.ID,
		"entry_id":          result.EntryID,
		"exchange_entries":  len(result.ExchangeEntryIDs),
		"reconciled":        len(result.ReconciledIDs),
	}).Info("Session committed")
	return result, nil
}

// BuildRequest converts the session lines into the entries to post. Each
// matched line absorbs its exchange difference in the statement entry and
// the difference is booked against the ledger line in a separate entry.
// An entry holding amounts converted without a rate is flagged to check.
func BuildRequest(s *session.Session) *ledger.CommitRequest {
	st := s.StatementLine()
	lines := s.Lines()
	companyCur := s.CompanyCurrency()

	exchangeOf := make(map[int64]session.Line)
	for _, l := range lines {
		if l.Flag == session.FlagExchangeDiff {
			exchangeOf[l.SourceLineID()] = l
		}
	}

	partnerID := singlePartner(s, lines)
	entry := &models.JournalEntry{
		Kind:      models.EntryStatement,
		JournalID: st.JournalID,
		Date:      st.Date,
		Ref:       st.PaymentRef,
		PartnerID: partnerID,
		ToCheck:   s.ToCheck() || len(s.RateWarnings()) > 0,
	}
	req := &ledger.CommitRequest{StatementLineID: st.ID, PartnerID: partnerID, Entry: entry}

	for _, l := range lines {
		if l.Flag == session.FlagExchangeDiff {
			continue
		}
		item := models.JournalItem{
			AccountID:      l.AccountID,
			PartnerID:      l.PartnerID,
			Currency:       l.Currency.String(),
			AmountCurrency: l.AmountCurrency,
			Balance:        l.Balance,
			Name:           l.Name,
			TaxIDs:         l.TaxIDs,
			TaxTagIDs:      l.TaxTagIDs,
			Analytic:       l.Analytic,
		}
		if l.Tax != nil {
			item.TaxLineID = l.Tax.TaxID
		}
		if (l.Flag == session.FlagLiquidity || l.Flag == session.FlagAutoBalance) && item.PartnerID == 0 {
			item.PartnerID = partnerID
		}
		if l.Flag != session.FlagMatched {
			entry.Items = append(entry.Items, item)
			continue
		}

		item.MatchedLedgerLineID = l.SourceLineID()
		settlement := ledger.Settlement{
			LedgerLineID:          l.SourceLineID(),
			ExpectedVersion:       l.Matched.SourceVersion,
			ItemIndex:             len(entry.Items),
			ResidualDelta:         l.Balance,
			ResidualCurrencyDelta: l.AmountCurrency,
			ExchangeIndex:         -1,
		}
		if x, ok := exchangeOf[l.SourceLineID()]; ok {
			item.Balance = item.Balance.Add(x.Balance)
			if l.Currency.Equal(companyCur) {
				item.AmountCurrency = item.AmountCurrency.Add(x.AmountCurrency)
			}
			settlement.ExchangeIndex = len(req.ExchangeEntries)
			req.ExchangeEntries = append(req.ExchangeEntries, exchangeEntry(st, l, x))
		}
		entry.Items = append(entry.Items, item)
		req.Settlements = append(req.Settlements, settlement)
	}
	return req
}

func exchangeEntry(st *models.StatementLine, matched, x session.Line) *models.JournalEntry {
	return &models.JournalEntry{
		Kind:      models.EntryExchange,
		JournalID: st.JournalID,
		Date:      st.Date,
		Ref:       x.Name,
		PartnerID: matched.PartnerID,
		Items: []models.JournalItem{
			{
				AccountID:           matched.AccountID,
				PartnerID:           matched.PartnerID,
				Currency:            x.Currency.String(),
				AmountCurrency:      x.AmountCurrency.Neg(),
				Balance:             x.Balance.Neg(),
				Name:                x.Name,
				MatchedLedgerLineID: matched.SourceLineID(),
			},
			{
				AccountID:      x.AccountID,
				PartnerID:      matched.PartnerID,
				Currency:       x.Currency.String(),
				AmountCurrency: x.AmountCurrency,
				Balance:        x.Balance,
				Name:           x.Name,
			},
		},
	}
}

// singlePartner returns the partner when exactly one is involved.
func singlePartner(s *session.Session, lines []session.Line) int64 {
	partners := make(map[int64]bool)
	if s.PartnerID() != 0 {
		partners[s.PartnerID()] = true
	}
	for _, l := range lines {
		if l.PartnerID != 0 {
			partners[l.PartnerID] = true
		}
	}
	if len(partners) != 1 {
		return 0
	}
	for id := range partners {
		return id
	}
	return 0
}
