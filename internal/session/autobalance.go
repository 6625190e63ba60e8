package session

import (
	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

// recomputeAutoBalance replaces the auto-balance line by one absorbing the
// open amount, or drops it when the lines already balance.
func (s *Session) recomputeAutoBalance() {
	index := -1
	for _, l := range s.removeLines(func(l *Line) bool { return l.Flag == FlagAutoBalance }) {
		index = l.Index
	}

	openBalance := decimal.Zero
	openAmountCurrency := decimal.Zero
	for _, l := range s.lines {
		openBalance = openBalance.Sub(l.Balance)
		openAmountCurrency = openAmountCurrency.Sub(s.inTransactionCurrency(l))
	}
	openBalance = s.companyCur.Round(openBalance)
	openAmountCurrency = s.transCur.Round(openAmountCurrency)
	if openBalance.IsZero() && openAmountCurrency.IsZero() {
		return
	}

	line := Line{
		Flag:           FlagAutoBalance,
		AccountID:      s.autoBalanceAccount(),
		PartnerID:      s.partnerID,
		Name:           s.statementLine.PaymentRef,
		Currency:       s.transCur,
		AmountCurrency: openAmountCurrency,
		Balance:        openBalance,
	}
	if index >= 0 {
		line.Index = index
		s.lines = append(s.lines, &line)
		return
	}
	s.lines = append(s.lines, s.newLine(line))
}

func (s *Session) autoBalanceAccount() int64 {
	if s.partnerID != 0 {
		if p, err := s.deps.Chart.Partner(s.partnerID); err == nil {
			if id := s.deps.Chart.DefaultAccount(p, s.statementLine.Amount); id != 0 {
				return id
			}
		}
	}
	return s.journal.SuspenseAccountID
}

func (s *Session) autoBalance() *Line {
	for _, l := range s.lines {
		if l.Flag == FlagAutoBalance {
			return l
		}
	}
	return nil
}

func (s *Session) currencyOf(code string) *models.Currency {
	cur, err := s.deps.Chart.Currency(code)
	if err != nil {
		s.log.WithError(err).Warn("Unknown currency, using the company currency")
		return s.companyCur
	}
	return cur
}
