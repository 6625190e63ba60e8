package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one line of a bank statement. Amount is expressed in the
// journal (company) currency; ForeignCurrency and AmountCurrency are set
// when the bank transaction happened in another currency.
type StatementLine struct {
	ID              int64           `json:"id" yaml:"id"`
	JournalID       int64           `json:"journal_id" yaml:"journal_id"`
	Date            time.Time       `json:"date" yaml:"date"`
	PaymentRef      string          `json:"payment_ref" yaml:"payment_ref"`
	PartnerID       int64           `json:"partner_id,omitempty" yaml:"partner_id"`
	PartnerName     string          `json:"partner_name,omitempty" yaml:"partner_name"`
	AccountNumber   string          `json:"account_number,omitempty" yaml:"account_number"`
	Amount          decimal.Decimal `json:"amount" yaml:"amount"`
	ForeignCurrency string          `json:"foreign_currency,omitempty" yaml:"foreign_currency"`
	AmountCurrency  decimal.Decimal `json:"amount_currency" yaml:"amount_currency"`
	IsReconciled    bool            `json:"is_reconciled" yaml:"is_reconciled"`
	CronLastCheck   *time.Time      `json:"cron_last_check,omitempty" yaml:"-"`
	MoveID          int64           `json:"move_id,omitempty" yaml:"-"`
	CreatedAt       time.Time       `json:"created_at" yaml:"-"`
}

// Validate performs basic validation on the StatementLine
func (s *StatementLine) Validate() error {
	if s.JournalID <= 0 {
		return fmt.Errorf("statement line must belong to a journal")
	}
	if s.Date.IsZero() {
		return fmt.Errorf("statement line date cannot be zero")
	}
	if s.ForeignCurrency != "" && s.AmountCurrency.IsZero() && !s.Amount.IsZero() {
		return fmt.Errorf("statement line in %s needs an amount in that currency", s.ForeignCurrency)
	}
	return nil
}

// HasForeignCurrency reports a line whose transaction currency differs from
// the journal currency.
func (s *StatementLine) HasForeignCurrency(company *Currency) bool {
	return s.ForeignCurrency != "" && s.ForeignCurrency != company.Code
}

// TransactionAmount is the amount in the transaction currency.
func (s *StatementLine) TransactionAmount(company *Currency) decimal.Decimal {
	if s.HasForeignCurrency(company) {
		return s.AmountCurrency
	}
	return s.Amount
}

// TransactionCurrencyCode is the foreign currency when set, else the
// company currency.
func (s *StatementLine) TransactionCurrencyCode(company *Currency) string {
	if s.HasForeignCurrency(company) {
		return s.ForeignCurrency
	}
	return company.Code
}

func (s *StatementLine) String() string {
	return fmt.Sprintf("StatementLine{ID: %d, Amount: %s, Date: %s, Ref: %s}",
		s.ID, s.Amount.String(), FormatDate(s.Date), s.PaymentRef)
}
