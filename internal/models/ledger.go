package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EarlyPaymentComputation selects how a cash discount treats taxes.
type EarlyPaymentComputation string

const (
	EarlyPaymentIncluded EarlyPaymentComputation = "included"
	EarlyPaymentExcluded EarlyPaymentComputation = "excluded"
	EarlyPaymentMixed    EarlyPaymentComputation = "mixed"
)

// EarlyPaymentBaseLine is one product line of the discounted invoice,
// in the invoice currency and with the invoice sign.
type EarlyPaymentBaseLine struct {
	AccountID      int64           `json:"account_id" yaml:"account_id"`
	TaxIDs         []int64         `json:"tax_ids,omitempty" yaml:"tax_ids"`
	AmountCurrency decimal.Decimal `json:"amount_currency" yaml:"amount_currency"`
}

// EarlyPaymentTaxLine is one tax line of the discounted invoice.
type EarlyPaymentTaxLine struct {
	TaxID          int64           `json:"tax_id" yaml:"tax_id"`
	AccountID      int64           `json:"account_id" yaml:"account_id"`
	AmountCurrency decimal.Decimal `json:"amount_currency" yaml:"amount_currency"`
}

// EarlyPaymentTerm is the cash discount offered on an open ledger line.
type EarlyPaymentTerm struct {
	DiscountDate           time.Time               `json:"discount_date" yaml:"discount_date"`
	DiscountAmountCurrency decimal.Decimal         `json:"discount_amount_currency" yaml:"discount_amount_currency"`
	Percentage             decimal.Decimal         `json:"percentage" yaml:"percentage"`
	Computation            EarlyPaymentComputation `json:"computation" yaml:"computation"`
	BaseLines              []EarlyPaymentBaseLine  `json:"base_lines,omitempty" yaml:"base_lines"`
	TaxLines               []EarlyPaymentTaxLine   `json:"tax_lines,omitempty" yaml:"tax_lines"`
}

// LedgerLine is a posted receivable/payable line that may still be open.
type LedgerLine struct {
	ID                     int64             `json:"id" yaml:"id"`
	MoveID                 int64             `json:"move_id" yaml:"move_id"`
	MoveName               string            `json:"move_name" yaml:"move_name"`
	MoveRef                string            `json:"move_ref,omitempty" yaml:"move_ref"`
	AccountID              int64             `json:"account_id" yaml:"account_id"`
	PartnerID              int64             `json:"partner_id,omitempty" yaml:"partner_id"`
	Currency               string            `json:"currency" yaml:"currency"`
	Date                   time.Time         `json:"date" yaml:"date"`
	DateMaturity           time.Time         `json:"date_maturity" yaml:"date_maturity"`
	AmountCurrency         decimal.Decimal   `json:"amount_currency" yaml:"amount_currency"`
	Balance                decimal.Decimal   `json:"balance" yaml:"balance"`
	AmountResidualCurrency decimal.Decimal   `json:"amount_residual_currency" yaml:"amount_residual_currency"`
	AmountResidual         decimal.Decimal   `json:"amount_residual" yaml:"amount_residual"`
	Reconciled             bool              `json:"reconciled" yaml:"reconciled"`
	Version                int64             `json:"version" yaml:"-"`
	EarlyPayment           *EarlyPaymentTerm `json:"early_payment,omitempty" yaml:"early_payment"`
}

// IsOpen reports a line with a remaining residual.
func (l *LedgerLine) IsOpen() bool {
	return !l.Reconciled && !l.AmountResidual.IsZero()
}

// EarlyPaymentEligible reports whether the cash discount can still be
// granted for a payment on date and the line was not partially paid.
func (l *LedgerLine) EarlyPaymentEligible(date time.Time) bool {
	if l.EarlyPayment == nil {
		return false
	}
	if l.EarlyPayment.DiscountDate.Before(date) {
		return false
	}
	return l.AmountResidualCurrency.Equal(l.AmountCurrency)
}

// Rate is the original foreign/company ratio of the line.
func (l *LedgerLine) Rate() decimal.Decimal {
	if l.Balance.IsZero() {
		return decimal.NewFromInt(1)
	}
	return l.AmountCurrency.Div(l.Balance).Abs()
}

// Label is how the line is shown to the user.
func (l *LedgerLine) Label() string {
	if l.MoveRef != "" {
		return fmt.Sprintf("%s - %s", l.MoveName, l.MoveRef)
	}
	return l.MoveName
}

// EntryKind distinguishes the statement entry from generated exchange entries.
type EntryKind string

const (
	EntryStatement EntryKind = "statement"
	EntryExchange  EntryKind = "exchange"
)

// JournalItem is one line of a posted journal entry.
type JournalItem struct {
	ID             int64                      `json:"id"`
	AccountID      int64                      `json:"account_id"`
	PartnerID      int64                      `json:"partner_id,omitempty"`
	Currency       string                     `json:"currency"`
	AmountCurrency decimal.Decimal            `json:"amount_currency"`
	Balance        decimal.Decimal            `json:"balance"`
	Name           string                     `json:"name,omitempty"`
	TaxIDs         []int64                    `json:"tax_ids,omitempty"`
	TaxTagIDs      []int64                    `json:"tax_tag_ids,omitempty"`
	TaxLineID      int64                      `json:"tax_line_id,omitempty"`
	Analytic       map[string]decimal.Decimal `json:"analytic_distribution,omitempty"`
	// MatchedLedgerLineID links the item to the ledger line it settles.
	MatchedLedgerLineID int64 `json:"matched_ledger_line_id,omitempty"`
}

// JournalEntry is an immutable balanced set of items.
type JournalEntry struct {
	ID        int64         `json:"id"`
	Kind      EntryKind     `json:"kind"`
	JournalID int64         `json:"journal_id"`
	Date      time.Time     `json:"date"`
	Ref       string        `json:"ref"`
	PartnerID int64         `json:"partner_id,omitempty"`
	ToCheck   bool          `json:"to_check,omitempty"`
	Items     []JournalItem `json:"items"`
}

// Total sums the company balance of every item.
func (e *JournalEntry) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.Balance)
	}
	return total
}

// Partial records that part of a ledger line was settled by a journal item.
type Partial struct {
	ID              int64           `json:"id"`
	DebitLineID     int64           `json:"debit_line_id"`
	CreditLineID    int64           `json:"credit_line_id"`
	Amount          decimal.Decimal `json:"amount"`
	AmountCurrency  decimal.Decimal `json:"amount_currency"`
	ExchangeEntryID int64           `json:"exchange_entry_id,omitempty"`
}
