// Package exchange computes the exchange gain or loss created when a
// ledger line posted at one rate is settled by a bank transaction at
// another.
package exchange

import (
	"time"

	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

// Transaction describes the bank side of the settlement.
type Transaction struct {
	Date              time.Time
	Currency          *models.Currency
	CompanyAmount     decimal.Decimal
	TransactionAmount decimal.Decimal
}

// Foreign reports whether the transaction happened in a foreign currency.
func (t Transaction) Foreign(company *models.Currency) bool {
	return !t.Currency.Equal(company)
}

// Settled is the ledger side: the amounts of a matched line, in the
// ledger line's currency and at its original company value.
type Settled struct {
	Currency       *models.Currency
	AmountCurrency decimal.Decimal
	Balance        decimal.Decimal
}

// Diff is the delta to book on an exchange account.
type Diff struct {
	Balance        decimal.Decimal
	AmountCurrency decimal.Decimal
	AccountID      int64
}

// Calculator evaluates matched amounts at the bank transaction rate.
type Calculator struct {
	conv    *currency.Converter
	company *models.Company
}

// NewCalculator creates a calculator for the company.
func NewCalculator(conv *currency.Converter, company *models.Company) *Calculator {
	return &Calculator{conv: conv, company: company}
}

// Expected is the company value of the settled amount at the rate implied
// by the transaction.
func (c *Calculator) Expected(s Settled, tx Transaction) (decimal.Decimal, error) {
	companyCur := c.conv.Company()

	switch {
	case s.Currency.Equal(companyCur):
		return s.Balance, nil
	case s.Currency.Equal(tx.Currency) && !tx.TransactionAmount.IsZero():
		ratio := tx.CompanyAmount.Div(tx.TransactionAmount).Abs()
		return companyCur.Round(s.AmountCurrency.Mul(ratio)), nil
	default:
		return c.conv.ToCompany(s.AmountCurrency, s.Currency, tx.Date)
	}
}

// Compute returns the exchange difference for a settled amount. ok is
// false when there is nothing to book. A rate warning is returned together
// with the diff computed at the fallback rate.
func (c *Calculator) Compute(s Settled, tx Transaction) (diff Diff, ok bool, err error) {
	companyCur := c.conv.Company()

	expected, err := c.Expected(s, tx)
	delta := companyCur.Round(expected.Sub(s.Balance))
	if delta.IsZero() {
		return Diff{}, false, err
	}

	diff = Diff{Balance: delta, AmountCurrency: decimal.Zero}
	if s.Currency.Equal(companyCur) {
		diff.AmountCurrency = delta
	}
	if delta.IsPositive() {
		diff.AccountID = c.company.ExpenseExchangeAccountID
	} else {
		diff.AccountID = c.company.IncomeExchangeAccountID
	}
	return diff, true, err
}
