package exchange

import (
	"testing"
	"time"

	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

var (
	usd = models.NewCurrency("USD", "$", 2)
	eur = models.NewCurrency("EUR", "€", 2)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCalculator() *Calculator {
	date := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	resolver := currency.NewTableResolver("USD", []models.Rate{{Currency: "EUR", Date: date, Rate: d("2")}})
	company := &models.Company{Currency: usd, IncomeExchangeAccountID: 70, ExpenseExchangeAccountID: 60}
	return NewCalculator(currency.NewConverter(resolver, usd), company)
}

func TestCalculator_Compute(t *testing.T) {
	calc := newCalculator()
	date := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		settled  Settled
		tx       Transaction
		expected string
		account  int64
		ok       bool
	}{
		{
			name:     "transaction currency gain",
			settled:  Settled{Currency: eur, AmountCurrency: d("-240"), Balance: d("-80")},
			tx:       Transaction{Date: date, Currency: eur, CompanyAmount: d("120"), TransactionAmount: d("240")},
			expected: "-40",
			account:  70,
			ok:       true,
		},
		{
			name:     "company transaction, foreign invoice",
			settled:  Settled{Currency: eur, AmountCurrency: d("-3600"), Balance: d("-1200")},
			tx:       Transaction{Date: date, Currency: usd, CompanyAmount: d("1200"), TransactionAmount: d("1200")},
			expected: "-600",
			account:  70,
			ok:       true,
		},
		{
			name:     "loss goes to expense",
			settled:  Settled{Currency: eur, AmountCurrency: d("-3600"), Balance: d("-2400")},
			tx:       Transaction{Date: date, Currency: usd, CompanyAmount: d("1200"), TransactionAmount: d("1200")},
			expected: "600",
			account:  60,
			ok:       true,
		},
		{
			name:    "company currency line never differs",
			settled: Settled{Currency: usd, AmountCurrency: d("-725"), Balance: d("-725")},
			tx:      Transaction{Date: date, Currency: eur, CompanyAmount: d("650"), TransactionAmount: d("800")},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff, ok, err := calc.Compute(tt.settled, tt.tx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if !diff.Balance.Equal(d(tt.expected)) {
				t.Errorf("expected diff %s, got %s", tt.expected, diff.Balance)
			}
			if diff.AccountID != tt.account {
				t.Errorf("expected account %d, got %d", tt.account, diff.AccountID)
			}
			if !diff.AmountCurrency.IsZero() {
				t.Errorf("foreign lines carry no foreign exchange amount, got %s", diff.AmountCurrency)
			}
		})
	}
}
