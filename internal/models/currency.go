package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Currency carries the rounding precision of a currency.
type Currency struct {
	Code     string `json:"code" yaml:"code"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int32  `json:"decimals" yaml:"decimals"`
}

// NewCurrency creates a currency with the given precision
func NewCurrency(code, symbol string, decimals int32) *Currency {
	return &Currency{Code: code, Symbol: symbol, Decimals: decimals}
}

// Round rounds half away from zero to the currency precision.
func (c *Currency) Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(c.Decimals)
}

// IsZero reports whether x is zero once rounded.
func (c *Currency) IsZero(x decimal.Decimal) bool {
	return c.Round(x).IsZero()
}

// Compare returns -1, 0 or 1 comparing a and b at the currency precision.
func (c *Currency) Compare(a, b decimal.Decimal) int {
	return c.Round(a.Sub(b)).Sign()
}

// MinimalUnit is the smallest representable amount (10^-decimals).
func (c *Currency) MinimalUnit() decimal.Decimal {
	return decimal.New(1, -c.Decimals)
}

// Format renders x with the currency symbol.
func (c *Currency) Format(x decimal.Decimal) string {
	symbol := c.Symbol
	if symbol == "" {
		symbol = c.Code
	}
	return fmt.Sprintf("%s %s", symbol, c.Round(x).StringFixed(c.Decimals))
}

// Equal compares two currencies by code. Nil currencies never match.
func (c *Currency) Equal(other *Currency) bool {
	return c != nil && other != nil && c.Code == other.Code
}

func (c *Currency) String() string {
	if c == nil {
		return ""
	}
	return c.Code
}

// Rate is the number of currency units worth one company currency unit,
// effective from Date.
type Rate struct {
	Currency string          `json:"currency" yaml:"currency"`
	Date     time.Time       `json:"date" yaml:"date"`
	Rate     decimal.Decimal `json:"rate" yaml:"rate"`
}
