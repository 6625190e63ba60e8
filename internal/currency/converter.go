package currency

import (
	"time"

	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

// Converter converts between the company currency and other currencies.
// Conversion errors only ever come from missing rates; the converted value
// is still returned (at rate 1) alongside the error.
type Converter struct {
	resolver Resolver
	company  *models.Currency
}

// NewConverter creates a converter for the company currency.
func NewConverter(resolver Resolver, company *models.Currency) *Converter {
	return &Converter{resolver: resolver, company: company}
}

// Company returns the company currency.
func (c *Converter) Company() *models.Currency {
	return c.company
}

// Rate exposes the underlying resolver.
func (c *Converter) Rate(cur *models.Currency, date time.Time) (decimal.Decimal, error) {
	if cur == nil || cur.Equal(c.company) {
		return decimal.NewFromInt(1), nil
	}
	return c.resolver.Rate(cur.Code, date)
}

// ToCompany converts a foreign amount into company currency, rounded.
func (c *Converter) ToCompany(amount decimal.Decimal, from *models.Currency, date time.Time) (decimal.Decimal, error) {
	if from == nil || from.Equal(c.company) {
		return c.company.Round(amount), nil
	}
	rate, err := c.resolver.Rate(from.Code, date)
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return c.company.Round(amount.Div(rate)), err
}

// FromCompany converts a company amount into currency to, rounded.
func (c *Converter) FromCompany(amount decimal.Decimal, to *models.Currency, date time.Time) (decimal.Decimal, error) {
	if to == nil || to.Equal(c.company) {
		return c.company.Round(amount), nil
	}
	rate, err := c.resolver.Rate(to.Code, date)
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return to.Round(amount.Mul(rate)), err
}
