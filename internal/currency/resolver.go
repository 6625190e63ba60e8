// Package currency resolves conversion rates and converts amounts between
// the company currency and foreign currencies.
package currency

import (
	"sort"
	"sync"
	"time"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// Resolver returns the number of units of a currency worth one company
// currency unit at a date. When no rate is known it returns 1 together with
// a rate_unavailable error so callers can warn and carry on.
type Resolver interface {
	Rate(code string, date time.Time) (decimal.Decimal, error)
}

// TableResolver resolves rates from an in-memory rate table.
type TableResolver struct {
	company string
	rates   map[string][]models.Rate
	mutex   sync.RWMutex
}

// NewTableResolver builds a resolver for the given company currency.
func NewTableResolver(companyCode string, rates []models.Rate) *TableResolver {
	r := &TableResolver{company: companyCode, rates: make(map[string][]models.Rate)}
	for _, rate := range rates {
		r.Add(rate)
	}
	return r
}

// Add registers a rate, keeping each currency's table sorted by date.
func (r *TableResolver) Add(rate models.Rate) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	table := append(r.rates[rate.Currency], rate)
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Date.Before(table[j].Date)
	})
	r.rates[rate.Currency] = table
}

// Rate returns the latest rate on or before date. Dates before the first
// known rate use the oldest rate.
func (r *TableResolver) Rate(code string, date time.Time) (decimal.Decimal, error) {
	if code == "" || code == r.company {
		return decimal.NewFromInt(1), nil
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	table := r.rates[code]
	if len(table) == 0 {
		return decimal.NewFromInt(1), errors.RateUnavailableError(code, models.FormatDate(date))
	}

	idx := sort.Search(len(table), func(i int) bool {
		return table[i].Date.After(date)
	})
	if idx == 0 {
		return table[0].Rate, nil
	}
	return table[idx-1].Rate, nil
}
