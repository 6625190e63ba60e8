// Package config loads the accounting fixture a ledger is initialized
// from: the company, its chart of accounts, partners, taxes, journals,
// reconcile models, currency rates and the open statement and ledger lines.
package config

import (
	"context"
	"fmt"
	"os"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Fixture mirrors the YAML fixture file.
type Fixture struct {
	Company         models.Company          `yaml:"company"`
	Currencies      []models.Currency       `yaml:"currencies"`
	Rates           []models.Rate           `yaml:"rates"`
	Accounts        []models.Account        `yaml:"accounts"`
	Partners        []models.Partner        `yaml:"partners"`
	Taxes           []models.Tax            `yaml:"taxes"`
	Journals        []models.Journal        `yaml:"journals"`
	ReconcileModels []models.ReconcileModel `yaml:"reconcile_models"`
	StatementLines  []models.StatementLine  `yaml:"statement_lines"`
	LedgerLines     []models.LedgerLine     `yaml:"ledger_lines"`
}

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "fixture", path, err).
			WithSuggestion("Check the --fixture path")
	}
	fixture, err := ParseFixture(data)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "fixture", path, err)
	}
	return fixture, nil
}

// ParseFixture parses fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if fixture.Company.CurrencyCode == "" {
		return nil, fmt.Errorf("company currency is required")
	}
	return &fixture, nil
}

// Currency returns the declared currency with the given code.
func (f *Fixture) Currency(code string) (*models.Currency, bool) {
	for i := range f.Currencies {
		if f.Currencies[i].Code == code {
			return &f.Currencies[i], true
		}
	}
	return nil, false
}

// Chart builds and validates the chart of the fixture.
func (f *Fixture) Chart() (*chart.Chart, error) {
	company := f.Company
	cur, ok := f.Currency(company.CurrencyCode)
	if !ok {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "currencies", company.CurrencyCode, nil).
			WithSuggestion("Declare the company currency under currencies")
	}
	company.Currency = cur

	c := chart.New(&company)
	for i := range f.Currencies {
		c.AddCurrency(&f.Currencies[i])
	}
	for i := range f.Accounts {
		if err := c.AddAccount(&f.Accounts[i]); err != nil {
			return nil, err
		}
	}
	for i := range f.Partners {
		if err := c.AddPartner(&f.Partners[i]); err != nil {
			return nil, err
		}
	}
	for i := range f.Taxes {
		if err := c.AddTax(&f.Taxes[i]); err != nil {
			return nil, err
		}
	}
	for i := range f.Journals {
		c.AddJournal(&f.Journals[i])
	}
	for i := range f.ReconcileModels {
		if err := c.AddReconcileModel(&f.ReconcileModels[i]); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Resolver returns a rate table holding the fixture rates.
func (f *Fixture) Resolver() *currency.TableResolver {
	return currency.NewTableResolver(f.Company.CurrencyCode, f.Rates)
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Journals         int     `json:"journals"`
	StatementLineIDs []int64 `json:"statement_line_ids"`
	LedgerLineIDs    []int64 `json:"ledger_line_ids"`
}

// Seed writes opening balances, ledger lines and statement lines to the
// store. Ids in the fixture are ignored; the store assigns its own.
func (f *Fixture) Seed(ctx context.Context, store ledger.Store) (*SeedResult, error) {
	result := &SeedResult{}
	for _, j := range f.Journals {
		if j.OpeningBalance.IsZero() {
			continue
		}
		if err := store.SetOpeningBalance(ctx, j.ID, j.OpeningBalance); err != nil {
			return result, err
		}
		result.Journals++
	}

	for i := range f.LedgerLines {
		line := f.LedgerLines[i]
		line.ID = 0
		if line.AmountResidual.IsZero() && line.AmountResidualCurrency.IsZero() && !line.Reconciled {
			line.AmountResidual = line.Balance
			line.AmountResidualCurrency = line.AmountCurrency
		}
		if line.DateMaturity.IsZero() {
			line.DateMaturity = line.Date
		}
		id, err := store.CreateLedgerLine(ctx, &line)
		if err != nil {
			return result, fmt.Errorf("ledger line %s: %w", line.MoveName, err)
		}
		result.LedgerLineIDs = append(result.LedgerLineIDs, id)
	}

	for i := range f.StatementLines {
		line := f.StatementLines[i]
		line.ID = 0
		if err := line.Validate(); err != nil {
			return result, errors.InvalidError(errors.CodeInvalidLine, fmt.Sprintf("statement line %q: %v", line.PaymentRef, err))
		}
		id, err := store.CreateStatementLine(ctx, &line)
		if err != nil {
			return result, fmt.Errorf("statement line %q: %w", line.PaymentRef, err)
		}
		result.StatementLineIDs = append(result.StatementLineIDs, id)
	}
	return result, nil
}
