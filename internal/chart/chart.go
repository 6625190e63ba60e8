// Package chart is the read-only registry of accounting configuration the
// engine consults: currencies, accounts, partners, taxes, journals and
// reconcile models.
package chart

import (
	"sort"
	"strings"
	"sync"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// Chart indexes configuration entities by id.
type Chart struct {
	company    *models.Company
	currencies map[string]*models.Currency
	accounts   map[int64]*models.Account
	partners   map[int64]*models.Partner
	taxes      map[int64]*models.Tax
	journals   map[int64]*models.Journal
	rules      map[int64]*models.ReconcileModel
	bankIndex  map[string]int64
	mutex      sync.RWMutex
}

// New creates a chart for the given company. The company currency must be
// set.
func New(company *models.Company) *Chart {
	c := &Chart{
		company:    company,
		currencies: make(map[string]*models.Currency),
		accounts:   make(map[int64]*models.Account),
		partners:   make(map[int64]*models.Partner),
		taxes:      make(map[int64]*models.Tax),
		journals:   make(map[int64]*models.Journal),
		rules:      make(map[int64]*models.ReconcileModel),
		bankIndex:  make(map[string]int64),
	}
	if company.Currency != nil {
		c.currencies[company.Currency.Code] = company.Currency
		company.CurrencyCode = company.Currency.Code
	}
	return c
}

// Company returns the company settings.
func (c *Chart) Company() *models.Company {
	return c.company
}

// CompanyCurrency returns the company currency.
func (c *Chart) CompanyCurrency() *models.Currency {
	return c.company.Currency
}

// AddCurrency registers a currency
func (c *Chart) AddCurrency(cur *models.Currency) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.currencies[cur.Code] = cur
}

// AddAccount registers an account
func (c *Chart) AddAccount(a *models.Account) error {
	if err := a.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "accounts", a.Code, err)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.accounts[a.ID] = a
	return nil
}

// AddPartner registers a partner. A bank account number may belong to one
// partner only.
func (c *Chart) AddPartner(p *models.Partner) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, number := range p.BankAccounts {
		key := normalizeBankAccount(number)
		if owner, ok := c.bankIndex[key]; ok && owner != p.ID {
			return errors.ConstraintViolationError(errors.CodeDuplicateBankAccount,
				"bank account "+number+" already belongs to another partner", nil).
				WithContext("partner_id", owner)
		}
	}
	for _, number := range p.BankAccounts {
		c.bankIndex[normalizeBankAccount(number)] = p.ID
	}
	c.partners[p.ID] = p
	return nil
}

// AddTax registers a tax
func (c *Chart) AddTax(t *models.Tax) error {
	if err := t.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "taxes", t.Name, err)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.taxes[t.ID] = t
	return nil
}

// AddJournal registers a journal
func (c *Chart) AddJournal(j *models.Journal) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.journals[j.ID] = j
}

// AddReconcileModel registers a reconcile model
func (c *Chart) AddReconcileModel(m *models.ReconcileModel) error {
	if err := m.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "reconcile_models", m.Name, err)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.rules[m.ID] = m
	return nil
}

// Currency looks up a currency by code.
func (c *Chart) Currency(code string) (*models.Currency, error) {
	if code == "" {
		return c.company.Currency, nil
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	cur, ok := c.currencies[code]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "currency", code)
	}
	return cur, nil
}

// Account looks up an account by id.
func (c *Chart) Account(id int64) (*models.Account, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	a, ok := c.accounts[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "account", id)
	}
	return a, nil
}

// Partner looks up a partner by id.
func (c *Chart) Partner(id int64) (*models.Partner, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	p, ok := c.partners[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "partner", id)
	}
	return p, nil
}

// Tax looks up a tax by id.
func (c *Chart) Tax(id int64) (*models.Tax, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	t, ok := c.taxes[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "tax", id)
	}
	return t, nil
}

// Taxes resolves a list of tax ids, keeping their order.
func (c *Chart) Taxes(ids []int64) ([]*models.Tax, error) {
	taxes := make([]*models.Tax, 0, len(ids))
	for _, id := range ids {
		t, err := c.Tax(id)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, t)
	}
	return taxes, nil
}

// Journal looks up a journal by id.
func (c *Chart) Journal(id int64) (*models.Journal, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	j, ok := c.journals[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "journal", id)
	}
	return j, nil
}

// Journals returns every journal ordered by id.
func (c *Chart) Journals() []*models.Journal {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]*models.Journal, 0, len(c.journals))
	for _, j := range c.journals {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReconcileModel looks up a reconcile model by id.
func (c *Chart) ReconcileModel(id int64) (*models.ReconcileModel, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	m, ok := c.rules[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "reconcile model", id)
	}
	return m, nil
}

// ReconcileModels returns every model ordered by sequence, then id.
func (c *Chart) ReconcileModels() []*models.ReconcileModel {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]*models.ReconcileModel, 0, len(c.rules))
	for _, m := range c.rules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HasAutoReconcileModels reports whether any automatic rule is configured.
func (c *Chart) HasAutoReconcileModels() bool {
	for _, m := range c.ReconcileModels() {
		if m.AutoReconcile && m.RuleType != models.RuleWriteOffButton {
			return true
		}
	}
	return false
}

// PartnerByBankAccount finds the partner owning a bank account number.
func (c *Chart) PartnerByBankAccount(number string) (*models.Partner, bool) {
	if strings.TrimSpace(number) == "" {
		return nil, false
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	id, ok := c.bankIndex[normalizeBankAccount(number)]
	if !ok {
		return nil, false
	}
	return c.partners[id], true
}

// PartnerByName finds a partner by case-insensitive exact name. Ambiguous
// names return no partner.
func (c *Chart) PartnerByName(name string) (*models.Partner, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var found *models.Partner
	for _, p := range c.partners {
		if strings.EqualFold(p.Name, name) {
			if found != nil {
				return nil, false
			}
			found = p
		}
	}
	return found, found != nil
}

// DefaultAccount picks the counterpart account for a partner: receivable
// for customer-only partners, payable for supplier-only ones, otherwise by
// the sign of the statement amount.
func (c *Chart) DefaultAccount(p *models.Partner, statementAmount decimal.Decimal) int64 {
	switch {
	case p.IsCustomerOnly():
		return p.ReceivableAccountID
	case p.IsSupplierOnly():
		return p.PayableAccountID
	case statementAmount.IsPositive():
		return p.ReceivableAccountID
	default:
		return p.PayableAccountID
	}
}

// Validate checks that every referenced account exists.
func (c *Chart) Validate() error {
	check := func(setting string, id int64) error {
		if id == 0 {
			return nil
		}
		if _, err := c.Account(id); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, setting, id, err)
		}
		return nil
	}

	company := c.company
	if company.Currency == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "company.currency", nil, nil)
	}
	for setting, id := range map[string]int64{
		"company.income_exchange_account_id":  company.IncomeExchangeAccountID,
		"company.expense_exchange_account_id": company.ExpenseExchangeAccountID,
		"company.early_pay_loss_account_id":   company.EarlyPayLossAccountID,
		"company.early_pay_gain_account_id":   company.EarlyPayGainAccountID,
	} {
		if err := check(setting, id); err != nil {
			return err
		}
	}
	for _, j := range c.Journals() {
		if err := check("journals.default_account_id", j.DefaultAccountID); err != nil {
			return err
		}
		if err := check("journals.suspense_account_id", j.SuspenseAccountID); err != nil {
			return err
		}
	}
	for _, m := range c.ReconcileModels() {
		for _, line := range m.Lines {
			if err := check("reconcile_models.lines.account_id", line.AccountID); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeBankAccount(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), ""))
}

// ReconcilableAccountIDs lists the receivable and payable accounts.
func (c *Chart) ReconcilableAccountIDs() []int64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var ids []int64
	for id, a := range c.accounts {
		if a.Type.Reconcilable() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LinkBankAccount records that a bank account number belongs to a partner.
// A number already owned by another partner is a constraint violation.
func (c *Chart) LinkBankAccount(partnerID int64, number string) error {
	key := normalizeBankAccount(number)
	if key == "" {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	p, ok := c.partners[partnerID]
	if !ok {
		return errors.NotFoundError(errors.CodeEntityNotFound, "partner", partnerID)
	}
	if owner, ok := c.bankIndex[key]; ok {
		if owner != partnerID {
			return errors.ConstraintViolationError(errors.CodeDuplicateBankAccount,
				"bank account "+number+" already belongs to another partner", nil).
				WithContext("partner_id", owner)
		}
		return nil
	}
	c.bankIndex[key] = partnerID
	p.BankAccounts = append(p.BankAccounts, number)
	return nil
}
