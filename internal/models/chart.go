package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType classifies ledger accounts.
type AccountType string

const (
	AccountReceivable AccountType = "receivable"
	AccountPayable    AccountType = "payable"
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountSuspense   AccountType = "suspense"
	AccountIncome     AccountType = "income"
	AccountExpense    AccountType = "expense"
	AccountTax        AccountType = "tax"
	AccountAsset      AccountType = "asset"
	AccountLiability  AccountType = "liability"
	AccountEquity     AccountType = "equity"
)

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	switch t {
	case AccountReceivable, AccountPayable, AccountBank, AccountCash, AccountSuspense,
		AccountIncome, AccountExpense, AccountTax, AccountAsset, AccountLiability, AccountEquity:
		return true
	}
	return false
}

// Reconcilable reports whether ledger lines on the account carry a residual.
func (t AccountType) Reconcilable() bool {
	return t == AccountReceivable || t == AccountPayable
}

// Account is a chart-of-accounts entry.
type Account struct {
	ID            int64       `json:"id" yaml:"id"`
	Code          string      `json:"code" yaml:"code"`
	Name          string      `json:"name" yaml:"name"`
	Type          AccountType `json:"type" yaml:"type"`
	DefaultTaxIDs []int64     `json:"default_tax_ids,omitempty" yaml:"default_tax_ids"`
}

// Validate performs basic validation on the Account
func (a *Account) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("account id must be positive")
	}
	if strings.TrimSpace(a.Code) == "" {
		return fmt.Errorf("account %d: code cannot be empty", a.ID)
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("account %s: invalid type %q", a.Code, a.Type)
	}
	return nil
}

func (a *Account) String() string {
	return fmt.Sprintf("%s %s", a.Code, a.Name)
}

// Partner is a customer and/or supplier.
type Partner struct {
	ID                  int64    `json:"id" yaml:"id"`
	Name                string   `json:"name" yaml:"name"`
	CustomerRank        int      `json:"customer_rank" yaml:"customer_rank"`
	SupplierRank        int      `json:"supplier_rank" yaml:"supplier_rank"`
	ReceivableAccountID int64    `json:"receivable_account_id" yaml:"receivable_account_id"`
	PayableAccountID    int64    `json:"payable_account_id" yaml:"payable_account_id"`
	BankAccounts        []string `json:"bank_accounts,omitempty" yaml:"bank_accounts"`
}

// IsCustomerOnly reports a partner only ever invoiced as a customer.
func (p *Partner) IsCustomerOnly() bool {
	return p.CustomerRank > 0 && p.SupplierRank == 0
}

// IsSupplierOnly reports a partner only ever billed as a supplier.
func (p *Partner) IsSupplierOnly() bool {
	return p.SupplierRank > 0 && p.CustomerRank == 0
}

// JournalType is the kind of liquidity journal.
type JournalType string

const (
	JournalBank JournalType = "bank"
	JournalCash JournalType = "cash"
)

// Journal is a bank or cash journal. Its currency is the company currency.
type Journal struct {
	ID                int64           `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Type              JournalType     `json:"type" yaml:"type"`
	DefaultAccountID  int64           `json:"default_account_id" yaml:"default_account_id"`
	SuspenseAccountID int64           `json:"suspense_account_id" yaml:"suspense_account_id"`
	OpeningBalance    decimal.Decimal `json:"opening_balance" yaml:"opening_balance"`
}

// Company holds the company currency and the accounts used for generated
// lines.
type Company struct {
	Name                     string    `json:"name" yaml:"name"`
	Currency                 *Currency `json:"currency" yaml:"-"`
	CurrencyCode             string    `json:"currency_code" yaml:"currency"`
	IncomeExchangeAccountID  int64     `json:"income_exchange_account_id" yaml:"income_exchange_account_id"`
	ExpenseExchangeAccountID int64     `json:"expense_exchange_account_id" yaml:"expense_exchange_account_id"`
	EarlyPayLossAccountID    int64     `json:"early_pay_loss_account_id" yaml:"early_pay_loss_account_id"`
	EarlyPayGainAccountID    int64     `json:"early_pay_gain_account_id" yaml:"early_pay_gain_account_id"`
}
