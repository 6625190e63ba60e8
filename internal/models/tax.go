package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxAmountType selects how a tax amount is computed.
type TaxAmountType string

const (
	TaxPercent TaxAmountType = "percent"
	TaxFixed   TaxAmountType = "fixed"
)

// TaxUse restricts a tax to sales or purchases.
type TaxUse string

const (
	TaxUseSale     TaxUse = "sale"
	TaxUsePurchase TaxUse = "purchase"
	TaxUseNone     TaxUse = "none"
)

// Exigibility tells when the tax becomes due.
type Exigibility string

const (
	ExigibilityOnInvoice Exigibility = "on_invoice"
	ExigibilityOnPayment Exigibility = "on_payment"
)

// Repartition describes where a tax is booked and which tags it carries.
type Repartition struct {
	AccountID int64   `json:"account_id" yaml:"account_id"`
	BaseTags  []int64 `json:"base_tags,omitempty" yaml:"base_tags"`
	TaxTags   []int64 `json:"tax_tags,omitempty" yaml:"tax_tags"`
}

// Tax is a tax definition. Amount is a percentage for percent taxes and an
// absolute amount for fixed ones.
type Tax struct {
	ID                           int64           `json:"id" yaml:"id"`
	Name                         string          `json:"name" yaml:"name"`
	AmountType                   TaxAmountType   `json:"amount_type" yaml:"amount_type"`
	Amount                       decimal.Decimal `json:"amount" yaml:"amount"`
	TypeTaxUse                   TaxUse          `json:"type_tax_use" yaml:"type_tax_use"`
	PriceInclude                 bool            `json:"price_include" yaml:"price_include"`
	IncludeBaseAmount            bool            `json:"include_base_amount" yaml:"include_base_amount"`
	Exigibility                  Exigibility     `json:"exigibility" yaml:"exigibility"`
	CashBasisTransitionAccountID int64           `json:"cash_basis_transition_account_id,omitempty" yaml:"cash_basis_transition_account_id"`
	Invoice                      Repartition     `json:"invoice_repartition" yaml:"invoice_repartition"`
	Refund                       Repartition     `json:"refund_repartition" yaml:"refund_repartition"`
}

// Validate performs basic validation on the Tax
func (t *Tax) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("tax id must be positive")
	}
	if t.AmountType != TaxPercent && t.AmountType != TaxFixed {
		return fmt.Errorf("tax %s: invalid amount type %q", t.Name, t.AmountType)
	}
	if t.Exigibility == "" {
		t.Exigibility = ExigibilityOnInvoice
	}
	if t.TypeTaxUse == "" {
		t.TypeTaxUse = TaxUseNone
	}
	return nil
}

// IsCashBasis reports a tax due on payment.
func (t *Tax) IsCashBasis() bool {
	return t.Exigibility == ExigibilityOnPayment
}

// RepartitionFor returns the invoice or refund repartition.
func (t *Tax) RepartitionFor(refund bool) Repartition {
	if refund {
		return t.Refund
	}
	return t.Invoice
}

// IsRefund tells whether a base amount of the given sign is a refund for
// this tax: a positive base on a sale tax, a negative one on a purchase tax.
func (t *Tax) IsRefund(base decimal.Decimal) bool {
	switch t.TypeTaxUse {
	case TaxUseSale:
		return base.IsPositive()
	case TaxUsePurchase:
		return base.IsNegative()
	}
	return false
}
