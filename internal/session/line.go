package session

import (
	"encoding/json"

	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

// Flag tells what produced an allocation line.
type Flag string

const (
	FlagLiquidity    Flag = "liquidity"
	FlagMatched      Flag = "new_aml"
	FlagManual       Flag = "manual"
	FlagTax          Flag = "tax_line"
	FlagExchangeDiff Flag = "exchange_diff"
	FlagEarlyPayment Flag = "early_payment"
	FlagAutoBalance  Flag = "auto_balance"
)

// MatchedPart is carried by matched lines and by the exchange lines that
// belong to them.
type MatchedPart struct {
	SourceLineID         int64              `json:"source_line_id"`
	SourceAmountCurrency decimal.Decimal    `json:"source_amount_currency"`
	SourceBalance        decimal.Decimal    `json:"source_balance"`
	SourceVersion        int64              `json:"source_version"`
	ManuallyModified     bool               `json:"manually_modified"`
	Source               *models.LedgerLine `json:"-"`
}

// TaxPart is carried by tax lines, including the tax share of an early
// payment discount.
type TaxPart struct {
	TaxID  int64 `json:"tax_id"`
	Refund bool  `json:"refund"`
}

// ManualPart is carried by manual lines.
type ManualPart struct {
	// ForcePriceIncluded treats TaxBaseAmountCurrency as a tax-included
	// total and derives the line amount from it.
	ForcePriceIncluded    bool            `json:"force_price_included"`
	TaxBaseAmountCurrency decimal.Decimal `json:"tax_base_amount_currency"`
}

// Line is one proposed journal item.
type Line struct {
	Index            int                        `json:"index"`
	Flag             Flag                       `json:"flag"`
	AccountID        int64                      `json:"account_id"`
	PartnerID        int64                      `json:"partner_id,omitempty"`
	Name             string                     `json:"name"`
	Currency         *models.Currency           `json:"-"`
	AmountCurrency   decimal.Decimal            `json:"amount_currency"`
	Balance          decimal.Decimal            `json:"balance"`
	TaxIDs           []int64                    `json:"tax_ids,omitempty"`
	TaxTagIDs        []int64                    `json:"tax_tag_ids,omitempty"`
	Analytic         map[string]decimal.Decimal `json:"analytic_distribution,omitempty"`
	ReconcileModelID int64                      `json:"reconcile_model_id,omitempty"`
	Matched          *MatchedPart               `json:"matched,omitempty"`
	Tax              *TaxPart                   `json:"tax,omitempty"`
	Manual           *ManualPart                `json:"manual,omitempty"`
}

// MarshalJSON renders the currency as its code
func (l Line) MarshalJSON() ([]byte, error) {
	type Alias Line
	return json.Marshal(&struct {
		Currency string `json:"currency"`
		Alias
	}{
		Currency: l.Currency.String(),
		Alias:    Alias(l),
	})
}

// IsPartial reports a matched line settling less than the source residual.
func (l *Line) IsPartial() bool {
	if l.Flag != FlagMatched || l.Matched == nil {
		return false
	}
	return l.Currency.Compare(l.AmountCurrency, l.Matched.SourceAmountCurrency) != 0
}

// SourceLineID returns the ledger line a matched or exchange line refers to.
func (l *Line) SourceLineID() int64 {
	if l.Matched == nil {
		return 0
	}
	return l.Matched.SourceLineID
}

func (l *Line) clone() Line {
	c := *l
	c.TaxIDs = append([]int64(nil), l.TaxIDs...)
	c.TaxTagIDs = append([]int64(nil), l.TaxTagIDs...)
	if l.Analytic != nil {
		c.Analytic = make(map[string]decimal.Decimal, len(l.Analytic))
		for k, v := range l.Analytic {
			c.Analytic[k] = v
		}
	}
	if l.Matched != nil {
		m := *l.Matched
		c.Matched = &m
	}
	if l.Tax != nil {
		t := *l.Tax
		c.Tax = &t
	}
	if l.Manual != nil {
		m := *l.Manual
		c.Manual = &m
	}
	return c
}
