// Package tax computes tax lines for a base amount.
//
// Taxes are applied in order. Every intermediate quantity is an affine
// function of the unknown base amount, so price-included taxes, fixed
// taxes and taxes that affect the base of subsequent ones are all solved
// exactly before rounding. When the base is derived from a tax-included
// total, the last included tax absorbs the rounding remainder so that the
// base plus the included taxes equals the total.
package tax

import (
	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input is one taxable amount.
type Input struct {
	// Amount is the base when no tax is included, otherwise the total
	// including the included taxes.
	Amount   decimal.Decimal
	Currency *models.Currency
	Taxes    []*models.Tax
	// ForcePriceIncluded treats every tax as included in Amount.
	ForcePriceIncluded bool
	// IgnorePriceInclude treats every tax as excluded, whatever its
	// definition says.
	IgnorePriceInclude bool
	// BaseAccountID is used for taxes without a repartition account.
	BaseAccountID int64
}

// Line is one computed tax amount.
type Line struct {
	Tax       *models.Tax     `json:"-"`
	TaxID     int64           `json:"tax_id"`
	Amount    decimal.Decimal `json:"amount"`
	Base      decimal.Decimal `json:"base"`
	AccountID int64           `json:"account_id"`
	TagIDs    []int64         `json:"tag_ids,omitempty"`
	Refund    bool            `json:"refund"`
}

// Result is the outcome of a computation.
type Result struct {
	Base       decimal.Decimal `json:"base"`
	BaseTagIDs []int64         `json:"base_tag_ids,omitempty"`
	Lines      []Line          `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// affine is a·base + c.
type affine struct {
	a decimal.Decimal
	c decimal.Decimal
}

func (f affine) add(g affine) affine {
	return affine{a: f.a.Add(g.a), c: f.c.Add(g.c)}
}

func (f affine) eval(base decimal.Decimal) decimal.Decimal {
	return f.a.Mul(base).Add(f.c)
}

func (e Input) included(t *models.Tax) bool {
	if e.ForcePriceIncluded {
		return true
	}
	return t.PriceInclude && !e.IgnorePriceInclude
}

// Compute runs the pipeline.
func Compute(in Input) Result {
	cur := in.Currency
	sign := decimal.NewFromInt(1)
	if in.Amount.IsNegative() {
		sign = sign.Neg()
	}

	one := decimal.NewFromInt(1)
	currentBase := affine{a: one, c: decimal.Zero}
	taxAmounts := make([]affine, len(in.Taxes))
	taxBases := make([]affine, len(in.Taxes))
	includedSum := affine{a: one, c: decimal.Zero}

	for i, t := range in.Taxes {
		var amount affine
		switch t.AmountType {
		case models.TaxFixed:
			amount = affine{a: decimal.Zero, c: t.Amount.Mul(sign)}
		default:
			rate := t.Amount.Div(hundred)
			amount = affine{a: currentBase.a.Mul(rate), c: currentBase.c.Mul(rate)}
		}
		taxAmounts[i] = amount
		taxBases[i] = currentBase
		if in.included(t) {
			includedSum = includedSum.add(amount)
		}
		if t.IncludeBaseAmount {
			currentBase = currentBase.add(amount)
		}
	}

	var base, roundedBase decimal.Decimal
	if includedSum.a.Equal(one) && includedSum.c.IsZero() {
		base = in.Amount
	} else {
		base = in.Amount.Sub(includedSum.c).Div(includedSum.a)
	}
	roundedBase = cur.Round(base)

	lastIncluded := -1
	for i, t := range in.Taxes {
		if in.included(t) {
			lastIncluded = i
		}
	}

	result := Result{Base: roundedBase, Lines: make([]Line, 0, len(in.Taxes))}
	includedTotal := decimal.Zero
	total := roundedBase
	tagSeen := make(map[int64]bool)

	for i, t := range in.Taxes {
		amount := cur.Round(taxAmounts[i].eval(base))
		if i == lastIncluded {
			amount = in.Amount.Sub(roundedBase).Sub(includedTotal)
		}
		if in.included(t) {
			includedTotal = includedTotal.Add(amount)
		}
		total = total.Add(amount)

		refund := t.IsRefund(roundedBase)
		rep := t.RepartitionFor(refund)
		account := rep.AccountID
		if account == 0 {
			account = in.BaseAccountID
		}
		for _, tag := range rep.BaseTags {
			if !tagSeen[tag] {
				tagSeen[tag] = true
				result.BaseTagIDs = append(result.BaseTagIDs, tag)
			}
		}

		result.Lines = append(result.Lines, Line{
			Tax:       t,
			TaxID:     t.ID,
			Amount:    amount,
			Base:      cur.Round(taxBases[i].eval(base)),
			AccountID: account,
			TagIDs:    append([]int64(nil), rep.TaxTags...),
			Refund:    refund,
		})
	}
	result.Total = total
	return result
}
