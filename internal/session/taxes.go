package session

import (
	"golang-bankrec-service/internal/tax"

	"github.com/shopspring/decimal"
)

type taxKey struct {
	taxID     int64
	accountID int64
	refund    bool
	currency  string
}

type taxGroup struct {
	key            taxKey
	name           string
	tagIDs         []int64
	amountCurrency decimal.Decimal
	balance        decimal.Decimal
	line           *Line
}

// recomputeTaxes recomputes the tax lines from the manual lines carrying
// taxes. Existing tax lines are updated in place.
func (s *Session) recomputeTaxes() {
	groups := make(map[taxKey]*taxGroup)
	var order []taxKey

	for _, l := range s.linesWithFlag(FlagManual) {
		if len(l.TaxIDs) == 0 {
			l.TaxTagIDs = nil
			continue
		}
		taxes, err := s.deps.Chart.Taxes(l.TaxIDs)
		if err != nil {
			s.log.WithError(err).WithField("index", l.Index).Warn("Skipping unknown taxes")
			continue
		}
		if l.Manual == nil {
			l.Manual = &ManualPart{}
		}

		in := tax.Input{Currency: l.Currency, Taxes: taxes, BaseAccountID: l.AccountID}
		if l.Manual.ForcePriceIncluded {
			in.Amount = l.Manual.TaxBaseAmountCurrency
			in.ForcePriceIncluded = true
		} else {
			in.Amount = l.AmountCurrency
			in.IgnorePriceInclude = true
		}
		res := tax.Compute(in)
		if l.Manual.ForcePriceIncluded {
			l.AmountCurrency = res.Base
			l.Balance = s.toCompany(res.Base, l.Currency)
		}
		l.TaxTagIDs = res.BaseTagIDs

		for _, tl := range res.Lines {
			key := taxKey{taxID: tl.TaxID, accountID: tl.AccountID, refund: tl.Refund, currency: l.Currency.Code}
			g, ok := groups[key]
			if !ok {
				g = &taxGroup{key: key, name: tl.Tax.Name, tagIDs: tl.TagIDs}
				groups[key] = g
				order = append(order, key)
			}
			g.amountCurrency = g.amountCurrency.Add(tl.Amount)
			g.balance = g.balance.Add(s.toCompany(tl.Amount, l.Currency))
		}
	}

	for _, l := range s.linesWithFlag(FlagTax) {
		key := taxKey{accountID: l.AccountID, currency: l.Currency.Code}
		if l.Tax != nil {
			key.taxID, key.refund = l.Tax.TaxID, l.Tax.Refund
		}
		if g, ok := groups[key]; ok && g.line == nil {
			g.line = l
		}
	}

	keep := make(map[*Line]bool)
	for _, key := range order {
		g := groups[key]
		if g.amountCurrency.IsZero() && g.balance.IsZero() {
			continue
		}
		if g.line == nil {
			g.line = s.newLine(Line{
				Flag:      FlagTax,
				AccountID: key.accountID,
				Currency:  s.currencyOf(key.currency),
				Tax:       &TaxPart{TaxID: key.taxID, Refund: key.refund},
			})
			s.lines = append(s.lines, g.line)
		}
		g.line.Name = g.name
		g.line.PartnerID = s.partnerID
		g.line.TaxTagIDs = append([]int64(nil), g.tagIDs...)
		g.line.AmountCurrency = g.amountCurrency
		g.line.Balance = g.balance
		keep[g.line] = true
	}
	s.removeLines(func(l *Line) bool { return l.Flag == FlagTax && !keep[l] })
}
