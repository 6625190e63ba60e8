package session

import (
	"sort"
	"strconv"
	"strings"

	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

const earlyPaymentLabel = "Early Payment Discount"

type discountPart struct {
	accountID      int64
	taxIDs         []int64
	tax            *TaxPart
	amountCurrency decimal.Decimal
}

// recomputeEarlyPayment books the cash discounts of the matched lines when
// the statement amount is exactly the discounted total. It reports whether
// a discount applies.
func (s *Session) recomputeEarlyPayment() bool {
	s.removeLines(func(l *Line) bool { return l.Flag == FlagEarlyPayment })

	matched := s.linesWithFlag(FlagMatched)
	if len(matched) == 0 {
		return false
	}

	date := s.statementLine.Date
	eligible := false
	sumDue := decimal.Zero
	for _, l := range matched {
		src := l.Matched.Source
		if src == nil || !l.Currency.Equal(s.transCur) {
			return false
		}
		if src.EarlyPaymentEligible(date) {
			eligible = true
			sumDue = sumDue.Sub(src.EarlyPayment.DiscountAmountCurrency)
		} else {
			sumDue = sumDue.Add(l.Matched.SourceAmountCurrency)
		}
	}
	if !eligible {
		return false
	}

	open := decimal.Zero
	for _, l := range s.lines {
		switch l.Flag {
		case FlagMatched, FlagExchangeDiff, FlagEarlyPayment, FlagAutoBalance:
			continue
		}
		open = open.Sub(s.inTransactionCurrency(l))
	}
	if s.transCur.Compare(sumDue, open) != 0 {
		return false
	}

	for _, l := range matched {
		if l.IsPartial() {
			l.Matched.ManuallyModified = false
			s.resetToSource(l)
		}
	}

	for _, l := range matched {
		src := l.Matched.Source
		if !src.EarlyPaymentEligible(date) {
			continue
		}
		discount := src.AmountCurrency.Sub(src.EarlyPayment.DiscountAmountCurrency)
		rate := src.Rate()
		for _, part := range s.discountParts(src.EarlyPayment, discount, l.Currency) {
			s.lines = append(s.lines, s.newLine(Line{
				Flag:           FlagEarlyPayment,
				AccountID:      part.accountID,
				PartnerID:      l.PartnerID,
				Name:           earlyPaymentLabel,
				Currency:       l.Currency,
				AmountCurrency: part.amountCurrency,
				Balance:        s.companyCur.Round(part.amountCurrency.Div(rate)),
				TaxIDs:         part.taxIDs,
				Tax:            part.tax,
			}))
		}
	}

	openBalance := decimal.Zero
	for _, l := range s.lines {
		if l.Flag != FlagAutoBalance {
			openBalance = openBalance.Sub(l.Balance)
		}
	}
	openBalance = s.companyCur.Round(openBalance)
	if !openBalance.IsZero() {
		company := s.company
		account := company.ExpenseExchangeAccountID
		if openBalance.IsNegative() {
			account = company.IncomeExchangeAccountID
		}
		ac := decimal.Zero
		if s.transCur.Equal(s.companyCur) {
			ac = openBalance
		}
		s.lines = append(s.lines, s.newLine(Line{
			Flag:           FlagEarlyPayment,
			AccountID:      account,
			PartnerID:      s.partnerID,
			Name:           earlyPaymentLabel + " (Exchange Difference)",
			Currency:       s.transCur,
			AmountCurrency: ac,
			Balance:        openBalance,
		}))
	}

	s.log.WithField("open_balance", openBalance.String()).Debug("Early payment discount applied")
	return true
}

// discountParts splits a discount over the invoice lines it was computed
// from. The last part absorbs the rounding remainder.
func (s *Session) discountParts(term *models.EarlyPaymentTerm, discount decimal.Decimal, cur *models.Currency) []discountPart {
	company := s.company
	accountFor := func(amount decimal.Decimal) int64 {
		if amount.IsPositive() {
			return company.EarlyPayLossAccountID
		}
		return company.EarlyPayGainAccountID
	}

	var parts []discountPart
	if len(term.BaseLines) > 0 {
		type group struct {
			taxIDs []int64
			sum    decimal.Decimal
		}
		groups := make(map[string]*group)
		var order []string
		for _, b := range term.BaseLines {
			ids := append([]int64(nil), b.TaxIDs...)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			key := taxKeyString(ids)
			g, ok := groups[key]
			if !ok {
				g = &group{taxIDs: ids}
				groups[key] = g
				order = append(order, key)
			}
			g.sum = g.sum.Add(b.AmountCurrency)
		}
		for _, key := range order {
			g := groups[key]
			amount := cur.Round(g.sum.Mul(term.Percentage).Div(hundred))
			parts = append(parts, discountPart{accountID: accountFor(amount), taxIDs: g.taxIDs, amountCurrency: amount})
		}
		if term.Computation == models.EarlyPaymentIncluded {
			for _, t := range term.TaxLines {
				amount := cur.Round(t.AmountCurrency.Mul(term.Percentage).Div(hundred))
				parts = append(parts, discountPart{
					accountID:      t.AccountID,
					tax:            &TaxPart{TaxID: t.TaxID},
					amountCurrency: amount,
				})
			}
		}
	}
	if len(parts) == 0 {
		parts = []discountPart{{accountID: accountFor(discount), amountCurrency: discount}}
	}

	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p.amountCurrency)
	}
	last := &parts[len(parts)-1]
	last.amountCurrency = last.amountCurrency.Add(discount.Sub(sum))

	out := parts[:0]
	for _, p := range parts {
		if !cur.IsZero(p.amountCurrency) {
			out = append(out, p)
		}
	}
	return out
}

func taxKeyString(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
