package session

import (
	"context"
	"fmt"

	"golang-bankrec-service/internal/exchange"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Suggestion is the amount proposed for a matched line: either the full
// residual of a partially matched line or the part needed to balance a
// fully matched one.
type Suggestion struct {
	Index          int             `json:"index"`
	AmountCurrency decimal.Decimal `json:"amount_currency"`
	Balance        decimal.Decimal `json:"balance"`
	Full           bool            `json:"full"`
}

// AddMatch matches open ledger lines. Lines already matched are ignored.
// When the lines exceed the statement amount, the last one is partially
// matched.
func (s *Session) AddMatch(ctx context.Context, ledgerLineIDs ...int64) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.addMatch(ctx, ledgerLineIDs, true, 0)
}

func (s *Session) addMatch(ctx context.Context, ids []int64, allowPartial bool, modelID int64) error {
	present := make(map[int64]bool)
	for _, l := range s.linesWithFlag(FlagMatched) {
		present[l.SourceLineID()] = true
	}
	var wanted []int64
	for _, id := range ids {
		if present[id] {
			continue
		}
		present[id] = true
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return nil
	}

	sources, err := s.deps.Ledger.LedgerLines(ctx, wanted)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if !src.IsOpen() {
			return errors.InvalidError(errors.CodeInvalidLine,
				fmt.Sprintf("ledger line %d has nothing left to reconcile", src.ID)).WithContext("ledger_line_id", src.ID)
		}
	}

	added := make([]*Line, 0, len(sources))
	for _, src := range sources {
		l := s.newLine(Line{
			Flag:             FlagMatched,
			AccountID:        src.AccountID,
			PartnerID:        src.PartnerID,
			Name:             src.Label(),
			Currency:         s.currencyOf(src.Currency),
			AmountCurrency:   src.AmountResidualCurrency.Neg(),
			Balance:          src.AmountResidual.Neg(),
			ReconcileModelID: modelID,
			Matched: &MatchedPart{
				SourceLineID:         src.ID,
				SourceAmountCurrency: src.AmountResidualCurrency.Neg(),
				SourceBalance:        src.AmountResidual.Neg(),
				SourceVersion:        src.Version,
				Source:               src,
			},
		})
		s.lines = append(s.lines, l)
		added = append(added, l)
	}
	for _, l := range added {
		s.recomputeExchange(l)
	}
	s.recomputeAutoBalance()

	if !s.recomputeEarlyPayment() && allowPartial {
		s.recomputePartials()
	}
	s.recomputeAutoBalance()

	s.log.WithFields(logger.Fields{
		"ledger_line_ids": wanted,
		"lines":           len(s.lines),
	}).Debug("Ledger lines matched")
	return nil
}

// recomputeExchange replaces the exchange difference line of a matched line.
func (s *Session) recomputeExchange(l *Line) {
	source := l.SourceLineID()
	s.removeLines(func(x *Line) bool {
		return x.Flag == FlagExchangeDiff && x.SourceLineID() == source
	})

	diff, ok, err := s.exchange.Compute(exchange.Settled{
		Currency:       l.Currency,
		AmountCurrency: l.AmountCurrency,
		Balance:        l.Balance,
	}, s.transaction())
	s.warnRate(err)
	if !ok {
		return
	}

	_, pos := s.find(l.Index)
	matched := *l.Matched
	s.insertAt(pos+1, s.newLine(Line{
		Flag:           FlagExchangeDiff,
		AccountID:      diff.AccountID,
		PartnerID:      l.PartnerID,
		Name:           "Exchange Difference: " + l.Name,
		Currency:       l.Currency,
		AmountCurrency: diff.AmountCurrency,
		Balance:        diff.Balance,
		Matched:        &matched,
	}))
}

func (s *Session) exchangeLineOf(l *Line) *Line {
	for _, x := range s.lines {
		if x.Flag == FlagExchangeDiff && x.SourceLineID() == l.SourceLineID() {
			return x
		}
	}
	return nil
}

func (s *Session) resetToSource(l *Line) {
	l.AmountCurrency = l.Matched.SourceAmountCurrency
	l.Balance = l.Matched.SourceBalance
	s.recomputeExchange(l)
}

// recomputePartials matches every line in full, then reduces the last one
// to what the statement line can still pay.
func (s *Session) recomputePartials() {
	for _, l := range s.linesWithFlag(FlagMatched) {
		if l.IsPartial() && !l.Matched.ManuallyModified {
			s.resetToSource(l)
		}
	}
	s.recomputeAutoBalance()

	matched := s.linesWithFlag(FlagMatched)
	if len(matched) == 0 {
		return
	}
	last := matched[len(matched)-1]
	if last.Matched.ManuallyModified {
		return
	}
	if ac, bal, exch, ok := s.partialAmounts(last); ok {
		s.applyPartial(last, ac, bal, exch)
	}
}

// enough reports whether a line settles more than the open amount of the
// opposite sign.
func enough(line, open decimal.Decimal) bool {
	switch {
	case line.IsNegative() && open.IsPositive():
		return line.Neg().GreaterThan(open)
	case line.IsPositive() && open.IsNegative():
		return line.GreaterThan(open.Neg())
	}
	return false
}

// partialAmounts computes the amounts reducing l so that the session
// balances, with the exchange difference that goes along.
func (s *Session) partialAmounts(l *Line) (ac, bal, exch decimal.Decimal, ok bool) {
	auto := s.autoBalance()
	if auto == nil {
		return ac, bal, exch, false
	}
	exchBal := decimal.Zero
	if x := s.exchangeLineOf(l); x != nil {
		exchBal = x.Balance
	}

	if l.Currency.Equal(s.transCur) {
		if !enough(l.AmountCurrency, auto.AmountCurrency) {
			return ac, bal, exch, false
		}
		ac = l.AmountCurrency.Add(auto.AmountCurrency)
		balAfter := s.companyCur.Round(ac.Mul(s.companyRatio()))
		bal = balAfter
		if total := l.Balance.Add(exchBal).Abs(); !total.IsZero() {
			bal = s.companyCur.Round(balAfter.Mul(l.Balance.Abs()).Div(total))
		}
		if l.Currency.Equal(s.companyCur) {
			bal = ac
		}
		return ac, bal, balAfter.Sub(bal), true
	}

	current := l.Balance.Add(exchBal)
	if !enough(current, auto.Balance) || current.IsZero() {
		return ac, bal, exch, false
	}
	balAfter := current.Add(auto.Balance)
	share := balAfter.Mul(l.Balance.Abs()).Div(current.Abs())
	bal = s.companyCur.Round(share)
	switch {
	case l.Currency.Equal(s.companyCur):
		ac = bal
	case l.Matched.SourceBalance.IsZero():
		ac = l.AmountCurrency
	default:
		// Converted from the unrounded share so the foreign amount does not
		// inherit the company rounding.
		ac = l.Currency.Round(share.Mul(l.Matched.SourceAmountCurrency).Div(l.Matched.SourceBalance))
	}
	return ac, bal, balAfter.Sub(bal), true
}

func (s *Session) applyPartial(l *Line, ac, bal, exch decimal.Decimal) {
	l.AmountCurrency = ac
	l.Balance = bal

	x := s.exchangeLineOf(l)
	switch {
	case x == nil && !exch.IsZero():
		s.recomputeExchange(l)
	case x != nil && exch.IsZero():
		s.removeLines(func(y *Line) bool { return y == x })
	case x != nil:
		x.Balance = exch
		if x.Currency.Equal(s.companyCur) {
			x.AmountCurrency = exch
		}
	}
	s.recomputeAutoBalance()
}

// Suggestion returns the amount proposed for a matched line.
func (s *Session) Suggestion(index int) (Suggestion, bool) {
	l, _ := s.find(index)
	if l == nil || l.Flag != FlagMatched {
		return Suggestion{}, false
	}
	if l.IsPartial() {
		return Suggestion{
			Index:          index,
			AmountCurrency: l.Matched.SourceAmountCurrency,
			Balance:        l.Matched.SourceBalance,
			Full:           true,
		}, true
	}
	ac, bal, _, ok := s.partialAmounts(l)
	if !ok {
		return Suggestion{}, false
	}
	return Suggestion{Index: index, AmountCurrency: ac, Balance: bal}, true
}

// ApplySuggestion toggles a matched line between its full residual and the
// partial amount balancing the session.
func (s *Session) ApplySuggestion(index int) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	l, err := s.mount(index)
	if err != nil {
		return err
	}
	if l.Flag != FlagMatched {
		return errors.InvalidError(errors.CodeInvalidLine, fmt.Sprintf("line %d is not a matched line", index))
	}
	sg, ok := s.Suggestion(index)
	if !ok {
		return nil
	}
	if l.Currency.Equal(s.companyCur) {
		s.setMatchedBalance(l, sg.Balance)
	} else {
		s.setMatchedAmountCurrency(l, sg.AmountCurrency)
	}
	return nil
}

// clampMatched keeps a typed amount between zero and the source residual,
// with the source sign.
func clampMatched(v, source decimal.Decimal) decimal.Decimal {
	if v.IsZero() || v.Sign() != source.Sign() || v.Abs().GreaterThan(source.Abs()) {
		return source
	}
	return v
}

func (s *Session) setMatchedBalance(l *Line, v decimal.Decimal) {
	m := l.Matched
	v = clampMatched(s.companyCur.Round(v), m.SourceBalance)
	l.Balance = v
	switch {
	case l.Currency.Equal(s.companyCur):
		l.AmountCurrency = v
	case v.Equal(m.SourceBalance) || m.SourceBalance.IsZero():
		l.AmountCurrency = m.SourceAmountCurrency
	default:
		l.AmountCurrency = l.Currency.Round(v.Mul(m.SourceAmountCurrency).Div(m.SourceBalance))
	}
	m.ManuallyModified = true
	s.recomputeExchange(l)
	s.recomputeAutoBalance()
}

func (s *Session) setMatchedAmountCurrency(l *Line, v decimal.Decimal) {
	m := l.Matched
	v = clampMatched(l.Currency.Round(v), m.SourceAmountCurrency)
	l.AmountCurrency = v
	switch {
	case l.Currency.Equal(s.companyCur):
		l.Balance = v
	case v.Equal(m.SourceAmountCurrency) || m.SourceAmountCurrency.IsZero():
		l.Balance = m.SourceBalance
	default:
		rate := m.SourceAmountCurrency.Div(m.SourceBalance)
		l.Balance = s.companyCur.Round(v.Div(rate))
	}
	m.ManuallyModified = true
	s.recomputeExchange(l)
	s.recomputeAutoBalance()
}

// RemoveMatch drops the matched lines of the given ledger lines.
func (s *Session) RemoveMatch(ledgerLineIDs ...int64) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	for _, id := range ledgerLineIDs {
		for _, l := range s.linesWithFlag(FlagMatched) {
			if l.SourceLineID() == id {
				if err := s.RemoveLine(l.Index); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RemoveLine drops a line and whatever depends on it. The liquidity line
// cannot be removed; removing the auto-balance line only recomputes it.
func (s *Session) RemoveLine(index int) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	l, _ := s.find(index)
	if l == nil {
		return errors.InvalidError(errors.CodeInvalidLine, fmt.Sprintf("no line with index %d", index))
	}

	switch l.Flag {
	case FlagLiquidity:
		return errors.InvalidError(errors.CodeReadOnlyLine, "the liquidity line cannot be removed")

	case FlagMatched:
		source := l.SourceLineID()
		s.removeLines(func(x *Line) bool {
			return (x.Flag == FlagMatched || x.Flag == FlagExchangeDiff) && x.SourceLineID() == source
		})
		s.recomputeAutoBalance()
		if !s.recomputeEarlyPayment() {
			s.recomputePartials()
		}

	case FlagExchangeDiff, FlagTax:
		s.removeLines(func(x *Line) bool { return x == l })

	case FlagAutoBalance:

	default:
		hadTaxes := len(l.TaxIDs) > 0
		s.removeLines(func(x *Line) bool { return x == l })
		if hadTaxes {
			s.recomputeTaxes()
		}
	}
	s.recomputeAutoBalance()
	return nil
}
