package matcher

import (
	"sort"

	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

// Candidate is an open ledger line with its contribution to the session
// expressed in the transaction currency (already negated, like a matched
// line).
type Candidate struct {
	Line   *models.LedgerLine
	Amount decimal.Decimal
}

// CandidateIndex groups candidates by rounded amount for exact lookups.
type CandidateIndex struct {
	currency    *models.Currency
	exactAmount map[string][]*Candidate
	all         []*Candidate
}

// NewCandidateIndex indexes the candidates. cur is the currency Amount is
// expressed in.
func NewCandidateIndex(candidates []*Candidate, cur *models.Currency) *CandidateIndex {
	index := &CandidateIndex{
		currency:    cur,
		exactAmount: make(map[string][]*Candidate),
		all:         candidates,
	}
	for _, c := range candidates {
		key := cur.Round(c.Amount).String()
		index.exactAmount[key] = append(index.exactAmount[key], c)
	}
	return index
}

// Len returns the number of indexed candidates.
func (ci *CandidateIndex) Len() int {
	return len(ci.all)
}

// GetByExactAmount returns the candidates equal to amount at the currency
// precision.
func (ci *CandidateIndex) GetByExactAmount(amount decimal.Decimal) []*Candidate {
	return ci.exactAmount[ci.currency.Round(amount).String()]
}

// Ordered returns the candidates with an amount equal to preferred first,
// then by maturity date, then by id. Candidates of the wrong sign are
// dropped.
func (ci *CandidateIndex) Ordered(preferred decimal.Decimal) []*Candidate {
	out := make([]*Candidate, 0, len(ci.all))
	for _, c := range ci.all {
		if preferred.Sign() != 0 && c.Amount.Sign() != preferred.Sign() {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ei := ci.currency.Compare(out[i].Amount, preferred) == 0
		ej := ci.currency.Compare(out[j].Amount, preferred) == 0
		if ei != ej {
			return ei
		}
		a, b := out[i].Line, out[j].Line
		if !a.DateMaturity.Equal(b.DateMaturity) {
			return a.DateMaturity.Before(b.DateMaturity)
		}
		return a.ID < b.ID
	})
	return out
}
