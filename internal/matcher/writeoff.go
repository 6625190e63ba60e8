package matcher

import (
	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// WriteOff is one line produced by a reconcile model, in the transaction
// currency.
type WriteOff struct {
	AccountID      int64
	Label          string
	AmountCurrency decimal.Decimal
	TaxIDs         []int64
}

// WriteOffLines computes the model lines for an open residual (the amount
// still needed to balance the session) and the statement transaction
// amount. Each line consumes part of the residual; zero lines are skipped.
func WriteOffLines(m *models.ReconcileModel, residual, transactionAmount decimal.Decimal, cur *models.Currency) []WriteOff {
	var out []WriteOff
	for _, line := range m.Lines {
		var amount decimal.Decimal
		switch line.AmountType {
		case models.WriteOffPercentageStLine:
			amount = cur.Round(transactionAmount.Neg().Mul(line.Amount).Div(hundred))
		case models.WriteOffFixed:
			if residual.IsNegative() {
				amount = cur.Round(line.Amount.Neg())
			} else {
				amount = cur.Round(line.Amount)
			}
		default:
			amount = cur.Round(residual.Mul(line.Amount).Div(hundred))
		}
		if cur.IsZero(amount) {
			continue
		}

		label := line.Label
		if label == "" {
			label = m.Name
		}
		out = append(out, WriteOff{
			AccountID:      line.AccountID,
			Label:          label,
			AmountCurrency: amount,
			TaxIDs:         append([]int64(nil), line.TaxIDs...),
		})
		residual = residual.Sub(amount)
	}
	return out
}
