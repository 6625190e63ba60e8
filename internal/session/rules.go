package session

import (
	"context"

	"golang-bankrec-service/internal/matcher"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// SelectReconcileModel applies the write-off lines of a reconcile model to
// the open amount. Lines from a previously selected model are replaced.
func (s *Session) SelectReconcileModel(ctx context.Context, modelID int64) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	m, err := s.deps.Chart.ReconcileModel(modelID)
	if err != nil {
		return err
	}

	if s.modelID != 0 {
		previous := s.modelID
		s.removeLines(func(l *Line) bool {
			return l.Flag == FlagManual && l.ReconcileModelID == previous
		})
		s.recomputeTaxes()
		s.recomputeAutoBalance()
	}

	residual := decimal.Zero
	if auto := s.autoBalance(); auto != nil {
		residual = auto.AmountCurrency
	}

	for _, w := range matcher.WriteOffLines(m, residual, s.transactionAmount(), s.transCur) {
		s.lines = append(s.lines, s.newLine(Line{
			Flag:             FlagManual,
			AccountID:        w.AccountID,
			PartnerID:        s.partnerID,
			Name:             w.Label,
			Currency:         s.transCur,
			AmountCurrency:   w.AmountCurrency,
			Balance:          s.toCompany(w.AmountCurrency, s.transCur),
			TaxIDs:           w.TaxIDs,
			ReconcileModelID: m.ID,
			Manual: &ManualPart{
				ForcePriceIncluded:    len(w.TaxIDs) > 0,
				TaxBaseAmountCurrency: w.AmountCurrency,
			},
		}))
	}

	s.modelID = m.ID
	s.toCheck = m.ToCheck
	s.recomputeTaxes()
	s.recomputeAutoBalance()

	s.log.WithFields(logger.Fields{"model": m.Name, "lines": len(m.Lines)}).Debug("Reconcile model applied")
	return nil
}

// TriggerMatchingRules runs the automatic reconcile models and applies the
// first that matches. It reports whether a model applied.
func (s *Session) TriggerMatchingRules(ctx context.Context) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	if s.deps.Rules == nil {
		return false, errors.InvalidError(errors.CodeInvalidState, "no matching rules engine configured")
	}

	if s.partnerID == 0 {
		if id := matcher.RetrievePartner(s.deps.Chart, s.statementLine); id != 0 {
			s.partnerID = id
			if liq := s.liquidity(); liq != nil {
				liq.PartnerID = id
			}
			s.recomputeAutoBalance()
		}
	}

	residual := decimal.Zero
	if auto := s.autoBalance(); auto != nil {
		residual = auto.AmountCurrency
	}
	var exclude []int64
	for _, l := range s.linesWithFlag(FlagMatched) {
		exclude = append(exclude, l.SourceLineID())
	}

	ratio := s.companyRatio()
	res, err := s.deps.Rules.Apply(ctx, matcher.Input{
		Line:       s.statementLine,
		PartnerID:  s.partnerID,
		Currency:   s.transCur,
		Residual:   residual,
		ExcludeIDs: exclude,
		Contribution: func(ll *models.LedgerLine) (decimal.Decimal, error) {
			if ll.Currency == s.transCur.Code || (ll.Currency == "" && s.transCur.Equal(s.companyCur)) {
				return ll.AmountResidualCurrency.Neg(), nil
			}
			return s.transCur.Round(ll.AmountResidual.Neg().Div(ratio)), nil
		},
	})
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}

	ids := make([]int64, len(res.LedgerLines))
	for i, l := range res.LedgerLines {
		ids[i] = l.ID
	}
	if len(ids) > 0 {
		if err := s.addMatch(ctx, ids, res.Status != matcher.StatusWriteOff, res.Model.ID); err != nil {
			return false, err
		}
	}
	if res.Status == matcher.StatusWriteOff {
		if err := s.SelectReconcileModel(ctx, res.Model.ID); err != nil {
			return false, err
		}
	}
	s.modelID = res.Model.ID
	s.autoReconcile = res.AutoReconcile && res.Status != matcher.StatusProposed

	s.log.WithFields(logger.Fields{
		"model":          res.Model.Name,
		"status":         res.Status,
		"auto_reconcile": s.autoReconcile,
	}).Info("Matching rule applied")
	return true, nil
}
