package matcher

import (
	"context"
	"strings"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Input describes the statement line the rules run against.
type Input struct {
	Line      *models.StatementLine
	PartnerID int64
	// Currency is the transaction currency of the statement line.
	Currency *models.Currency
	// Residual is the open amount matched lines should absorb, in the
	// transaction currency and with the sign of a matched line.
	Residual   decimal.Decimal
	ExcludeIDs []int64
	// Contribution converts a candidate residual into the transaction
	// currency with the sign of a matched line.
	Contribution func(*models.LedgerLine) (decimal.Decimal, error)
}

// Result is the outcome of the first rule that applied.
type Result struct {
	Model         *models.ReconcileModel
	LedgerLines   []*models.LedgerLine
	Status        Status
	AutoReconcile bool
}

// MatchingEngine evaluates reconcile models for statement lines.
type MatchingEngine struct {
	chart  *chart.Chart
	ledger ledger.Reader
	config *MatchingConfig
	logger logger.Logger
}

// NewMatchingEngine creates a rules engine. A nil config uses the defaults.
func NewMatchingEngine(c *chart.Chart, reader ledger.Reader, config *MatchingConfig, log logger.Logger) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &MatchingEngine{
		chart:  c,
		ledger: reader,
		config: config,
		logger: log.WithComponent("matcher"),
	}
}

// Config returns the engine configuration.
func (e *MatchingEngine) Config() *MatchingConfig {
	return e.config
}

// Apply runs the models by sequence and returns the first result, or nil
// when no model applies.
func (e *MatchingEngine) Apply(ctx context.Context, in Input) (*Result, error) {
	if in.Line == nil {
		return nil, errors.New("matcher: statement line is required")
	}

	for _, m := range e.chart.ReconcileModels() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.RuleType == models.RuleWriteOffButton {
			continue
		}
		if !m.MatchesStatementLine(in.Line, in.PartnerID) {
			continue
		}

		switch m.RuleType {
		case models.RuleWriteOffSuggestion:
			e.logger.WithFields(logger.Fields{
				"statement_line_id": in.Line.ID,
				"model":             m.Name,
			}).Debug("Write-off model applies")
			return &Result{Model: m, Status: StatusWriteOff, AutoReconcile: m.AutoReconcile}, nil

		case models.RuleInvoiceMatching:
			result, err := e.matchInvoices(ctx, m, in)
			if err != nil {
				return nil, errors.Wrapf(err, "matcher: model %s", m.Name)
			}
			if result != nil {
				e.logger.WithFields(logger.Fields{
					"statement_line_id": in.Line.ID,
					"model":             m.Name,
					"status":            result.Status,
					"candidates":        len(result.LedgerLines),
				}).Debug("Invoice matching model applies")
				return result, nil
			}
		}
	}
	return nil, nil
}

func (e *MatchingEngine) matchInvoices(ctx context.Context, m *models.ReconcileModel, in Input) (*Result, error) {
	if in.Currency.IsZero(in.Residual) || in.Contribution == nil {
		return nil, nil
	}

	lines, err := e.ledger.OpenLedgerLines(ctx, ledger.LedgerFilter{
		AccountIDs: e.chart.ReconcilableAccountIDs(),
		ExcludeIDs: in.ExcludeIDs,
		Limit:      e.config.MaxCandidates,
	})
	if err != nil {
		return nil, err
	}

	var textMatched []*models.LedgerLine
	if e.config.TextMatching || m.MatchTextLocation {
		textMatched = e.findByReference(lines, in.Line.PaymentRef)
	}

	pool := textMatched
	if len(pool) == 0 {
		if in.PartnerID == 0 {
			return nil, nil
		}
		for _, l := range lines {
			if l.PartnerID == in.PartnerID {
				pool = append(pool, l)
			}
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	candidates := make([]*Candidate, 0, len(pool))
	for _, l := range pool {
		amount, err := in.Contribution(l)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, &Candidate{Line: l, Amount: amount})
	}

	index := NewCandidateIndex(candidates, in.Currency)
	ordered := index.Ordered(in.Residual)
	if len(ordered) == 0 {
		return nil, nil
	}

	if exact := index.GetByExactAmount(in.Residual); len(exact) > 0 {
		return &Result{
			Model:         m,
			LedgerLines:   []*models.LedgerLine{ordered[0].Line},
			Status:        StatusMatched,
			AutoReconcile: m.AutoReconcile,
		}, nil
	}

	sum := decimal.Zero
	var selected []*models.LedgerLine
	for _, c := range ordered {
		selected = append(selected, c.Line)
		sum = sum.Add(c.Amount)
		if sum.Abs().GreaterThanOrEqual(in.Residual.Abs()) {
			break
		}
	}

	switch {
	case in.Currency.Compare(sum, in.Residual) == 0:
		return &Result{Model: m, LedgerLines: selected, Status: StatusMatched, AutoReconcile: m.AutoReconcile}, nil
	case m.AllowPaymentTolerance && WithinTolerance(sum, in.Residual, m.PaymentTolerancePercent):
		return &Result{Model: m, LedgerLines: selected, Status: StatusWriteOff, AutoReconcile: m.AutoReconcile}, nil
	default:
		return &Result{Model: m, LedgerLines: selected, Status: StatusProposed}, nil
	}
}

// findByReference returns the lines whose move name or reference appears in
// the payment label.
func (e *MatchingEngine) findByReference(lines []*models.LedgerLine, paymentRef string) []*models.LedgerLine {
	label := strings.ToLower(paymentRef)
	if strings.TrimSpace(label) == "" {
		return nil
	}

	var out []*models.LedgerLine
	for _, l := range lines {
		for _, ref := range []string{l.MoveName, l.MoveRef} {
			ref = strings.ToLower(strings.TrimSpace(ref))
			if len(ref) < e.config.MinReferenceLength || ref == "" {
				continue
			}
			if strings.Contains(label, ref) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
