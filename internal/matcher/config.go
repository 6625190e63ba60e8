// Package matcher applies reconcile models to a statement line.
//
// Models are evaluated by sequence. The first model whose conditions hold
// and that yields something wins:
//   - writeoff_suggestion models propose their write-off lines
//   - invoice_matching models look for open receivable/payable lines,
//     first by reference found in the payment label, then by partner
//
// Candidates are ordered with the lines whose residual equals the open
// amount first (compared at the currency's minimal unit), then by maturity
// date and id. A candidate set covering the open amount exactly allows the
// model to auto-reconcile; one covering it within the payment tolerance of
// the model is proposed with the model's write-off.
//
// Example usage:
//
//	engine := matcher.NewMatchingEngine(chart, store, matcher.DefaultMatchingConfig())
//	result, err := engine.Apply(ctx, matcher.Input{Line: st, PartnerID: partnerID, ...})
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Status tells how a rule result should be applied.
type Status string

const (
	// StatusMatched means the candidates cover the open amount.
	StatusMatched Status = "matched"
	// StatusWriteOff means the model's write-off lines close the remainder.
	StatusWriteOff Status = "write_off"
	// StatusProposed means candidates were found but do not settle the line.
	StatusProposed Status = "proposed"
)

// MatchingConfig holds the knobs of the candidate search.
type MatchingConfig struct {
	// MaxCandidates limits the ledger lines fetched per rule.
	MaxCandidates int `json:"max_candidates" mapstructure:"max_candidates"`

	// TextMatching searches move names and references inside the payment
	// label before falling back to the partner.
	TextMatching bool `json:"text_matching" mapstructure:"text_matching"`

	// MinReferenceLength ignores references too short to be meaningful.
	MinReferenceLength int `json:"min_reference_length" mapstructure:"min_reference_length"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		MaxCandidates:      200,
		TextMatching:       true,
		MinReferenceLength: 3,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive: %d", mc.MaxCandidates)
	}
	if mc.MinReferenceLength < 0 {
		return fmt.Errorf("min reference length cannot be negative: %d", mc.MinReferenceLength)
	}
	return nil
}

// Clone returns a copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	c := *mc
	return &c
}

// WithinTolerance reports whether an open amount covered by total is short
// by at most percent of total. Both amounts carry the same sign and the
// candidates must cover more than the open amount.
func WithinTolerance(total, open, percent decimal.Decimal) bool {
	if total.IsZero() || percent.IsNegative() {
		return false
	}
	if total.Sign() != open.Sign() {
		return false
	}
	gap := total.Abs().Sub(open.Abs())
	if gap.IsNegative() {
		return false
	}
	ratio := gap.Div(total.Abs()).Mul(decimal.NewFromInt(100))
	return ratio.LessThanOrEqual(percent)
}

func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{MaxCandidates: %d, TextMatching: %t, MinReferenceLength: %d}",
		mc.MaxCandidates, mc.TextMatching, mc.MinReferenceLength)
}
