package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// RuleType is the kind of reconcile model.
type RuleType string

const (
	RuleWriteOffButton     RuleType = "writeoff_button"
	RuleWriteOffSuggestion RuleType = "writeoff_suggestion"
	RuleInvoiceMatching    RuleType = "invoice_matching"
)

// MatchNature restricts a model to incoming or outgoing payments.
type MatchNature string

const (
	NatureReceived MatchNature = "amount_received"
	NaturePaid     MatchNature = "amount_paid"
	NatureBoth     MatchNature = "both"
)

// AmountCondition restricts a model to an amount range.
type AmountCondition string

const (
	AmountLower   AmountCondition = "lower"
	AmountGreater AmountCondition = "greater"
	AmountBetween AmountCondition = "between"
)

// LabelCondition restricts a model on the payment reference.
type LabelCondition string

const (
	LabelContains    LabelCondition = "contains"
	LabelNotContains LabelCondition = "not_contains"
	LabelMatchRegex  LabelCondition = "match_regex"
)

// WriteOffAmountType selects how a model line amount is computed.
type WriteOffAmountType string

const (
	WriteOffPercentage       WriteOffAmountType = "percentage"
	WriteOffFixed            WriteOffAmountType = "fixed"
	WriteOffPercentageStLine WriteOffAmountType = "percentage_st_line"
)

// ReconcileModelLine produces one write-off line.
type ReconcileModelLine struct {
	AccountID  int64              `json:"account_id" yaml:"account_id"`
	Label      string             `json:"label,omitempty" yaml:"label"`
	AmountType WriteOffAmountType `json:"amount_type" yaml:"amount_type"`
	Amount     decimal.Decimal    `json:"amount" yaml:"amount"`
	TaxIDs     []int64            `json:"tax_ids,omitempty" yaml:"tax_ids"`
}

// ReconcileModel is a reusable matching / write-off rule.
type ReconcileModel struct {
	ID                      int64                `json:"id" yaml:"id"`
	Name                    string               `json:"name" yaml:"name"`
	Sequence                int                  `json:"sequence" yaml:"sequence"`
	RuleType                RuleType             `json:"rule_type" yaml:"rule_type"`
	AutoReconcile           bool                 `json:"auto_reconcile" yaml:"auto_reconcile"`
	ToCheck                 bool                 `json:"to_check" yaml:"to_check"`
	MatchJournalIDs         []int64              `json:"match_journal_ids,omitempty" yaml:"match_journal_ids"`
	MatchNature             MatchNature          `json:"match_nature" yaml:"match_nature"`
	MatchAmount             AmountCondition      `json:"match_amount,omitempty" yaml:"match_amount"`
	MatchAmountMin          decimal.Decimal      `json:"match_amount_min" yaml:"match_amount_min"`
	MatchAmountMax          decimal.Decimal      `json:"match_amount_max" yaml:"match_amount_max"`
	MatchLabel              LabelCondition       `json:"match_label,omitempty" yaml:"match_label"`
	MatchLabelParam         string               `json:"match_label_param,omitempty" yaml:"match_label_param"`
	MatchPartner            bool                 `json:"match_partner" yaml:"match_partner"`
	MatchPartnerIDs         []int64              `json:"match_partner_ids,omitempty" yaml:"match_partner_ids"`
	MatchTextLocation       bool                 `json:"match_text_location" yaml:"match_text_location"`
	AllowPaymentTolerance   bool                 `json:"allow_payment_tolerance" yaml:"allow_payment_tolerance"`
	PaymentTolerancePercent decimal.Decimal      `json:"payment_tolerance_param" yaml:"payment_tolerance_param"`
	Lines                   []ReconcileModelLine `json:"lines,omitempty" yaml:"lines"`
}

// Validate performs basic validation on the ReconcileModel
func (m *ReconcileModel) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("reconcile model id must be positive")
	}
	switch m.RuleType {
	case RuleWriteOffButton, RuleWriteOffSuggestion, RuleInvoiceMatching:
	default:
		return fmt.Errorf("reconcile model %s: invalid rule type %q", m.Name, m.RuleType)
	}
	if m.MatchNature == "" {
		m.MatchNature = NatureBoth
	}
	if m.MatchLabel == LabelMatchRegex {
		if _, err := regexp.Compile(m.MatchLabelParam); err != nil {
			return fmt.Errorf("reconcile model %s: invalid label regex: %w", m.Name, err)
		}
	}
	for i, line := range m.Lines {
		if line.AccountID <= 0 {
			return fmt.Errorf("reconcile model %s: line %d has no account", m.Name, i)
		}
	}
	return nil
}

// MatchesStatementLine checks the journal, nature, amount, label and
// partner conditions against a statement line.
func (m *ReconcileModel) MatchesStatementLine(st *StatementLine, partnerID int64) bool {
	if len(m.MatchJournalIDs) > 0 && !containsID(m.MatchJournalIDs, st.JournalID) {
		return false
	}

	switch m.MatchNature {
	case NatureReceived:
		if st.Amount.IsNegative() {
			return false
		}
	case NaturePaid:
		if st.Amount.IsPositive() {
			return false
		}
	}

	abs := st.Amount.Abs()
	switch m.MatchAmount {
	case AmountLower:
		if abs.GreaterThanOrEqual(m.MatchAmountMax) {
			return false
		}
	case AmountGreater:
		if abs.LessThanOrEqual(m.MatchAmountMin) {
			return false
		}
	case AmountBetween:
		if abs.LessThan(m.MatchAmountMin) || abs.GreaterThan(m.MatchAmountMax) {
			return false
		}
	}

	ref := strings.ToLower(st.PaymentRef)
	param := strings.ToLower(m.MatchLabelParam)
	switch m.MatchLabel {
	case LabelContains:
		if !strings.Contains(ref, param) {
			return false
		}
	case LabelNotContains:
		if strings.Contains(ref, param) {
			return false
		}
	case LabelMatchRegex:
		re, err := regexp.Compile(m.MatchLabelParam)
		if err != nil || !re.MatchString(st.PaymentRef) {
			return false
		}
	}

	if m.MatchPartner {
		if partnerID == 0 {
			return false
		}
		if len(m.MatchPartnerIDs) > 0 && !containsID(m.MatchPartnerIDs, partnerID) {
			return false
		}
	}

	return true
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
