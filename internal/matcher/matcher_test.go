package matcher

import (
	"context"
	"testing"
	"time"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	usd      = models.NewCurrency("USD", "$", 2)
	stDate   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dueEarly = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	dueLate  = time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
)

func createTestEngine(t *testing.T, rules ...*models.ReconcileModel) (*MatchingEngine, *ledger.MemoryStore) {
	t.Helper()
	c := chart.New(&models.Company{Name: "Test", Currency: usd})
	for _, a := range []*models.Account{
		{ID: 1, Code: "101200", Name: "Receivable", Type: models.AccountReceivable},
		{ID: 2, Code: "400000", Name: "Income", Type: models.AccountIncome},
	} {
		if err := c.AddAccount(a); err != nil {
			t.Fatalf("add account: %v", err)
		}
	}
	if err := c.AddPartner(&models.Partner{ID: 7, Name: "Acme", CustomerRank: 1, ReceivableAccountID: 1}); err != nil {
		t.Fatalf("add partner: %v", err)
	}
	for _, r := range rules {
		if err := c.AddReconcileModel(r); err != nil {
			t.Fatalf("add model: %v", err)
		}
	}

	store := ledger.NewMemoryStore()
	lines := []*models.LedgerLine{
		{ID: 101, MoveName: "INV/2024/0001", AccountID: 1, PartnerID: 7, DateMaturity: dueLate, AmountCurrency: d("600"), Balance: d("600")},
		{ID: 102, MoveName: "INV/2024/0002", AccountID: 1, PartnerID: 7, DateMaturity: dueEarly, AmountCurrency: d("400"), Balance: d("400")},
		{ID: 103, MoveName: "INV/2024/0003", AccountID: 1, DateMaturity: dueEarly, AmountCurrency: d("1000"), Balance: d("1000")},
		{ID: 104, MoveName: "MISC/2024/0001", AccountID: 2, PartnerID: 7, DateMaturity: dueEarly, AmountCurrency: d("1000"), Balance: d("1000")},
	}
	for _, l := range lines {
		l.AmountResidualCurrency, l.AmountResidual = l.AmountCurrency, l.Balance
		if _, err := store.CreateLedgerLine(context.Background(), l); err != nil {
			t.Fatalf("create ledger line: %v", err)
		}
	}

	return NewMatchingEngine(c, store, nil, logger.NewNopLogger()), store
}

func contribution(l *models.LedgerLine) (decimal.Decimal, error) {
	return l.AmountResidualCurrency.Neg(), nil
}

func newInput(ref string, partnerID int64, amount string) Input {
	return Input{
		Line:         &models.StatementLine{ID: 1, JournalID: 1, Date: stDate, PaymentRef: ref, Amount: d(amount)},
		PartnerID:    partnerID,
		Currency:     usd,
		Residual:     d(amount).Neg(),
		Contribution: contribution,
	}
}

func lineIDs(lines []*models.LedgerLine) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	return ids
}

func TestMatchingEngine_Apply(t *testing.T) {
	invoiceRule := &models.ReconcileModel{
		ID: 1, Name: "Invoices", Sequence: 10, RuleType: models.RuleInvoiceMatching,
		AutoReconcile: true, AllowPaymentTolerance: true, PaymentTolerancePercent: d("2"),
	}

	tests := []struct {
		name       string
		input      Input
		wantNil    bool
		wantIDs    []int64
		wantStatus Status
		wantAuto   bool
	}{
		{
			name:       "reference in label wins",
			input:      newInput("Payment INV/2024/0003", 0, "1000"),
			wantIDs:    []int64{103},
			wantStatus: StatusMatched,
			wantAuto:   true,
		},
		{
			name:       "exact amount preferred over maturity",
			input:      newInput("transfer", 7, "600"),
			wantIDs:    []int64{101},
			wantStatus: StatusMatched,
			wantAuto:   true,
		},
		{
			name:       "accumulated lines cover the amount",
			input:      newInput("transfer", 7, "1000"),
			wantIDs:    []int64{102, 101},
			wantStatus: StatusMatched,
			wantAuto:   true,
		},
		{
			name:       "short payment within tolerance",
			input:      newInput("transfer", 7, "990"),
			wantIDs:    []int64{102, 101},
			wantStatus: StatusWriteOff,
			wantAuto:   true,
		},
		{
			name:       "short payment outside tolerance is only proposed",
			input:      newInput("transfer", 7, "900"),
			wantIDs:    []int64{102, 101},
			wantStatus: StatusProposed,
		},
		{
			name:    "no partner and no reference",
			input:   newInput("transfer", 0, "1000"),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := createTestEngine(t, invoiceRule)
			result, err := engine.Apply(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if result != nil {
					t.Fatalf("expected no result, got %+v", result)
				}
				return
			}
			if result == nil {
				t.Fatal("expected a result")
			}
			got := lineIDs(result.LedgerLines)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected lines %v, got %v", tt.wantIDs, got)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("expected lines %v, got %v", tt.wantIDs, got)
					break
				}
			}
			if result.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, result.Status)
			}
			if result.AutoReconcile != tt.wantAuto {
				t.Errorf("expected auto reconcile %t, got %t", tt.wantAuto, result.AutoReconcile)
			}
		})
	}
}

func TestMatchingEngine_ApplyWriteOffSuggestion(t *testing.T) {
	button := &models.ReconcileModel{ID: 1, Name: "Button", Sequence: 1, RuleType: models.RuleWriteOffButton,
		Lines: []models.ReconcileModelLine{{AccountID: 2, AmountType: models.WriteOffPercentage, Amount: d("100")}}}
	fees := &models.ReconcileModel{ID: 2, Name: "Bank fees", Sequence: 5, RuleType: models.RuleWriteOffSuggestion,
		MatchNature: models.NaturePaid, MatchLabel: models.LabelContains, MatchLabelParam: "fee", AutoReconcile: true,
		Lines: []models.ReconcileModelLine{{AccountID: 2, AmountType: models.WriteOffPercentage, Amount: d("100")}}}

	engine, _ := createTestEngine(t, button, fees)

	result, err := engine.Apply(context.Background(), newInput("Monthly FEE", 0, "-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Model.ID != 2 || result.Status != StatusWriteOff || !result.AutoReconcile {
		t.Fatalf("expected write-off suggestion from model 2, got %+v", result)
	}

	result, err = engine.Apply(context.Background(), newInput("Monthly FEE", 0, "12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected no model for incoming amount, got %+v", result)
	}
}

func TestWriteOffLines(t *testing.T) {
	m := &models.ReconcileModel{
		Name: "Split",
		Lines: []models.ReconcileModelLine{
			{AccountID: 10, AmountType: models.WriteOffPercentage, Amount: d("50"), Label: "half"},
			{AccountID: 11, AmountType: models.WriteOffFixed, Amount: d("10")},
			{AccountID: 12, AmountType: models.WriteOffPercentageStLine, Amount: d("1")},
			{AccountID: 13, AmountType: models.WriteOffPercentage, Amount: d("0")},
		},
	}

	lines := WriteOffLines(m, d("-100"), d("200"), usd)
	expected := []struct {
		account int64
		amount  string
		label   string
	}{
		{10, "-50", "half"},
		{11, "-10", "Split"},
		{12, "-2", "Split"},
	}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d", len(expected), len(lines))
	}
	for i, e := range expected {
		if lines[i].AccountID != e.account || !lines[i].AmountCurrency.Equal(d(e.amount)) || lines[i].Label != e.label {
			t.Errorf("line %d: expected %d %s %q, got %d %s %q", i, e.account, e.amount, e.label,
				lines[i].AccountID, lines[i].AmountCurrency, lines[i].Label)
		}
	}
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		total, open, percent string
		expected             bool
	}{
		{"-1000", "-998", "2", true},
		{"-1000", "-970", "2", false},
		{"-1000", "-1001", "2", false},
		{"1000", "-998", "2", false},
		{"0", "0", "2", false},
	}
	for _, tt := range tests {
		if got := WithinTolerance(d(tt.total), d(tt.open), d(tt.percent)); got != tt.expected {
			t.Errorf("WithinTolerance(%s, %s, %s) = %t, want %t", tt.total, tt.open, tt.percent, got, tt.expected)
		}
	}
}

func TestRetrievePartner(t *testing.T) {
	c := chart.New(&models.Company{Name: "Test", Currency: usd})
	_ = c.AddPartner(&models.Partner{ID: 7, Name: "Acme", BankAccounts: []string{"BE001"}})
	_ = c.AddPartner(&models.Partner{ID: 8, Name: "Globex"})

	tests := []struct {
		name     string
		line     models.StatementLine
		expected int64
	}{
		{"explicit partner", models.StatementLine{PartnerID: 8, AccountNumber: "BE001"}, 8},
		{"bank account", models.StatementLine{AccountNumber: "be 001", PartnerName: "Globex"}, 7},
		{"name", models.StatementLine{PartnerName: "globex"}, 8},
		{"unknown", models.StatementLine{PartnerName: "Initech"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetrievePartner(c, &tt.line); got != tt.expected {
				t.Errorf("expected partner %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestMatchingConfig_Validate(t *testing.T) {
	config := DefaultMatchingConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	bad := config.Clone()
	bad.MaxCandidates = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero max candidates")
	}
	if config.MaxCandidates == 0 {
		t.Error("clone should not modify the original")
	}
}
