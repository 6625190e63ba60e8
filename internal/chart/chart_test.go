package chart

import (
	"testing"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func newChart(t *testing.T) *Chart {
	t.Helper()
	c := New(&models.Company{Name: "Test", Currency: models.NewCurrency("USD", "$", 2)})
	for _, a := range []*models.Account{
		{ID: 1, Code: "101200", Name: "Receivable", Type: models.AccountReceivable},
		{ID: 2, Code: "201200", Name: "Payable", Type: models.AccountPayable},
	} {
		if err := c.AddAccount(a); err != nil {
			t.Fatalf("add account: %v", err)
		}
	}
	return c
}

func TestChart_DefaultAccount(t *testing.T) {
	c := newChart(t)

	tests := []struct {
		name     string
		partner  models.Partner
		amount   string
		expected int64
	}{
		{"customer only", models.Partner{CustomerRank: 1}, "-100", 1},
		{"supplier only", models.Partner{SupplierRank: 1}, "100", 2},
		{"both ranks incoming", models.Partner{CustomerRank: 1, SupplierRank: 1}, "100", 1},
		{"no rank outgoing", models.Partner{}, "-100", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.partner
			p.ReceivableAccountID, p.PayableAccountID = 1, 2
			if got := c.DefaultAccount(&p, decimal.RequireFromString(tt.amount)); got != tt.expected {
				t.Errorf("expected account %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestChart_PartnerLookup(t *testing.T) {
	c := newChart(t)
	if err := c.AddPartner(&models.Partner{ID: 10, Name: "Partner A", BankAccounts: []string{"BE68 5390 0754 7034"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p, ok := c.PartnerByBankAccount("be68539007547034"); !ok || p.ID != 10 {
		t.Errorf("expected partner 10 by bank account, got %v", p)
	}
	if p, ok := c.PartnerByName("partner a"); !ok || p.ID != 10 {
		t.Errorf("expected partner 10 by name, got %v", p)
	}
	if _, ok := c.PartnerByName("Partner B"); ok {
		t.Error("expected no partner for unknown name")
	}

	err := c.AddPartner(&models.Partner{ID: 11, Name: "Partner B", BankAccounts: []string{"BE68539007547034"}})
	if !errors.HasCode(err, errors.CodeDuplicateBankAccount) {
		t.Errorf("expected duplicate bank account error, got %v", err)
	}
}

func TestChart_ReconcileModels(t *testing.T) {
	c := newChart(t)
	_ = c.AddReconcileModel(&models.ReconcileModel{ID: 2, Name: "b", Sequence: 10, RuleType: models.RuleInvoiceMatching})
	_ = c.AddReconcileModel(&models.ReconcileModel{ID: 1, Name: "a", Sequence: 20, RuleType: models.RuleWriteOffButton, AutoReconcile: true})

	list := c.ReconcileModels()
	if len(list) != 2 || list[0].ID != 2 {
		t.Fatalf("expected models ordered by sequence, got %v", list)
	}
	if c.HasAutoReconcileModels() {
		t.Error("button models never auto-reconcile")
	}

	list[0].AutoReconcile = true
	if !c.HasAutoReconcileModels() {
		t.Error("expected an auto-reconcile model")
	}

	if _, err := c.Account(99); !errors.IsCategory(err, errors.CategoryNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
