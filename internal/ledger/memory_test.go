package ledger

import (
	"context"
	"testing"
	"time"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var day = time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)

func seedInvoice(t *testing.T, m *MemoryStore, amount string) *models.LedgerLine {
	t.Helper()
	line := &models.LedgerLine{
		MoveName: "INV/2017/0001", AccountID: 10, PartnerID: 7, Currency: "USD",
		Date: day, DateMaturity: day,
		AmountCurrency: d(amount), Balance: d(amount),
		AmountResidualCurrency: d(amount), AmountResidual: d(amount),
	}
	if _, err := m.CreateLedgerLine(context.Background(), line); err != nil {
		t.Fatalf("create ledger line: %v", err)
	}
	return line
}

func seedStatement(t *testing.T, m *MemoryStore, amount string, date time.Time) int64 {
	t.Helper()
	id, err := m.CreateStatementLine(context.Background(), &models.StatementLine{
		JournalID: 1, Date: date, PaymentRef: "INV/2017/0001", Amount: d(amount),
	})
	if err != nil {
		t.Fatalf("create statement line: %v", err)
	}
	return id
}

func paymentRequest(stID int64, line *models.LedgerLine, paid string) *CommitRequest {
	return &CommitRequest{
		StatementLineID: stID,
		PartnerID:       7,
		Entry: &models.JournalEntry{
			Kind: models.EntryStatement, JournalID: 1, Date: day,
			Items: []models.JournalItem{
				{AccountID: 1, Currency: "USD", AmountCurrency: d(paid), Balance: d(paid)},
				{AccountID: 10, PartnerID: 7, Currency: "USD", AmountCurrency: d(paid).Neg(), Balance: d(paid).Neg(), MatchedLedgerLineID: line.ID},
			},
		},
		Settlements: []Settlement{{
			LedgerLineID: line.ID, ExpectedVersion: line.Version, ItemIndex: 1,
			ResidualDelta: d(paid).Neg(), ResidualCurrencyDelta: d(paid).Neg(), ExchangeIndex: -1,
		}},
	}
}

func TestMemoryStore_CommitFullPayment(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	invoice := seedInvoice(t, m, "1150")
	stID := seedStatement(t, m, "1150", day)

	result, err := m.Commit(ctx, paymentRequest(stID, invoice, "1150"))
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(result.ReconciledIDs) != 1 || result.ReconciledIDs[0] != invoice.ID {
		t.Errorf("expected invoice %d reconciled, got %v", invoice.ID, result.ReconciledIDs)
	}

	lines, err := m.LedgerLines(ctx, []int64{invoice.ID})
	if err != nil {
		t.Fatalf("read ledger line: %v", err)
	}
	if lines[0].IsOpen() || lines[0].Version != 2 {
		t.Errorf("expected a closed line at version 2, got %+v", lines[0])
	}

	st, _ := m.StatementLine(ctx, stID)
	if !st.IsReconciled || st.MoveID != result.EntryID {
		t.Errorf("expected statement line reconciled with entry %d, got %+v", result.EntryID, st)
	}

	partials, _ := m.Partials(ctx, invoice.ID)
	if len(partials) != 1 || partials[0].DebitLineID != invoice.ID || !partials[0].Amount.Equal(d("1150")) {
		t.Errorf("unexpected partials %+v", partials)
	}

	if _, err := m.Commit(ctx, paymentRequest(stID, invoice, "1")); !errors.HasCode(err, errors.CodeAlreadyReconciled) {
		t.Errorf("expected already reconciled, got %v", err)
	}
}

func TestMemoryStore_CommitRejectsStaleVersion(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	invoice := seedInvoice(t, m, "1000")
	first := seedStatement(t, m, "400", day)
	second := seedStatement(t, m, "600", day)

	stale := *invoice
	if _, err := m.Commit(ctx, paymentRequest(first, invoice, "400")); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := m.Commit(ctx, paymentRequest(second, &stale, "600")); !errors.HasCode(err, errors.CodeConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}

	st, _ := m.StatementLine(ctx, second)
	if st.IsReconciled {
		t.Error("a rejected commit must leave the statement line open")
	}
	lines, _ := m.LedgerLines(ctx, []int64{invoice.ID})
	if !lines[0].AmountResidual.Equal(d("600")) {
		t.Errorf("expected residual 600 after the partial payment, got %s", lines[0].AmountResidual)
	}
}

func TestMemoryStore_FindStatementLinesOrder(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	a := seedStatement(t, m, "10", day)
	b := seedStatement(t, m, "20", day)
	c := seedStatement(t, m, "30", day)
	old := seedStatement(t, m, "40", day.AddDate(-1, 0, 0))

	if err := m.MarkChecked(ctx, []int64{a}, day.Add(time.Hour)); err != nil {
		t.Fatalf("mark checked: %v", err)
	}
	if err := m.MarkChecked(ctx, []int64{c}, day); err != nil {
		t.Fatalf("mark checked: %v", err)
	}

	lines, err := m.FindStatementLines(ctx, StatementFilter{Unreconciled: true, DateAfter: day.AddDate(0, -3, 0)})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	var got []int64
	for _, l := range lines {
		got = append(got, l.ID)
	}
	want := []int64{b, c, a}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	explicit, _ := m.FindStatementLines(ctx, StatementFilter{IDs: []int64{old}})
	if len(explicit) != 1 || explicit[0].ID != old {
		t.Errorf("expected only line %d, got %v", old, explicit)
	}
}

func TestMemoryStore_OpenLedgerLines(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	first := seedInvoice(t, m, "100")
	second := seedInvoice(t, m, "200")
	closed := seedInvoice(t, m, "0")

	tests := []struct {
		name   string
		filter LedgerFilter
		want   []int64
	}{
		{name: "all open", filter: LedgerFilter{}, want: []int64{first.ID, second.ID}},
		{name: "excluded", filter: LedgerFilter{ExcludeIDs: []int64{first.ID}}, want: []int64{second.ID}},
		{name: "other partner", filter: LedgerFilter{PartnerID: 8}, want: nil},
		{name: "other account", filter: LedgerFilter{AccountIDs: []int64{11}}, want: nil},
		{name: "limit", filter: LedgerFilter{Limit: 1}, want: []int64{first.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := m.OpenLedgerLines(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("expected %d lines, got %d", len(tt.want), len(lines))
			}
			for i, l := range lines {
				if l.ID != tt.want[i] {
					t.Errorf("line %d: expected id %d, got %d", i, tt.want[i], l.ID)
				}
				if l.ID == closed.ID {
					t.Error("a line without residual is not open")
				}
			}
		})
	}
}

func TestMemoryStore_JournalSummary(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	summary, err := m.JournalSummary(ctx, 1)
	if err != nil || summary != nil {
		t.Fatalf("expected no summary for an unknown journal, got %+v, %v", summary, err)
	}

	if err := m.SetOpeningBalance(ctx, 1, d("1000")); err != nil {
		t.Fatalf("set opening balance: %v", err)
	}
	seedStatement(t, m, "1150", day)
	seedStatement(t, m, "-12.5", day)

	summary, err = m.JournalSummary(ctx, 1)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !summary.Balance.Equal(d("2137.5")) || summary.UnreconciledCount != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if _, err := m.StatementLine(ctx, 42); !errors.HasCode(err, errors.CodeStatementLineNotFound) {
		t.Errorf("expected statement line not found, got %v", err)
	}
	if _, err := m.LedgerLines(ctx, []int64{42}); !errors.HasCode(err, errors.CodeLedgerLineNotFound) {
		t.Errorf("expected ledger line not found, got %v", err)
	}
	if _, err := m.JournalEntry(ctx, 42); !errors.HasCode(err, errors.CodeEntityNotFound) {
		t.Errorf("expected entry not found, got %v", err)
	}
}
