package matcher

import (
	"testing"
	"time"

	"golang-bankrec-service/internal/models"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestCandidates() []*Candidate {
	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }
	return []*Candidate{
		{Line: &models.LedgerLine{ID: 1, DateMaturity: day(20)}, Amount: d("-250.00")},
		{Line: &models.LedgerLine{ID: 2, DateMaturity: day(10)}, Amount: d("-100.50")},
		{Line: &models.LedgerLine{ID: 3, DateMaturity: day(5)}, Amount: d("-75.25")},
		{Line: &models.LedgerLine{ID: 4, DateMaturity: day(25)}, Amount: d("-100.504")},
		{Line: &models.LedgerLine{ID: 5, DateMaturity: day(1)}, Amount: d("40.00")},
	}
}

func TestCandidateIndex_GetByExactAmount(t *testing.T) {
	index := NewCandidateIndex(createTestCandidates(), models.NewCurrency("USD", "$", 2))

	tests := []struct {
		name     string
		amount   string
		expected []int64
	}{
		{"two lines at currency precision", "-100.50", []int64{2, 4}},
		{"single line", "-250", []int64{1}},
		{"no line", "-12.00", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := index.GetByExactAmount(d(tt.amount))
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d candidates, got %d", len(tt.expected), len(got))
			}
			for i, c := range got {
				if c.Line.ID != tt.expected[i] {
					t.Errorf("candidate %d: expected id %d, got %d", i, tt.expected[i], c.Line.ID)
				}
			}
		})
	}
}

func TestCandidateIndex_Ordered(t *testing.T) {
	index := NewCandidateIndex(createTestCandidates(), models.NewCurrency("USD", "$", 2))
	if index.Len() != 5 {
		t.Fatalf("expected 5 candidates, got %d", index.Len())
	}

	got := index.Ordered(d("-100.50"))
	want := []int64{2, 4, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d ordered candidates, got %d", len(want), len(got))
	}
	for i, c := range got {
		if c.Line.ID != want[i] {
			t.Errorf("position %d: expected id %d, got %d", i, want[i], c.Line.ID)
		}
	}
}
