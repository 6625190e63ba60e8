package currency

import (
	"path/filepath"
	"testing"
	"time"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

func day(s string) time.Time {
	t, _ := models.ParseDate(s)
	return t
}

func newTable() *TableResolver {
	return NewTableResolver("USD", []models.Rate{
		{Currency: "EUR", Date: day("2016-01-01"), Rate: decimal.NewFromInt(3)},
		{Currency: "EUR", Date: day("2017-01-01"), Rate: decimal.NewFromInt(2)},
	})
}

func TestTableResolver_Rate(t *testing.T) {
	r := newTable()

	tests := []struct {
		name     string
		code     string
		date     string
		expected int64
		missing  bool
	}{
		{"company currency", "USD", "2017-01-01", 1, false},
		{"exact date", "EUR", "2017-01-01", 2, false},
		{"latest before", "EUR", "2016-06-01", 3, false},
		{"before first rate", "EUR", "2015-01-01", 3, false},
		{"unknown currency", "GBP", "2017-01-01", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := r.Rate(tt.code, day(tt.date))
			if !rate.Equal(decimal.NewFromInt(tt.expected)) {
				t.Errorf("expected rate %d, got %s", tt.expected, rate)
			}
			if tt.missing != errors.HasCode(err, errors.CodeRateUnavailable) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

type countingResolver struct {
	inner Resolver
	calls int
}

func (c *countingResolver) Rate(code string, date time.Time) (decimal.Decimal, error) {
	c.calls++
	return c.inner.Rate(code, date)
}

func TestCachedResolver(t *testing.T) {
	counter := &countingResolver{inner: newTable()}
	cached := NewCachedResolver(counter)

	for i := 0; i < 3; i++ {
		rate, err := cached.Rate("EUR", day("2017-02-01"))
		if err != nil || !rate.Equal(decimal.NewFromInt(2)) {
			t.Fatalf("unexpected rate %s, %v", rate, err)
		}
	}
	if counter.calls != 1 {
		t.Errorf("expected 1 underlying call, got %d", counter.calls)
	}

	_, _ = cached.Rate("GBP", day("2017-02-01"))
	_, _ = cached.Rate("GBP", day("2017-02-01"))
	if counter.calls != 3 {
		t.Errorf("missing rates must not be cached, got %d calls", counter.calls)
	}
}

func openRateDB(t *testing.T, path string) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	return db
}

func TestBoltResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.db")
	db := openRateDB(t, path)

	table := newTable()
	resolver, err := NewBoltResolver(db, table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rate, err := resolver.Rate("EUR", day("2017-03-01"))
	if err != nil || !rate.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected rate 2, got %s (%v)", rate, err)
	}

	table.Add(models.Rate{Currency: "EUR", Date: day("2017-02-01"), Rate: decimal.RequireFromString("2.5")})
	rate, err = resolver.Rate("EUR", day("2017-03-01"))
	if err != nil || !rate.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected the corrected rate 2.5, got %s (%v)", rate, err)
	}

	if _, err := resolver.Rate("GBP", day("2017-03-01")); !errors.HasCode(err, errors.CodeRateUnavailable) {
		t.Errorf("expected rate unavailable, got %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close bolt: %v", err)
	}

	db = openRateDB(t, path)
	defer db.Close()
	restarted, err := NewBoltResolver(db, NewTableResolver("USD", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rate, err = restarted.Rate("EUR", day("2017-03-01"))
	if err != nil || !rate.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected the recorded rate 2.5, got %s (%v)", rate, err)
	}
}

func TestBoltResolver_RecordFailureKeepsRate(t *testing.T) {
	db := openRateDB(t, filepath.Join(t.TempDir(), "rates.db"))
	resolver, err := NewBoltResolver(db, newTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close bolt: %v", err)
	}

	rate, err := resolver.Rate("EUR", day("2017-03-01"))
	if err != nil {
		t.Errorf("a failed write must not hide a valid rate, got %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected rate 2, got %s", rate)
	}
}

func TestConverter(t *testing.T) {
	usd := models.NewCurrency("USD", "$", 2)
	eur := models.NewCurrency("EUR", "€", 2)
	gbp := models.NewCurrency("GBP", "£", 2)
	conv := NewConverter(newTable(), usd)

	got, err := conv.ToCompany(decimal.NewFromInt(3600), eur, day("2017-01-01"))
	if err != nil || !got.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("expected 1800, got %s (%v)", got, err)
	}

	got, err = conv.FromCompany(decimal.NewFromInt(100), eur, day("2017-01-01"))
	if err != nil || !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected 200, got %s (%v)", got, err)
	}

	got, err = conv.ToCompany(decimal.NewFromInt(50), gbp, day("2017-01-01"))
	if !errors.HasCode(err, errors.CodeRateUnavailable) || !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected passthrough with warning, got %s (%v)", got, err)
	}

	got, err = conv.FromCompany(decimal.NewFromInt(50), gbp, day("2017-01-01"))
	if !errors.HasCode(err, errors.CodeRateUnavailable) || !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected passthrough with warning, got %s (%v)", got, err)
	}
}
