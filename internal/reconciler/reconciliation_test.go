package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/internal/queue"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usd    = models.NewCurrency("USD", "$", 2)
	stDate = time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	service *Service
	store   *ledger.MemoryStore
	queue   *queue.MemoryQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := chart.New(&models.Company{Name: "Test", Currency: usd, IncomeExchangeAccountID: 40, ExpenseExchangeAccountID: 41})
	for _, a := range []*models.Account{
		{ID: 1, Code: "101401", Name: "Bank", Type: models.AccountBank},
		{ID: 2, Code: "101402", Name: "Suspense", Type: models.AccountSuspense},
		{ID: 10, Code: "121000", Name: "Receivable", Type: models.AccountReceivable},
		{ID: 11, Code: "211000", Name: "Payable", Type: models.AccountPayable},
		{ID: 40, Code: "441000", Name: "Exchange gain", Type: models.AccountIncome},
		{ID: 41, Code: "641000", Name: "Exchange loss", Type: models.AccountExpense},
	} {
		require.NoError(t, c.AddAccount(a))
	}
	require.NoError(t, c.AddPartner(&models.Partner{ID: 7, Name: "Acme", CustomerRank: 1, ReceivableAccountID: 10, PayableAccountID: 11}))
	c.AddJournal(&models.Journal{ID: 1, Name: "Bank", Type: models.JournalBank, DefaultAccountID: 1, SuspenseAccountID: 2})

	store := ledger.NewMemoryStore()
	q := queue.NewMemoryQueue()
	deps := session.Deps{
		Chart:     c,
		Ledger:    store,
		Converter: currency.NewConverter(currency.NewTableResolver("USD", nil), usd),
		Logger:    logger.NewNopLogger(),
	}
	service, err := NewService(deps, store, q, nil)
	require.NoError(t, err)
	return &fixture{service: service, store: store, queue: q}
}

func (f *fixture) statement(t *testing.T, amount string) int64 {
	t.Helper()
	id, err := f.store.CreateStatementLine(context.Background(), &models.StatementLine{
		JournalID: 1, Date: stDate, PaymentRef: "INV/2024/0001", Amount: d(amount),
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) invoice(t *testing.T, amount string) int64 {
	t.Helper()
	id, err := f.store.CreateLedgerLine(context.Background(), &models.LedgerLine{
		MoveName: "INV/2024/0001", AccountID: 10, PartnerID: 7, Currency: "USD",
		Date: stDate, DateMaturity: stDate,
		AmountCurrency: d(amount), Balance: d(amount), AmountResidualCurrency: d(amount), AmountResidual: d(amount),
	})
	require.NoError(t, err)
	return id
}

func TestService_ValidateCommitsAndClosesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t, "100")
	stID := f.statement(t, "100")

	snap, err := f.service.OpenSession(ctx, stID)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, session.StateInvalid, snap.State)
	assert.Equal(t, 1, f.service.OpenSessions())

	snap, err = f.service.AddMatch(ctx, snap.ID, inv)
	require.NoError(t, err)
	assert.Equal(t, session.StateValid, snap.State)

	result, err := f.service.Validate(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Commit)
	assert.Equal(t, session.StateReconciled, result.Snapshot.State)
	assert.Equal(t, 0, f.service.OpenSessions())

	lines, err := f.store.LedgerLines(ctx, []int64{inv})
	require.NoError(t, err)
	assert.True(t, lines[0].Reconciled)

	_, err = f.service.Session(snap.ID)
	assert.True(t, errors.HasCode(err, errors.CodeSessionNotFound))
}

func TestService_InvalidValidationKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stID := f.statement(t, "100")

	snap, err := f.service.OpenSession(ctx, stID)
	require.NoError(t, err)

	result, err := f.service.Validate(ctx, snap.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSuspenseAccount))
	require.NotNil(t, result)
	assert.Nil(t, result.Commit)
	assert.Equal(t, session.StateInvalid, result.Snapshot.State)
	assert.Equal(t, 1, f.service.OpenSessions())
}

func TestService_OperationErrorsReturnSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stID := f.statement(t, "100")

	snap, err := f.service.OpenSession(ctx, stID)
	require.NoError(t, err)

	after, err := f.service.EditField(ctx, snap.ID, 0, "no_such_field", "1")
	require.Error(t, err)
	require.NotNil(t, after)
	assert.Equal(t, snap.ID, after.ID)
	assert.Len(t, after.Lines, len(snap.Lines))
}

func TestService_RemoveMatchWithoutIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.invoice(t, "60")
	second := f.invoice(t, "40")
	stID := f.statement(t, "100")

	snap, err := f.service.OpenSession(ctx, stID)
	require.NoError(t, err)
	snap, err = f.service.AddMatch(ctx, snap.ID, first, second)
	require.NoError(t, err)
	assert.Equal(t, session.StateValid, snap.State)

	snap, err = f.service.RemoveMatch(snap.ID)
	require.NoError(t, err)
	for _, l := range snap.Lines {
		assert.NotEqual(t, session.FlagMatched, l.Flag)
	}
	assert.Equal(t, session.StateInvalid, snap.State)
}

func TestService_UnknownSession(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"session", func() error { _, err := f.service.Session("missing"); return err }},
		{"reset", func() error { _, err := f.service.Reset("missing"); return err }},
		{"validate", func() error { _, err := f.service.Validate(context.Background(), "missing"); return err }},
		{"close", func() error { return f.service.CloseSession("missing") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.HasCode(err, errors.CodeSessionNotFound), "got %v", err)
			assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
		})
	}
}

func TestService_ExpiresIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	f.service.clock = func() time.Time { return now }

	old, err := f.service.OpenSession(ctx, f.statement(t, "100"))
	require.NoError(t, err)

	now = now.Add(f.service.Config().SessionTTL + time.Minute)
	fresh, err := f.service.OpenSession(ctx, f.statement(t, "50"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.service.OpenSessions())
	_, err = f.service.Session(old.ID)
	assert.True(t, errors.HasCode(err, errors.CodeSessionNotFound))
	_, err = f.service.Session(fresh.ID)
	assert.NoError(t, err)
}

func TestService_CreateStatementLineSchedulesContinuation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.service.CreateStatementLine(ctx, &models.StatementLine{JournalID: 1, Date: stDate, Amount: d("12.5")})
	require.NoError(t, err)
	assert.NotZero(t, id)

	pending, err := f.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.service.CreateStatementLine(ctx, &models.StatementLine{JournalID: 99, Date: stDate})
	assert.Error(t, err)
	_, err = f.service.CreateStatementLine(ctx, &models.StatementLine{Date: stDate})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidLine))

	pending, err = f.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestService_ConcurrentOperationsOnOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t, "100")

	snap, err := f.service.OpenSession(ctx, f.statement(t, "100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.service.AddMatch(ctx, snap.ID, inv)
			} else {
				_, _ = f.service.RemoveMatch(snap.ID, inv)
			}
		}(i)
	}
	wg.Wait()

	final, err := f.service.Session(snap.ID)
	require.NoError(t, err)
	matched := 0
	for _, l := range final.Lines {
		if l.Flag == session.FlagMatched {
			matched++
		}
	}
	assert.LessOrEqual(t, matched, 1)
}

func TestService_CollectSummaryInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := f.service.CollectSummaryInfo(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, info.BalanceAmount)
	assert.Zero(t, info.UnreconciledCount)

	info, err = f.service.CollectSummaryInfo(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, info.BalanceAmount)

	require.NoError(t, f.store.SetOpeningBalance(ctx, 1, d("1000")))
	f.statement(t, "250.5")
	f.statement(t, "-50")

	info, err = f.service.CollectSummaryInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "$ 1200.50", info.BalanceAmount)
	assert.True(t, info.Balance.Equal(d("1200.5")))
	assert.Equal(t, 2, info.UnreconciledCount)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no ttl", func(c *Config) { c.SessionTTL = 0 }, false},
		{"negative ttl", func(c *Config) { c.SessionTTL = -time.Second }, true},
		{"negative batch", func(c *Config) { c.Scheduler.BatchSize = -1 }, true},
		{"negative budget", func(c *Config) { c.Scheduler.TimeBudget = -time.Second }, true},
		{"negative cutoff", func(c *Config) { c.Scheduler.RecencyCutoff = -time.Hour }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
