package committer

import (
	"context"
	"testing"
	"time"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	usd    = models.NewCurrency("USD", "$", 2)
	eur    = models.NewCurrency("EUR", "€", 2)
	tnd    = models.NewCurrency("TND", "DT", 3)
	gbp    = models.NewCurrency("GBP", "£", 2)
	stDate = time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type env struct {
	chart     *chart.Chart
	store     *ledger.MemoryStore
	deps      session.Deps
	committer *Committer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := chart.New(&models.Company{
		Name: "Test", Currency: usd,
		IncomeExchangeAccountID: 40, ExpenseExchangeAccountID: 41,
	})
	c.AddCurrency(eur)
	c.AddCurrency(tnd)
	c.AddCurrency(gbp)
	for _, a := range []*models.Account{
		{ID: 1, Code: "101401", Name: "Bank", Type: models.AccountBank},
		{ID: 2, Code: "101402", Name: "Suspense", Type: models.AccountSuspense},
		{ID: 10, Code: "121000", Name: "Receivable", Type: models.AccountReceivable},
		{ID: 11, Code: "211000", Name: "Payable", Type: models.AccountPayable},
		{ID: 40, Code: "441000", Name: "Exchange gain", Type: models.AccountIncome},
		{ID: 41, Code: "641000", Name: "Exchange loss", Type: models.AccountExpense},
	} {
		if err := c.AddAccount(a); err != nil {
			t.Fatalf("add account: %v", err)
		}
	}
	for _, p := range []*models.Partner{
		{ID: 7, Name: "Acme", CustomerRank: 1, ReceivableAccountID: 10, PayableAccountID: 11},
		{ID: 8, Name: "Globex", CustomerRank: 1, ReceivableAccountID: 10, PayableAccountID: 11, BankAccounts: []string{"BE71 0961 2345 6769"}},
	} {
		if err := c.AddPartner(p); err != nil {
			t.Fatalf("add partner: %v", err)
		}
	}
	c.AddJournal(&models.Journal{ID: 1, Name: "Bank", Type: models.JournalBank, DefaultAccountID: 1, SuspenseAccountID: 2})

	store := ledger.NewMemoryStore()
	log := logger.NewNopLogger()
	return &env{
		chart: c,
		store: store,
		deps: session.Deps{
			Chart:     c,
			Ledger:    store,
			Converter: currency.NewConverter(currency.NewTableResolver("USD", nil), usd),
			Logger:    log,
		},
		committer: New(store, c, log),
	}
}

func (e *env) statement(t *testing.T, st *models.StatementLine) *session.Session {
	t.Helper()
	st.JournalID, st.Date = 1, stDate
	id, err := e.store.CreateStatementLine(context.Background(), st)
	if err != nil {
		t.Fatalf("create statement line: %v", err)
	}
	s, err := session.Open(context.Background(), e.deps, id)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return s
}

func (e *env) ledgerLine(t *testing.T, cur *models.Currency, ac, bal string) int64 {
	t.Helper()
	id, err := e.store.CreateLedgerLine(context.Background(), &models.LedgerLine{
		MoveName: "INV/2017/0001", AccountID: 10, PartnerID: 7, Currency: cur.Code,
		Date: stDate, DateMaturity: stDate,
		AmountCurrency: d(ac), Balance: d(bal), AmountResidualCurrency: d(ac), AmountResidual: d(bal),
	})
	if err != nil {
		t.Fatalf("create ledger line: %v", err)
	}
	return id
}

func TestCommit_ExchangeDifference(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inv := e.ledgerLine(t, eur, "240", "80")
	s := e.statement(t, &models.StatementLine{PaymentRef: "INV/2017/0001", Amount: d("120"), ForeignCurrency: "EUR", AmountCurrency: d("240")})

	if err := s.AddMatch(ctx, inv); err != nil {
		t.Fatalf("add match: %v", err)
	}
	result, err := e.committer.Commit(ctx, s)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !s.IsReconciled() {
		t.Error("expected the session to be reconciled")
	}

	entry, err := e.store.JournalEntry(ctx, result.EntryID)
	if err != nil {
		t.Fatalf("journal entry: %v", err)
	}
	if !entry.Total().IsZero() {
		t.Errorf("expected a balanced entry, total %s", entry.Total())
	}
	if len(entry.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(entry.Items))
	}
	matched := entry.Items[1]
	if !matched.Balance.Equal(d("-120")) || !matched.AmountCurrency.Equal(d("-240")) {
		t.Errorf("expected matched item -240/-120, got %s/%s", matched.AmountCurrency, matched.Balance)
	}
	if entry.PartnerID != 7 || entry.Items[0].PartnerID != 7 {
		t.Errorf("expected partner 7 on the entry and the liquidity item, got %d/%d", entry.PartnerID, entry.Items[0].PartnerID)
	}

	if len(result.ExchangeEntryIDs) != 1 {
		t.Fatalf("expected one exchange entry, got %d", len(result.ExchangeEntryIDs))
	}
	exch, err := e.store.JournalEntry(ctx, result.ExchangeEntryIDs[0])
	if err != nil {
		t.Fatalf("exchange entry: %v", err)
	}
	if exch.Kind != models.EntryExchange || !exch.Date.Equal(stDate) {
		t.Errorf("unexpected exchange entry %+v", exch)
	}
	if !exch.Items[0].Balance.Equal(d("40")) || exch.Items[0].AccountID != 10 {
		t.Errorf("expected +40 on the receivable, got %s on %d", exch.Items[0].Balance, exch.Items[0].AccountID)
	}
	if !exch.Items[1].Balance.Equal(d("-40")) || exch.Items[1].AccountID != 40 {
		t.Errorf("expected -40 on the gain account, got %s on %d", exch.Items[1].Balance, exch.Items[1].AccountID)
	}

	lines, err := e.store.LedgerLines(ctx, []int64{inv})
	if err != nil {
		t.Fatalf("ledger lines: %v", err)
	}
	if !lines[0].Reconciled {
		t.Error("expected the invoice to be reconciled")
	}
	partials, _ := e.store.Partials(ctx, inv)
	if len(partials) != 1 || partials[0].ExchangeEntryID != result.ExchangeEntryIDs[0] {
		t.Errorf("expected one partial linked to the exchange entry, got %+v", partials)
	}
}

func TestBuildRequest_FlagsMissingRates(t *testing.T) {
	tests := []struct {
		name    string
		cur     *models.Currency
		toCheck bool
	}{
		{name: "company currency invoice", cur: usd, toCheck: false},
		{name: "invoice without a rate", cur: gbp, toCheck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			inv := e.ledgerLine(t, tt.cur, "200", "200")
			s := e.statement(t, &models.StatementLine{PaymentRef: "INV/2017/0001", Amount: d("200")})
			if err := s.AddMatch(context.Background(), inv); err != nil {
				t.Fatalf("add match: %v", err)
			}
			if s.State() != session.StateValid {
				t.Fatalf("expected a valid session, got %s", s.State())
			}

			req := BuildRequest(s)
			if req.Entry.ToCheck != tt.toCheck {
				t.Errorf("expected to_check=%v, got %v (warnings %v)", tt.toCheck, req.Entry.ToCheck, s.RateWarnings())
			}
		})
	}
}

func TestCommit_PartialLeavesResidual(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	payment := e.ledgerLine(t, usd, "725", "725")
	s := e.statement(t, &models.StatementLine{PaymentRef: "partial", Amount: d("650"), ForeignCurrency: "TND", AmountCurrency: d("800")})

	if err := s.AddMatch(ctx, payment); err != nil {
		t.Fatalf("add match: %v", err)
	}
	if _, err := e.committer.Commit(ctx, s); err != nil {
		t.Fatalf("commit: %v", err)
	}

	lines, _ := e.store.LedgerLines(ctx, []int64{payment})
	if !lines[0].AmountResidual.Equal(d("75")) || lines[0].Reconciled {
		t.Errorf("expected residual 75 and still open, got %s (reconciled=%v)", lines[0].AmountResidual, lines[0].Reconciled)
	}
	if lines[0].Version != 2 {
		t.Errorf("expected version 2, got %d", lines[0].Version)
	}
}

func TestCommit_Failures(t *testing.T) {
	t.Run("invalid session", func(t *testing.T) {
		e := newEnv(t)
		s := e.statement(t, &models.StatementLine{PaymentRef: "unknown", Amount: d("100")})
		_, err := e.committer.Commit(context.Background(), s)
		if !errors.HasCode(err, errors.CodeSuspenseAccount) {
			t.Fatalf("expected suspense account error, got %v", err)
		}
		st, _ := e.store.StatementLine(context.Background(), s.StatementLine().ID)
		if st.IsReconciled {
			t.Error("statement line must stay unreconciled")
		}
	})

	t.Run("concurrent modification", func(t *testing.T) {
		e := newEnv(t)
		ctx := context.Background()
		inv := e.ledgerLine(t, usd, "100", "100")
		first := e.statement(t, &models.StatementLine{PaymentRef: "first", Amount: d("40")})
		second := e.statement(t, &models.StatementLine{PaymentRef: "second", Amount: d("40")})
		for _, s := range []*session.Session{first, second} {
			if err := s.AddMatch(ctx, inv); err != nil {
				t.Fatalf("add match: %v", err)
			}
		}

		if _, err := e.committer.Commit(ctx, first); err != nil {
			t.Fatalf("first commit: %v", err)
		}
		_, err := e.committer.Commit(ctx, second)
		if !errors.IsCategory(err, errors.CategoryConcurrency) {
			t.Fatalf("expected a concurrency error, got %v", err)
		}
		if second.IsReconciled() {
			t.Error("the second session must stay open")
		}
	})

	t.Run("bank account of another partner", func(t *testing.T) {
		e := newEnv(t)
		ctx := context.Background()
		inv := e.ledgerLine(t, usd, "100", "100")
		s := e.statement(t, &models.StatementLine{PaymentRef: "x", Amount: d("100"), PartnerID: 7, AccountNumber: "BE71096123456769"})
		if err := s.AddMatch(ctx, inv); err != nil {
			t.Fatalf("add match: %v", err)
		}
		_, err := e.committer.Commit(ctx, s)
		if !errors.HasCode(err, errors.CodeDuplicateBankAccount) {
			t.Fatalf("expected duplicate bank account error, got %v", err)
		}
	})
}

func TestCommit_LinksBankAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inv := e.ledgerLine(t, usd, "100", "100")
	s := e.statement(t, &models.StatementLine{PaymentRef: "x", Amount: d("100"), PartnerID: 7, AccountNumber: "NL91 ABNA 0417 1643 00"})
	if err := s.AddMatch(ctx, inv); err != nil {
		t.Fatalf("add match: %v", err)
	}
	if _, err := e.committer.Commit(ctx, s); err != nil {
		t.Fatalf("commit: %v", err)
	}
	p, ok := e.chart.PartnerByBankAccount("NL91ABNA0417164300")
	if !ok || p.ID != 7 {
		t.Errorf("expected the account to belong to partner 7, got %+v", p)
	}
}
