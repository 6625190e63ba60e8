// Package session implements the reconciliation session: the editable set
// of proposed journal items for one bank statement line.
//
// A session always holds one liquidity line carrying the statement amount
// and, whenever the other lines do not balance it, one auto-balance line
// absorbing the remainder. Matching ledger lines, editing manual lines,
// applying reconcile models or matching rules all go through the session,
// which keeps exchange differences, taxes, early payment discounts and the
// auto-balance line up to date after every mutation.
//
// A session is not safe for concurrent use. Callers serialize operations
// per statement line.
package session

import (
	"context"
	"fmt"

	"golang-bankrec-service/internal/chart"
	"golang-bankrec-service/internal/currency"
	"golang-bankrec-service/internal/exchange"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/matcher"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// State is derived from the lines.
type State string

const (
	StateValid      State = "valid"
	StateInvalid    State = "invalid"
	StateReconciled State = "reconciled"
)

// Deps are the collaborators of a session.
type Deps struct {
	Chart     *chart.Chart
	Ledger    ledger.Reader
	Converter *currency.Converter
	// Rules is only needed by TriggerMatchingRules.
	Rules  *matcher.MatchingEngine
	Logger logger.Logger
}

// Session is the working set for one statement line.
type Session struct {
	deps     Deps
	log      logger.Logger
	exchange *exchange.Calculator

	statementLine *models.StatementLine
	journal       *models.Journal
	company       *models.Company
	companyCur    *models.Currency
	transCur      *models.Currency

	partnerID     int64
	lines         []*Line
	nextIndex     int
	editIndex     *int
	reconciled    bool
	modelID       int64
	autoReconcile bool
	toCheck       bool
	rateWarnings  []string
}

// View is a serializable snapshot of a session.
type View struct {
	StatementLineID  int64           `json:"statement_line_id"`
	PartnerID        int64           `json:"partner_id,omitempty"`
	State            State           `json:"state"`
	EditIndex        *int            `json:"edit_index,omitempty"`
	Lines            []Line          `json:"lines"`
	Total            decimal.Decimal `json:"total"`
	ReconcileModelID int64           `json:"reconcile_model_id,omitempty"`
	AutoReconcile    bool            `json:"auto_reconcile"`
	ToCheck          bool            `json:"to_check,omitempty"`
	RateWarnings     []string        `json:"rate_warnings,omitempty"`
	Problem          string          `json:"problem,omitempty"`
}

// Open loads a statement line and starts a session on it.
func Open(ctx context.Context, deps Deps, statementLineID int64) (*Session, error) {
	if deps.Ledger == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "open session", fmt.Errorf("no ledger reader"))
	}
	st, err := deps.Ledger.StatementLine(ctx, statementLineID)
	if err != nil {
		return nil, err
	}
	if st.IsReconciled {
		return nil, errors.NotFoundError(errors.CodeAlreadyReconciled, "unreconciled statement line", statementLineID).
			WithSuggestion("Undo the reconciliation of the statement line first")
	}
	return New(deps, st)
}

// New starts a session on an already loaded statement line.
func New(deps Deps, st *models.StatementLine) (*Session, error) {
	if deps.Chart == nil || deps.Converter == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "open session", fmt.Errorf("chart and converter are required"))
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetGlobalLogger()
	}

	journal, err := deps.Chart.Journal(st.JournalID)
	if err != nil {
		return nil, err
	}
	company := deps.Chart.Company()
	transCur, err := deps.Chart.Currency(st.TransactionCurrencyCode(company.Currency))
	if err != nil {
		return nil, err
	}

	s := &Session{
		deps:          deps,
		log:           deps.Logger.WithComponent("session").WithField("statement_line_id", st.ID),
		exchange:      exchange.NewCalculator(deps.Converter, company),
		statementLine: st,
		journal:       journal,
		company:       company,
		companyCur:    company.Currency,
		transCur:      transCur,
		partnerID:     st.PartnerID,
	}
	s.lines = []*Line{s.liquidityLine()}
	s.recomputeAutoBalance()

	s.log.WithFields(logger.Fields{
		"amount":   st.Amount.String(),
		"currency": transCur.Code,
	}).Debug("Session opened")
	return s, nil
}

func (s *Session) liquidityLine() *Line {
	return s.newLine(Line{
		Flag:           FlagLiquidity,
		AccountID:      s.journal.DefaultAccountID,
		PartnerID:      s.partnerID,
		Name:           s.statementLine.PaymentRef,
		Currency:       s.companyCur,
		AmountCurrency: s.statementLine.Amount,
		Balance:        s.statementLine.Amount,
	})
}

// StatementLine returns the statement line of the session.
func (s *Session) StatementLine() *models.StatementLine {
	return s.statementLine
}

// Journal returns the journal of the statement line.
func (s *Session) Journal() *models.Journal {
	return s.journal
}

// CompanyCurrency returns the company currency.
func (s *Session) CompanyCurrency() *models.Currency {
	return s.companyCur
}

// TransactionCurrency returns the currency the bank transaction happened in.
func (s *Session) TransactionCurrency() *models.Currency {
	return s.transCur
}

// PartnerID returns the session partner, zero if unknown.
func (s *Session) PartnerID() int64 {
	return s.partnerID
}

// ReconcileModelID returns the last applied reconcile model.
func (s *Session) ReconcileModelID() int64 {
	return s.modelID
}

// AutoReconcile reports whether the last matching rule allows validating
// without review.
func (s *Session) AutoReconcile() bool {
	return s.autoReconcile
}

// ToCheck reports whether the applied model asks for a later review.
func (s *Session) ToCheck() bool {
	return s.toCheck
}

// RateWarnings lists the missing rates replaced by a 1:1 conversion.
func (s *Session) RateWarnings() []string {
	return append([]string(nil), s.rateWarnings...)
}

// Lines returns a copy of the lines in order.
func (s *Session) Lines() []Line {
	out := make([]Line, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.clone()
	}
	return out
}

// Line returns a copy of the line with the given index.
func (s *Session) Line(index int) (Line, bool) {
	if l, _ := s.find(index); l != nil {
		return l.clone(), true
	}
	return Line{}, false
}

// EditIndex returns the line mounted for edition.
func (s *Session) EditIndex() (int, bool) {
	if s.editIndex == nil {
		return 0, false
	}
	return *s.editIndex, true
}

// Total is the sum of the company amounts.
func (s *Session) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Balance)
	}
	return s.companyCur.Round(total)
}

// IsReconciled reports a committed session.
func (s *Session) IsReconciled() bool {
	return s.reconciled
}

// State derives the session state.
func (s *Session) State() State {
	if s.reconciled {
		return StateReconciled
	}
	if s.Check() != nil {
		return StateInvalid
	}
	return StateValid
}

// Check returns why the session cannot be validated, or nil.
func (s *Session) Check() error {
	if s.reconciled {
		return errors.InvalidError(errors.CodeInvalidState, "the statement line is already reconciled")
	}
	for _, l := range s.lines {
		if l.AccountID == 0 {
			return errors.InvalidError(errors.CodeMissingAccount,
				fmt.Sprintf("line %d (%s) has no account", l.Index, l.Flag)).WithContext("index", l.Index)
		}
		if l.Flag != FlagLiquidity && l.AccountID == s.journal.SuspenseAccountID {
			return errors.InvalidError(errors.CodeSuspenseAccount,
				fmt.Sprintf("line %d is still on the suspense account", l.Index)).
				WithContext("index", l.Index).
				WithSuggestion("Set a partner or an account on the line")
		}
	}
	if total := s.Total(); !total.IsZero() {
		return errors.InvalidError(errors.CodeUnbalanced,
			fmt.Sprintf("the lines do not balance, total is %s", s.companyCur.Format(total)))
	}
	return nil
}

// MarkReconciled freezes the session once its entry has been written.
func (s *Session) MarkReconciled(entryID int64) {
	s.reconciled = true
	s.editIndex = nil
	s.statementLine.IsReconciled = true
	s.statementLine.MoveID = entryID
	s.log.WithField("entry_id", entryID).Info("Statement line reconciled")
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	v := View{
		StatementLineID:  s.statementLine.ID,
		PartnerID:        s.partnerID,
		State:            s.State(),
		Lines:            s.Lines(),
		Total:            s.Total(),
		ReconcileModelID: s.modelID,
		AutoReconcile:    s.autoReconcile,
		ToCheck:          s.toCheck,
		RateWarnings:     s.RateWarnings(),
	}
	if s.editIndex != nil {
		idx := *s.editIndex
		v.EditIndex = &idx
	}
	if err := s.Check(); err != nil && !s.reconciled {
		v.Problem = err.Error()
	}
	return v
}

// MountLine selects the line under edition.
func (s *Session) MountLine(index int) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, err := s.mount(index); err != nil {
		return err
	}
	return nil
}

// Reset drops every line but the liquidity one.
func (s *Session) Reset() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.partnerID = s.statementLine.PartnerID
	s.lines = []*Line{s.liquidityLine()}
	s.editIndex = nil
	s.modelID = 0
	s.autoReconcile = false
	s.toCheck = false
	s.recomputeAutoBalance()
	s.log.Debug("Session reset")
	return nil
}

func (s *Session) ensureOpen() error {
	if s.reconciled {
		return errors.InvalidError(errors.CodeInvalidState, "the session is reconciled and read-only")
	}
	return nil
}

func (s *Session) newLine(l Line) *Line {
	l.Index = s.nextIndex
	s.nextIndex++
	return &l
}

func (s *Session) find(index int) (*Line, int) {
	for i, l := range s.lines {
		if l.Index == index {
			return l, i
		}
	}
	return nil, -1
}

func (s *Session) mount(index int) (*Line, error) {
	l, _ := s.find(index)
	if l == nil {
		return nil, errors.InvalidError(errors.CodeInvalidLine, fmt.Sprintf("no line with index %d", index))
	}
	idx := index
	s.editIndex = &idx
	return l, nil
}

func (s *Session) insertAt(pos int, l *Line) {
	s.lines = append(s.lines, nil)
	copy(s.lines[pos+1:], s.lines[pos:])
	s.lines[pos] = l
}

// removeLines drops the lines matching keep and returns them.
func (s *Session) removeLines(match func(*Line) bool) []*Line {
	var removed []*Line
	kept := s.lines[:0]
	for _, l := range s.lines {
		if match(l) {
			removed = append(removed, l)
			continue
		}
		kept = append(kept, l)
	}
	for i := len(kept); i < len(s.lines); i++ {
		s.lines[i] = nil
	}
	s.lines = kept

	if s.editIndex != nil {
		for _, l := range removed {
			if l.Index == *s.editIndex {
				s.editIndex = nil
				break
			}
		}
	}
	return removed
}

func (s *Session) linesWithFlag(flag Flag) []*Line {
	var out []*Line
	for _, l := range s.lines {
		if l.Flag == flag {
			out = append(out, l)
		}
	}
	return out
}

func (s *Session) liquidity() *Line {
	for _, l := range s.lines {
		if l.Flag == FlagLiquidity {
			return l
		}
	}
	return nil
}

func (s *Session) transactionAmount() decimal.Decimal {
	return s.statementLine.TransactionAmount(s.companyCur)
}

func (s *Session) transaction() exchange.Transaction {
	return exchange.Transaction{
		Date:              s.statementLine.Date,
		Currency:          s.transCur,
		CompanyAmount:     s.statementLine.Amount,
		TransactionAmount: s.transactionAmount(),
	}
}

// companyRatio is the company amount for one unit of the transaction
// currency, as implied by the statement line.
func (s *Session) companyRatio() decimal.Decimal {
	if s.transCur.Equal(s.companyCur) {
		return one
	}
	trans := s.transactionAmount()
	if !trans.IsZero() && !s.statementLine.Amount.IsZero() {
		return s.statementLine.Amount.Div(trans).Abs()
	}
	rate, err := s.deps.Converter.Rate(s.transCur, s.statementLine.Date)
	s.warnRate(err)
	if rate.IsZero() {
		return one
	}
	return one.Div(rate)
}

// toCompany converts a newly typed amount: at the statement rate for the
// transaction currency, through the resolver for any other currency.
func (s *Session) toCompany(amount decimal.Decimal, cur *models.Currency) decimal.Decimal {
	switch {
	case cur == nil || cur.Equal(s.companyCur):
		return s.companyCur.Round(amount)
	case cur.Equal(s.transCur):
		return s.companyCur.Round(amount.Mul(s.companyRatio()))
	}
	value, err := s.deps.Converter.ToCompany(amount, cur, s.statementLine.Date)
	s.warnRate(err)
	return value
}

// fromCompany converts a company amount into cur, the inverse of toCompany.
func (s *Session) fromCompany(amount decimal.Decimal, cur *models.Currency) decimal.Decimal {
	switch {
	case cur == nil || cur.Equal(s.companyCur):
		return s.companyCur.Round(amount)
	case cur.Equal(s.transCur):
		return s.transCur.Round(amount.Div(s.companyRatio()))
	}
	value, err := s.deps.Converter.FromCompany(amount, cur, s.statementLine.Date)
	s.warnRate(err)
	return value
}

// inTransactionCurrency is what a line weighs in the transaction currency.
func (s *Session) inTransactionCurrency(l *Line) decimal.Decimal {
	if l.Currency.Equal(s.transCur) {
		return l.AmountCurrency
	}
	return s.transCur.Round(l.Balance.Div(s.companyRatio()))
}

func (s *Session) warnRate(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	for _, w := range s.rateWarnings {
		if w == msg {
			return
		}
	}
	s.rateWarnings = append(s.rateWarnings, msg)
	s.log.WithError(err).Warn("Rate unavailable, converting 1:1")
}
