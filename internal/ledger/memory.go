package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in maps. Commits are applied under one lock
// after every check passed, so a failed commit leaves no trace.
type MemoryStore struct {
	mutex          sync.RWMutex
	statementLines map[int64]*models.StatementLine
	ledgerLines    map[int64]*models.LedgerLine
	entries        map[int64]*models.JournalEntry
	partials       map[int64]*models.Partial
	journals       map[int64]decimal.Decimal
	nextID         int64
	now            func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statementLines: make(map[int64]*models.StatementLine),
		ledgerLines:    make(map[int64]*models.LedgerLine),
		entries:        make(map[int64]*models.JournalEntry),
		partials:       make(map[int64]*models.Partial),
		journals:       make(map[int64]decimal.Decimal),
		now:            time.Now,
	}
}

// SetOpeningBalance records the opening balance used by JournalSummary.
func (m *MemoryStore) SetOpeningBalance(ctx context.Context, journalID int64, balance decimal.Decimal) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.journals[journalID] = balance
	return nil
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copyStatementLine(s *models.StatementLine) *models.StatementLine {
	c := *s
	if s.CronLastCheck != nil {
		at := *s.CronLastCheck
		c.CronLastCheck = &at
	}
	return &c
}

func copyLedgerLine(l *models.LedgerLine) *models.LedgerLine {
	c := *l
	return &c
}

// CreateStatementLine stores a new statement line
func (m *MemoryStore) CreateStatementLine(ctx context.Context, line *models.StatementLine) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if line.ID == 0 {
		line.ID = m.id()
	} else if line.ID > m.nextID {
		m.nextID = line.ID
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = m.now()
	}
	m.statementLines[line.ID] = copyStatementLine(line)
	return line.ID, nil
}

// CreateLedgerLine stores a new open ledger line
func (m *MemoryStore) CreateLedgerLine(ctx context.Context, line *models.LedgerLine) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if line.ID == 0 {
		line.ID = m.id()
	} else if line.ID > m.nextID {
		m.nextID = line.ID
	}
	if line.MoveID == 0 {
		line.MoveID = m.id()
	}
	if line.Version == 0 {
		line.Version = 1
	}
	m.ledgerLines[line.ID] = copyLedgerLine(line)
	return line.ID, nil
}

// StatementLine returns one statement line
func (m *MemoryStore) StatementLine(ctx context.Context, id int64) (*models.StatementLine, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	line, ok := m.statementLines[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeStatementLineNotFound, "statement line", id)
	}
	return copyStatementLine(line), nil
}

// LedgerLines returns the requested ledger lines in the requested order
func (m *MemoryStore) LedgerLines(ctx context.Context, ids []int64) ([]*models.LedgerLine, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]*models.LedgerLine, 0, len(ids))
	for _, id := range ids {
		line, ok := m.ledgerLines[id]
		if !ok {
			return nil, errors.NotFoundError(errors.CodeLedgerLineNotFound, "ledger line", id)
		}
		out = append(out, copyLedgerLine(line))
	}
	return out, nil
}

// OpenLedgerLines returns open lines matching the filter ordered by
// maturity, then id
func (m *MemoryStore) OpenLedgerLines(ctx context.Context, filter LedgerFilter) ([]*models.LedgerLine, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	accounts := toSet(filter.AccountIDs)
	excluded := toSet(filter.ExcludeIDs)

	var out []*models.LedgerLine
	for _, line := range m.ledgerLines {
		if !line.IsOpen() || excluded[line.ID] {
			continue
		}
		if len(accounts) > 0 && !accounts[line.AccountID] {
			continue
		}
		if filter.PartnerID != 0 && line.PartnerID != filter.PartnerID {
			continue
		}
		out = append(out, copyLedgerLine(line))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateMaturity.Equal(out[j].DateMaturity) {
			return out[i].DateMaturity.Before(out[j].DateMaturity)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FindStatementLines returns statement lines in scheduler priority order
func (m *MemoryStore) FindStatementLines(ctx context.Context, filter StatementFilter) ([]*models.StatementLine, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := toSet(filter.IDs)
	var out []*models.StatementLine
	for _, line := range m.statementLines {
		if len(ids) > 0 && !ids[line.ID] {
			continue
		}
		if filter.Unreconciled && line.IsReconciled {
			continue
		}
		if !filter.DateAfter.IsZero() && !line.Date.After(filter.DateAfter) {
			continue
		}
		out = append(out, copyStatementLine(line))
	}

	SortByCheckPriority(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SortByCheckPriority orders never checked lines first, then the oldest
// check, then id.
func SortByCheckPriority(lines []*models.StatementLine) {
	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i].CronLastCheck, lines[j].CronLastCheck
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return lines[i].ID < lines[j].ID
	})
}

// MarkChecked stamps the last automatic check time
func (m *MemoryStore) MarkChecked(ctx context.Context, ids []int64, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, id := range ids {
		if line, ok := m.statementLines[id]; ok {
			stamp := at
			line.CronLastCheck = &stamp
		}
	}
	return nil
}

// Commit validates versions and applies the request atomically
func (m *MemoryStore) Commit(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeTransactionFailed, "commit", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	st, ok := m.statementLines[req.StatementLineID]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeStatementLineNotFound, "statement line", req.StatementLineID)
	}
	if st.IsReconciled {
		return nil, errors.NotFoundError(errors.CodeAlreadyReconciled, "statement line", req.StatementLineID)
	}
	for _, s := range req.Settlements {
		line, ok := m.ledgerLines[s.LedgerLineID]
		if !ok {
			return nil, errors.NotFoundError(errors.CodeLedgerLineNotFound, "ledger line", s.LedgerLineID)
		}
		if line.Version != s.ExpectedVersion {
			return nil, errors.ConcurrentModificationError(line.ID, s.ExpectedVersion, line.Version)
		}
	}

	result := &CommitResult{}

	entry := *req.Entry
	entry.ID = m.id()
	entry.Items = append([]models.JournalItem(nil), req.Entry.Items...)
	for i := range entry.Items {
		entry.Items[i].ID = m.id()
	}
	m.entries[entry.ID] = &entry
	result.EntryID = entry.ID

	exchangeIDs := make([]int64, len(req.ExchangeEntries))
	for i, ex := range req.ExchangeEntries {
		stored := *ex
		stored.ID = m.id()
		stored.Items = append([]models.JournalItem(nil), ex.Items...)
		for j := range stored.Items {
			stored.Items[j].ID = m.id()
		}
		m.entries[stored.ID] = &stored
		exchangeIDs[i] = stored.ID
	}
	result.ExchangeEntryIDs = exchangeIDs

	for _, s := range req.Settlements {
		line := m.ledgerLines[s.LedgerLineID]
		line.AmountResidual = line.AmountResidual.Add(s.ResidualDelta)
		line.AmountResidualCurrency = line.AmountResidualCurrency.Add(s.ResidualCurrencyDelta)
		line.Version++
		if line.AmountResidual.IsZero() && line.AmountResidualCurrency.IsZero() {
			line.Reconciled = true
			result.ReconciledIDs = append(result.ReconciledIDs, line.ID)
		}

		item := entry.Items[s.ItemIndex]
		partial := &models.Partial{
			ID:             m.id(),
			Amount:         s.ResidualDelta.Abs(),
			AmountCurrency: s.ResidualCurrencyDelta.Abs(),
		}
		if line.Balance.IsPositive() {
			partial.DebitLineID, partial.CreditLineID = line.ID, item.ID
		} else {
			partial.DebitLineID, partial.CreditLineID = item.ID, line.ID
		}
		if s.ExchangeIndex >= 0 {
			partial.ExchangeEntryID = exchangeIDs[s.ExchangeIndex]
		}
		m.partials[partial.ID] = partial
		result.PartialIDs = append(result.PartialIDs, partial.ID)
	}

	st.IsReconciled = true
	st.MoveID = entry.ID
	if req.PartnerID != 0 {
		st.PartnerID = req.PartnerID
	}

	return result, nil
}

// JournalEntry returns a posted entry
func (m *MemoryStore) JournalEntry(ctx context.Context, id int64) (*models.JournalEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "journal entry", id)
	}
	c := *entry
	c.Items = append([]models.JournalItem(nil), entry.Items...)
	return &c, nil
}

// Partials returns the partials touching a ledger line
func (m *MemoryStore) Partials(ctx context.Context, ledgerLineID int64) ([]*models.Partial, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []*models.Partial
	for _, p := range m.partials {
		if p.DebitLineID == ledgerLineID || p.CreditLineID == ledgerLineID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// JournalSummary returns the running balance and the unreconciled count.
// An unknown journal yields nil.
func (m *MemoryStore) JournalSummary(ctx context.Context, journalID int64) (*Summary, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	opening, known := m.journals[journalID]
	summary := &Summary{JournalID: journalID, Balance: opening}
	for _, line := range m.statementLines {
		if line.JournalID != journalID {
			continue
		}
		known = true
		summary.Balance = summary.Balance.Add(line.Amount)
		if !line.IsReconciled {
			summary.UnreconciledCount++
		}
	}
	if !known {
		return nil, nil
	}
	return summary, nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
