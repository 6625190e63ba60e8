package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// timestampLayout has a fixed width so timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.Store on SQLite.
type Store struct {
	conn *Connection
	now  func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a store on an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, now: time.Now}
}

// OpenStore opens the database at path and wraps it in a store.
func OpenStore(path string) (*Store, error) {
	conn, err := Open(path)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open", err).WithContext("path", path)
	}
	return NewStore(conn), nil
}

// Close implements ledger.Store
func (s *Store) Close() error {
	return s.conn.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %s: %w", field, err)
	}
	return d, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func queryFailed(operation string, err error) error {
	return errors.StorageError(errors.CodeQueryFailed, operation, err)
}

// SetOpeningBalance records the opening balance used by JournalSummary.
func (s *Store) SetOpeningBalance(ctx context.Context, journalID int64, balance decimal.Decimal) error {
	_, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO journals (id, opening_balance) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET opening_balance = excluded.opening_balance
	`, journalID, balance.String())
	if err != nil {
		return queryFailed("set opening balance", err)
	}
	return nil
}

// CreateStatementLine stores a new statement line
func (s *Store) CreateStatementLine(ctx context.Context, line *models.StatementLine) (int64, error) {
	if line.CreatedAt.IsZero() {
		line.CreatedAt = s.now()
	}
	var lastCheck interface{}
	if line.CronLastCheck != nil {
		lastCheck = formatTimestamp(*line.CronLastCheck)
	}
	var id interface{}
	if line.ID != 0 {
		id = line.ID
	}

	res, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO statement_lines (id, journal_id, date, payment_ref, partner_id, partner_name,
			account_number, amount, foreign_currency, amount_currency, is_reconciled,
			cron_last_check, move_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, line.JournalID, models.FormatDate(line.Date), line.PaymentRef, line.PartnerID, line.PartnerName,
		line.AccountNumber, line.Amount.String(), line.ForeignCurrency, line.AmountCurrency.String(),
		line.IsReconciled, lastCheck, line.MoveID, formatTimestamp(line.CreatedAt))
	if err != nil {
		return 0, queryFailed("create statement line", err)
	}
	line.ID, err = res.LastInsertId()
	if err != nil {
		return 0, queryFailed("create statement line", err)
	}
	return line.ID, nil
}

// CreateLedgerLine stores a new open ledger line
func (s *Store) CreateLedgerLine(ctx context.Context, line *models.LedgerLine) (int64, error) {
	if line.Version == 0 {
		line.Version = 1
	}
	var earlyPayment interface{}
	if line.EarlyPayment != nil {
		raw, err := json.Marshal(line.EarlyPayment)
		if err != nil {
			return 0, errors.InvalidError(errors.CodeInvalidValue, fmt.Sprintf("early payment term: %v", err))
		}
		earlyPayment = string(raw)
	}
	var id interface{}
	if line.ID != 0 {
		id = line.ID
	}

	res, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO ledger_lines (id, move_id, move_name, move_ref, account_id, partner_id, currency,
			date, date_maturity, amount_currency, balance, amount_residual_currency, amount_residual,
			reconciled, version, early_payment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, line.MoveID, line.MoveName, line.MoveRef, line.AccountID, line.PartnerID, line.Currency,
		models.FormatDate(line.Date), models.FormatDate(line.DateMaturity),
		line.AmountCurrency.String(), line.Balance.String(),
		line.AmountResidualCurrency.String(), line.AmountResidual.String(),
		line.Reconciled, line.Version, earlyPayment)
	if err != nil {
		return 0, queryFailed("create ledger line", err)
	}
	line.ID, err = res.LastInsertId()
	if err != nil {
		return 0, queryFailed("create ledger line", err)
	}
	if line.MoveID == 0 {
		if _, err := s.conn.db.ExecContext(ctx, `UPDATE ledger_lines SET move_id = id WHERE id = ?`, line.ID); err != nil {
			return 0, queryFailed("create ledger line", err)
		}
		line.MoveID = line.ID
	}
	return line.ID, nil
}

const statementColumns = `id, journal_id, date, payment_ref, partner_id, partner_name, account_number,
	amount, foreign_currency, amount_currency, is_reconciled, cron_last_check, move_id, created_at`

func scanStatementLine(row scanner) (*models.StatementLine, error) {
	var (
		line                    models.StatementLine
		date, amount, amountCur string
		createdAt               string
		lastCheck               sql.NullString
	)
	if err := row.Scan(&line.ID, &line.JournalID, &date, &line.PaymentRef, &line.PartnerID,
		&line.PartnerName, &line.AccountNumber, &amount, &line.ForeignCurrency, &amountCur,
		&line.IsReconciled, &lastCheck, &line.MoveID, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if line.Date, err = models.ParseDate(date); err != nil {
		return nil, err
	}
	if line.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if line.AmountCurrency, err = parseDecimal("amount_currency", amountCur); err != nil {
		return nil, err
	}
	if line.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return nil, err
	}
	if lastCheck.Valid {
		at, err := time.Parse(timestampLayout, lastCheck.String)
		if err != nil {
			return nil, err
		}
		line.CronLastCheck = &at
	}
	return &line, nil
}

// StatementLine returns one statement line
func (s *Store) StatementLine(ctx context.Context, id int64) (*models.StatementLine, error) {
	row := s.conn.db.QueryRowContext(ctx, `SELECT `+statementColumns+` FROM statement_lines WHERE id = ?`, id)
	line, err := scanStatementLine(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(errors.CodeStatementLineNotFound, "statement line", id)
	}
	if err != nil {
		return nil, queryFailed("read statement line", err)
	}
	return line, nil
}

// FindStatementLines returns statement lines in scheduler priority order
func (s *Store) FindStatementLines(ctx context.Context, filter ledger.StatementFilter) ([]*models.StatementLine, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(filter.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if filter.Unreconciled {
		where = append(where, "is_reconciled = 0")
	}
	if !filter.DateAfter.IsZero() {
		where = append(where, "date > ?")
		args = append(args, models.FormatDate(filter.DateAfter))
	}

	query := `SELECT ` + statementColumns + ` FROM statement_lines`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY cron_last_check IS NOT NULL, cron_last_check, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed("find statement lines", err)
	}
	defer rows.Close()

	var out []*models.StatementLine
	for rows.Next() {
		line, err := scanStatementLine(rows)
		if err != nil {
			return nil, queryFailed("find statement lines", err)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("find statement lines", err)
	}
	return out, nil
}

// MarkChecked stamps the last automatic check time
func (s *Store) MarkChecked(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := []interface{}{formatTimestamp(at)}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.conn.db.ExecContext(ctx,
		`UPDATE statement_lines SET cron_last_check = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return queryFailed("mark checked", err)
	}
	return nil
}

const ledgerColumns = `id, move_id, move_name, move_ref, account_id, partner_id, currency, date,
	date_maturity, amount_currency, balance, amount_residual_currency, amount_residual,
	reconciled, version, early_payment`

func scanLedgerLine(row scanner) (*models.LedgerLine, error) {
	var (
		line                            models.LedgerLine
		date, maturity                  string
		amountCur, balance, resCur, res string
		earlyPayment                    sql.NullString
	)
	if err := row.Scan(&line.ID, &line.MoveID, &line.MoveName, &line.MoveRef, &line.AccountID,
		&line.PartnerID, &line.Currency, &date, &maturity, &amountCur, &balance, &resCur, &res,
		&line.Reconciled, &line.Version, &earlyPayment); err != nil {
		return nil, err
	}

	var err error
	if line.Date, err = models.ParseDate(date); err != nil {
		return nil, err
	}
	if line.DateMaturity, err = models.ParseDate(maturity); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name  string
		value string
		dest  *decimal.Decimal
	}{
		{"amount_currency", amountCur, &line.AmountCurrency},
		{"balance", balance, &line.Balance},
		{"amount_residual_currency", resCur, &line.AmountResidualCurrency},
		{"amount_residual", res, &line.AmountResidual},
	} {
		if *f.dest, err = parseDecimal(f.name, f.value); err != nil {
			return nil, err
		}
	}
	if earlyPayment.Valid {
		line.EarlyPayment = &models.EarlyPaymentTerm{}
		if err := json.Unmarshal([]byte(earlyPayment.String), line.EarlyPayment); err != nil {
			return nil, fmt.Errorf("column early_payment: %w", err)
		}
	}
	return &line, nil
}

func ledgerLine(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}, id int64) (*models.LedgerLine, error) {
	line, err := scanLedgerLine(q.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_lines WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(errors.CodeLedgerLineNotFound, "ledger line", id)
	}
	if err != nil {
		return nil, queryFailed("read ledger line", err)
	}
	return line, nil
}

// LedgerLines returns the requested ledger lines in the requested order
func (s *Store) LedgerLines(ctx context.Context, ids []int64) ([]*models.LedgerLine, error) {
	out := make([]*models.LedgerLine, 0, len(ids))
	for _, id := range ids {
		line, err := ledgerLine(ctx, s.conn.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// OpenLedgerLines returns open lines matching the filter ordered by
// maturity, then id
func (s *Store) OpenLedgerLines(ctx context.Context, filter ledger.LedgerFilter) ([]*models.LedgerLine, error) {
	where := []string{"reconciled = 0"}
	var args []interface{}
	if len(filter.AccountIDs) > 0 {
		where = append(where, "account_id IN ("+placeholders(len(filter.AccountIDs))+")")
		for _, id := range filter.AccountIDs {
			args = append(args, id)
		}
	}
	if filter.PartnerID != 0 {
		where = append(where, "partner_id = ?")
		args = append(args, filter.PartnerID)
	}

	rows, err := s.conn.db.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_lines WHERE `+
		strings.Join(where, " AND ")+` ORDER BY date_maturity, id`, args...)
	if err != nil {
		return nil, queryFailed("open ledger lines", err)
	}
	defer rows.Close()

	excluded := make(map[int64]bool, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}

	var out []*models.LedgerLine
	for rows.Next() {
		line, err := scanLedgerLine(rows)
		if err != nil {
			return nil, queryFailed("open ledger lines", err)
		}
		if !line.IsOpen() || excluded[line.ID] {
			continue
		}
		out = append(out, line)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("open ledger lines", err)
	}
	return out, nil
}

func marshalIDs(ids []int64) (interface{}, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(ids)
	return string(raw), err
}

// insertEntry writes an entry and its items and returns the item ids.
func insertEntry(ctx context.Context, tx *sql.Tx, entry *models.JournalEntry) (int64, []int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (kind, journal_id, date, ref, partner_id, to_check)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(entry.Kind), entry.JournalID, models.FormatDate(entry.Date), entry.Ref, entry.PartnerID, entry.ToCheck)
	if err != nil {
		return 0, nil, err
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}

	itemIDs := make([]int64, len(entry.Items))
	for i, item := range entry.Items {
		taxIDs, err := marshalIDs(item.TaxIDs)
		if err != nil {
			return 0, nil, err
		}
		tagIDs, err := marshalIDs(item.TaxTagIDs)
		if err != nil {
			return 0, nil, err
		}
		var analytic interface{}
		if len(item.Analytic) > 0 {
			raw, err := json.Marshal(item.Analytic)
			if err != nil {
				return 0, nil, err
			}
			analytic = string(raw)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO journal_items (entry_id, account_id, partner_id, currency, amount_currency, balance,
				name, tax_ids, tax_tag_ids, tax_line_id, analytic, matched_ledger_line_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, entryID, item.AccountID, item.PartnerID, item.Currency, item.AmountCurrency.String(),
			item.Balance.String(), item.Name, taxIDs, tagIDs, item.TaxLineID, analytic, item.MatchedLedgerLineID)
		if err != nil {
			return 0, nil, err
		}
		if itemIDs[i], err = res.LastInsertId(); err != nil {
			return 0, nil, err
		}
	}
	return entryID, itemIDs, nil
}

// Commit validates versions and applies the request in one transaction
func (s *Store) Commit(ctx context.Context, req *ledger.CommitRequest) (*ledger.CommitResult, error) {
	result := &ledger.CommitResult{}

	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		var reconciled bool
		err := tx.QueryRowContext(ctx, `SELECT is_reconciled FROM statement_lines WHERE id = ?`, req.StatementLineID).Scan(&reconciled)
		if err == sql.ErrNoRows {
			return errors.NotFoundError(errors.CodeStatementLineNotFound, "statement line", req.StatementLineID)
		}
		if err != nil {
			return err
		}
		if reconciled {
			return errors.NotFoundError(errors.CodeAlreadyReconciled, "statement line", req.StatementLineID)
		}

		lines := make([]*models.LedgerLine, len(req.Settlements))
		for i, st := range req.Settlements {
			line, err := ledgerLine(ctx, tx, st.LedgerLineID)
			if err != nil {
				return err
			}
			if line.Version != st.ExpectedVersion {
				return errors.ConcurrentModificationError(line.ID, st.ExpectedVersion, line.Version)
			}
			lines[i] = line
		}

		entryID, itemIDs, err := insertEntry(ctx, tx, req.Entry)
		if err != nil {
			return err
		}
		result.EntryID = entryID

		result.ExchangeEntryIDs = make([]int64, len(req.ExchangeEntries))
		for i, ex := range req.ExchangeEntries {
			if result.ExchangeEntryIDs[i], _, err = insertEntry(ctx, tx, ex); err != nil {
				return err
			}
		}

		for i, st := range req.Settlements {
			line := lines[i]
			residual := line.AmountResidual.Add(st.ResidualDelta)
			residualCur := line.AmountResidualCurrency.Add(st.ResidualCurrencyDelta)
			done := residual.IsZero() && residualCur.IsZero()

			res, err := tx.ExecContext(ctx, `
				UPDATE ledger_lines
				SET amount_residual = ?, amount_residual_currency = ?, reconciled = ?, version = version + 1
				WHERE id = ? AND version = ?
			`, residual.String(), residualCur.String(), done, line.ID, st.ExpectedVersion)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return errors.ConcurrentModificationError(line.ID, st.ExpectedVersion, line.Version+1)
			}
			if done {
				result.ReconciledIDs = append(result.ReconciledIDs, line.ID)
			}

			var exchangeID int64
			if st.ExchangeIndex >= 0 {
				exchangeID = result.ExchangeEntryIDs[st.ExchangeIndex]
			}
			res, err = tx.ExecContext(ctx, `
				INSERT INTO partials (ledger_line_id, item_id, ledger_is_debit, amount, amount_currency, exchange_entry_id)
				VALUES (?, ?, ?, ?, ?, ?)
			`, line.ID, itemIDs[st.ItemIndex], line.Balance.IsPositive(),
				st.ResidualDelta.Abs().String(), st.ResidualCurrencyDelta.Abs().String(), exchangeID)
			if err != nil {
				return err
			}
			partialID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			result.PartialIDs = append(result.PartialIDs, partialID)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE statement_lines
			SET is_reconciled = 1, move_id = ?, partner_id = CASE WHEN ? != 0 THEN ? ELSE partner_id END
			WHERE id = ?
		`, entryID, req.PartnerID, req.PartnerID, req.StatementLineID)
		return err
	})
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeTransactionFailed, "commit")
	}
	return result, nil
}

// JournalEntry returns a posted entry
func (s *Store) JournalEntry(ctx context.Context, id int64) (*models.JournalEntry, error) {
	var (
		entry models.JournalEntry
		kind  string
		date  string
	)
	err := s.conn.db.QueryRowContext(ctx, `
		SELECT id, kind, journal_id, date, ref, partner_id, to_check FROM journal_entries WHERE id = ?
	`, id).Scan(&entry.ID, &kind, &entry.JournalID, &date, &entry.Ref, &entry.PartnerID, &entry.ToCheck)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(errors.CodeEntityNotFound, "journal entry", id)
	}
	if err != nil {
		return nil, queryFailed("read journal entry", err)
	}
	entry.Kind = models.EntryKind(kind)
	if entry.Date, err = models.ParseDate(date); err != nil {
		return nil, queryFailed("read journal entry", err)
	}

	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT id, account_id, partner_id, currency, amount_currency, balance, name,
			tax_ids, tax_tag_ids, tax_line_id, analytic, matched_ledger_line_id
		FROM journal_items WHERE entry_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, queryFailed("read journal items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                     models.JournalItem
			amountCur, balance       string
			taxIDs, tagIDs, analytic sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.AccountID, &item.PartnerID, &item.Currency, &amountCur, &balance,
			&item.Name, &taxIDs, &tagIDs, &item.TaxLineID, &analytic, &item.MatchedLedgerLineID); err != nil {
			return nil, queryFailed("read journal items", err)
		}
		if item.AmountCurrency, err = parseDecimal("amount_currency", amountCur); err != nil {
			return nil, queryFailed("read journal items", err)
		}
		if item.Balance, err = parseDecimal("balance", balance); err != nil {
			return nil, queryFailed("read journal items", err)
		}
		for _, f := range []struct {
			raw  sql.NullString
			dest interface{}
		}{
			{taxIDs, &item.TaxIDs},
			{tagIDs, &item.TaxTagIDs},
			{analytic, &item.Analytic},
		} {
			if !f.raw.Valid {
				continue
			}
			if err := json.Unmarshal([]byte(f.raw.String), f.dest); err != nil {
				return nil, queryFailed("read journal items", err)
			}
		}
		entry.Items = append(entry.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("read journal items", err)
	}
	return &entry, nil
}

// Partials returns the partials touching a ledger line
func (s *Store) Partials(ctx context.Context, ledgerLineID int64) ([]*models.Partial, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT id, ledger_line_id, item_id, ledger_is_debit, amount, amount_currency, exchange_entry_id
		FROM partials WHERE ledger_line_id = ? ORDER BY id
	`, ledgerLineID)
	if err != nil {
		return nil, queryFailed("read partials", err)
	}
	defer rows.Close()

	var out []*models.Partial
	for rows.Next() {
		var (
			p                 models.Partial
			lineID, itemID    int64
			ledgerIsDebit     bool
			amount, amountCur string
		)
		if err := rows.Scan(&p.ID, &lineID, &itemID, &ledgerIsDebit, &amount, &amountCur, &p.ExchangeEntryID); err != nil {
			return nil, queryFailed("read partials", err)
		}
		if ledgerIsDebit {
			p.DebitLineID, p.CreditLineID = lineID, itemID
		} else {
			p.DebitLineID, p.CreditLineID = itemID, lineID
		}
		if p.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, queryFailed("read partials", err)
		}
		if p.AmountCurrency, err = parseDecimal("amount_currency", amountCur); err != nil {
			return nil, queryFailed("read partials", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("read partials", err)
	}
	return out, nil
}

// JournalSummary returns the running balance and the unreconciled count.
// An unknown journal yields nil.
func (s *Store) JournalSummary(ctx context.Context, journalID int64) (*ledger.Summary, error) {
	summary := &ledger.Summary{JournalID: journalID, Balance: decimal.Zero}

	var opening string
	err := s.conn.db.QueryRowContext(ctx, `SELECT opening_balance FROM journals WHERE id = ?`, journalID).Scan(&opening)
	known := err == nil
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, queryFailed("journal summary", err)
	default:
		if summary.Balance, err = parseDecimal("opening_balance", opening); err != nil {
			return nil, queryFailed("journal summary", err)
		}
	}

	rows, err := s.conn.db.QueryContext(ctx,
		`SELECT amount, is_reconciled FROM statement_lines WHERE journal_id = ?`, journalID)
	if err != nil {
		return nil, queryFailed("journal summary", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			amount     string
			reconciled bool
		)
		if err := rows.Scan(&amount, &reconciled); err != nil {
			return nil, queryFailed("journal summary", err)
		}
		value, err := parseDecimal("amount", amount)
		if err != nil {
			return nil, queryFailed("journal summary", err)
		}
		known = true
		summary.Balance = summary.Balance.Add(value)
		if !reconciled {
			summary.UnreconciledCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("journal summary", err)
	}
	if !known {
		return nil, nil
	}
	return summary, nil
}
