// Package db is the SQLite implementation of the ledger store. Amounts are
// stored as decimal strings so no precision is lost.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
CREATE TABLE IF NOT EXISTS journals (
    id INTEGER PRIMARY KEY,
    opening_balance TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS statement_lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    journal_id INTEGER NOT NULL,
    date TEXT NOT NULL,                -- YYYY-MM-DD
    payment_ref TEXT NOT NULL DEFAULT '',
    partner_id INTEGER NOT NULL DEFAULT 0,
    partner_name TEXT NOT NULL DEFAULT '',
    account_number TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    foreign_currency TEXT NOT NULL DEFAULT '',
    amount_currency TEXT NOT NULL DEFAULT '0',
    is_reconciled INTEGER NOT NULL DEFAULT 0,
    cron_last_check TEXT,              -- fixed width UTC timestamp
    move_id INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_statement_lines_check
    ON statement_lines(is_reconciled, cron_last_check, id);

CREATE TABLE IF NOT EXISTS ledger_lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    move_id INTEGER NOT NULL DEFAULT 0,
    move_name TEXT NOT NULL DEFAULT '',
    move_ref TEXT NOT NULL DEFAULT '',
    account_id INTEGER NOT NULL,
    partner_id INTEGER NOT NULL DEFAULT 0,
    currency TEXT NOT NULL,
    date TEXT NOT NULL,
    date_maturity TEXT NOT NULL,
    amount_currency TEXT NOT NULL,
    balance TEXT NOT NULL,
    amount_residual_currency TEXT NOT NULL,
    amount_residual TEXT NOT NULL,
    reconciled INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    early_payment TEXT                 -- JSON
);

CREATE INDEX IF NOT EXISTS idx_ledger_lines_open
    ON ledger_lines(reconciled, account_id, partner_id);

CREATE TABLE IF NOT EXISTS journal_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,                -- 'statement' or 'exchange'
    journal_id INTEGER NOT NULL,
    date TEXT NOT NULL,
    ref TEXT NOT NULL DEFAULT '',
    partner_id INTEGER NOT NULL DEFAULT 0,
    to_check INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS journal_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id INTEGER NOT NULL REFERENCES journal_entries(id),
    account_id INTEGER NOT NULL,
    partner_id INTEGER NOT NULL DEFAULT 0,
    currency TEXT NOT NULL,
    amount_currency TEXT NOT NULL,
    balance TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    tax_ids TEXT,                      -- JSON
    tax_tag_ids TEXT,                  -- JSON
    tax_line_id INTEGER NOT NULL DEFAULT 0,
    analytic TEXT,                     -- JSON
    matched_ledger_line_id INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_journal_items_entry
    ON journal_items(entry_id);

-- Partials link a ledger line to the journal item that settled it.
CREATE TABLE IF NOT EXISTS partials (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ledger_line_id INTEGER NOT NULL REFERENCES ledger_lines(id),
    item_id INTEGER NOT NULL REFERENCES journal_items(id),
    ledger_is_debit INTEGER NOT NULL,
    amount TEXT NOT NULL,
    amount_currency TEXT NOT NULL,
    exchange_entry_id INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_partials_ledger_line
    ON partials(ledger_line_id);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.db.Exec(Schema); err != nil {
		return err
	}
	return nil
}
