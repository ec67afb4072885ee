package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: database URL is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS lead_files (
	id                TEXT PRIMARY KEY,
	uploaded_by       TEXT,
	original_filename TEXT NOT NULL,
	row_count         INTEGER NOT NULL DEFAULT 0,
	processed_count   INTEGER NOT NULL DEFAULT 0,
	skipped_count     INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'received',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	source_file_id   TEXT REFERENCES lead_files(id),
	first_name       TEXT,
	last_name        TEXT,
	phone_e164       TEXT,
	email            TEXT,
	state            TEXT,
	address          TEXT,
	dob              TEXT,
	age              INTEGER,
	military_branch  TEXT,
	beneficiary_name TEXT,
	lead_type        TEXT,
	status           TEXT NOT NULL DEFAULT 'new',
	assigned_to      TEXT,
	assigned_at      DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_phone_e164 ON leads(phone_e164);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(state);
CREATE INDEX IF NOT EXISTS idx_leads_lead_type ON leads(lead_type);

CREATE TABLE IF NOT EXISTS lead_assignments (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	user_id    TEXT,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_lead_assignments_lead_id ON lead_assignments(lead_id);
CREATE INDEX IF NOT EXISTS idx_lead_assignments_user_id ON lead_assignments(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateImportBatch(ctx context.Context, batch model.ImportBatch) (*model.ImportBatch, error) {
	batch.ID = uuid.New().String()
	batch.Status = model.BatchStatusReceived
	batch.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_files (id, uploaded_by, original_filename, row_count, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.UploadedBy, batch.OriginalFilename, batch.RowCount, string(batch.Status), batch.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead file")
	}
	return &batch, nil
}

func (s *SQLiteStore) FinalizeImportBatch(ctx context.Context, batchID string, processed, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_files SET processed_count = ?, skipped_count = ?, status = ? WHERE id = ?`,
		processed, skipped, string(model.BatchStatusProcessed), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize lead file %s", batchID)
	}
	return checkRowsAffected(res, "lead file", batchID)
}

func (s *SQLiteStore) GetImportBatch(ctx context.Context, batchID string) (*model.ImportBatch, error) {
	var b model.ImportBatch
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, uploaded_by, original_filename, row_count, processed_count, skipped_count, status, created_at FROM lead_files WHERE id = ?`,
		batchID,
	).Scan(&b.ID, &b.UploadedBy, &b.OriginalFilename, &b.RowCount, &b.ProcessedCount, &b.SkippedCount, &status, &b.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead file %s", batchID)
	}
	b.Status = model.BatchStatus(status)
	return &b, nil
}

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert leads")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (id, source_file_id, first_name, last_name, phone_e164, email, state, address, dob, age, military_branch, beneficiary_name, lead_type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert lead")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	inserted := 0
	for _, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			id, l.SourceFileID, l.FirstName, l.LastName, l.PhoneE164, l.Email,
			l.State, l.Address, l.DOB, l.Age, l.MilitaryBranch, l.BeneficiaryName,
			l.LeadType, string(l.Status), now,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert lead")
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert leads")
	}
	return inserted, nil
}

func (s *SQLiteStore) ExistingPhones(ctx context.Context, phones []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(phones) == 0 {
		return existing, nil
	}

	query := `SELECT phone_e164 FROM leads WHERE phone_e164 IN (` + placeholders(len(phones)) + `)`
	rows, err := s.db.QueryContext(ctx, query, toArgs(phones)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup existing phones")
	}
	defer rows.Close()

	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phone")
		}
		existing[phone] = struct{}{}
	}
	return existing, eris.Wrap(rows.Err(), "sqlite: iterate phones")
}

const sqliteLeadSelect = `SELECT id, source_file_id, first_name, last_name, phone_e164, email, state, address, dob, age, military_branch, beneficiary_name, lead_type, status, assigned_to, assigned_at, created_at FROM leads`

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := sqliteLeadSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, filter.AssignedTo)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.LeadType != "" {
		query += ` AND lead_type = ?`
		args = append(args, filter.LeadType)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	query := `SELECT count(*) FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, filter.AssignedTo)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.LeadType != "" {
		query += ` AND lead_type = ?`
		args = append(args, filter.LeadType)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count leads")
	}
	return n, nil
}

func (s *SQLiteStore) FetchPool(ctx context.Context, filter PoolFilter) ([]string, error) {
	query := `SELECT id FROM leads WHERE assigned_to IS NULL AND status <> ?`
	args := []any{string(model.LeadStatusSold)}

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.LeadType != "" {
		query += ` AND lead_type = ?`
		args = append(args, filter.LeadType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch pool")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pool id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate pool")
}

func (s *SQLiteStore) AssignLeads(ctx context.Context, ids []string, userID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE leads SET assigned_to = ?, assigned_at = ?, status = ? WHERE id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{userID, at, string(model.LeadStatusAssigned)}, toArgs(ids)...)
	_, err := s.db.ExecContext(ctx, query, args...)
	return eris.Wrap(err, "sqlite: assign leads")
}

func (s *SQLiteStore) UnassignLeads(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE leads SET assigned_to = NULL, assigned_at = NULL WHERE id IN (` + placeholders(len(ids)) + `)`
	_, err := s.db.ExecContext(ctx, query, toArgs(ids)...)
	return eris.Wrap(err, "sqlite: unassign leads")
}

func (s *SQLiteStore) AssignedAmong(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id FROM leads WHERE assigned_to IS NOT NULL AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: assigned among")
	}
	defer rows.Close()

	var assigned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assigned id")
		}
		assigned = append(assigned, id)
	}
	return assigned, eris.Wrap(rows.Err(), "sqlite: iterate assigned")
}

func (s *SQLiteStore) LedgerLeadIDs(ctx context.Context, limit int) (map[string]struct{}, error) {
	if limit <= 0 {
		limit = 100000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT lead_id FROM lead_assignments LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: ledger lead ids")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ledger id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate ledger")
}

func (s *SQLiteStore) AppendAssignment(ctx context.Context, entry model.AssignmentEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	at := entry.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_assignments (id, lead_id, user_id, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, entry.LeadID, entry.UserID, entry.Reason, at,
	)
	return eris.Wrap(err, "sqlite: append assignment")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

func scanLead(rows *sql.Rows) (*model.Lead, error) {
	var l model.Lead
	var status string
	var assignedAt sql.NullTime

	err := rows.Scan(
		&l.ID, &l.SourceFileID, &l.FirstName, &l.LastName, &l.PhoneE164, &l.Email,
		&l.State, &l.Address, &l.DOB, &l.Age, &l.MilitaryBranch, &l.BeneficiaryName,
		&l.LeadType, &status, &l.AssignedTo, &assignedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}
	l.Status = model.LeadStatus(status)
	if assignedAt.Valid {
		t := assignedAt.Time
		l.AssignedAt = &t
	}
	return &l, nil
}
