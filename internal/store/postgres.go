package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/db"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_file":       `INSERT INTO lead_files (id, uploaded_by, original_filename, row_count, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"finalize_file":     `UPDATE lead_files SET processed_count = $1, skipped_count = $2, status = $3 WHERE id = $4`,
	"existing_phones":   `SELECT phone_e164 FROM leads WHERE phone_e164 = ANY($1)`,
	"assign_leads":      `UPDATE leads SET assigned_to = $1, assigned_at = $2, status = $3 WHERE id = ANY($4)`,
	"unassign_leads":    `UPDATE leads SET assigned_to = NULL, assigned_at = NULL WHERE id = ANY($1)`,
	"ledger_lead_ids":   `SELECT lead_id FROM lead_assignments LIMIT $1`,
	"append_assignment": `INSERT INTO lead_assignments (id, lead_id, user_id, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	if connString == "" {
		return nil, eris.New("postgres: database URL is required")
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS lead_files (
	id                TEXT PRIMARY KEY,
	uploaded_by       TEXT,
	original_filename TEXT NOT NULL,
	row_count         INTEGER NOT NULL DEFAULT 0,
	processed_count   INTEGER NOT NULL DEFAULT 0,
	skipped_count     INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'received',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
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
	assigned_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lead_assignments_lead_id ON lead_assignments(lead_id);
CREATE INDEX IF NOT EXISTS idx_lead_assignments_user_id ON lead_assignments(user_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateImportBatch(ctx context.Context, batch model.ImportBatch) (*model.ImportBatch, error) {
	batch.ID = uuid.New().String()
	batch.Status = model.BatchStatusReceived
	batch.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_files (id, uploaded_by, original_filename, row_count, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		batch.ID, batch.UploadedBy, batch.OriginalFilename, batch.RowCount, string(batch.Status), batch.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead file")
	}
	return &batch, nil
}

func (s *PostgresStore) FinalizeImportBatch(ctx context.Context, batchID string, processed, skipped int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_files SET processed_count = $1, skipped_count = $2, status = $3 WHERE id = $4`,
		processed, skipped, string(model.BatchStatusProcessed), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize lead file %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead file not found: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) GetImportBatch(ctx context.Context, batchID string) (*model.ImportBatch, error) {
	var b model.ImportBatch
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, uploaded_by, original_filename, row_count, processed_count, skipped_count, status, created_at FROM lead_files WHERE id = $1`,
		batchID,
	).Scan(&b.ID, &b.UploadedBy, &b.OriginalFilename, &b.RowCount, &b.ProcessedCount, &b.SkippedCount, &status, &b.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead file %s", batchID)
	}
	b.Status = model.BatchStatus(status)
	return &b, nil
}

var leadColumns = []string{
	"id", "source_file_id", "first_name", "last_name", "phone_e164", "email",
	"state", "address", "dob", "age", "military_branch", "beneficiary_name",
	"lead_type", "status", "created_at",
}

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{
			id, l.SourceFileID, l.FirstName, l.LastName, l.PhoneE164, l.Email,
			l.State, l.Address, l.DOB, l.Age, l.MilitaryBranch, l.BeneficiaryName,
			l.LeadType, string(l.Status), now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "leads", leadColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert leads")
	}
	return int(n), nil
}

func (s *PostgresStore) ExistingPhones(ctx context.Context, phones []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(phones) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT phone_e164 FROM leads WHERE phone_e164 = ANY($1)`,
		phones,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup existing phones")
	}
	defer rows.Close()

	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phone")
		}
		existing[phone] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate phones")
	}
	return existing, nil
}

const leadSelect = `SELECT id, source_file_id, first_name, last_name, phone_e164, email, state, address, dob, age, military_branch, beneficiary_name, lead_type, status, assigned_to, assigned_at, created_at FROM leads`

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := leadSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AssignedTo != "" {
		query += fmt.Sprintf(` AND assigned_to = $%d`, argIdx)
		args = append(args, filter.AssignedTo)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.LeadType != "" {
		query += fmt.Sprintf(` AND lead_type = $%d`, argIdx)
		args = append(args, filter.LeadType)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var status string
		if err := rows.Scan(
			&l.ID, &l.SourceFileID, &l.FirstName, &l.LastName, &l.PhoneE164, &l.Email,
			&l.State, &l.Address, &l.DOB, &l.Age, &l.MilitaryBranch, &l.BeneficiaryName,
			&l.LeadType, &status, &l.AssignedTo, &l.AssignedAt, &l.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l.Status = model.LeadStatus(status)
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate leads")
	}
	return leads, nil
}

func (s *PostgresStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	query := `SELECT count(*) FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AssignedTo != "" {
		query += fmt.Sprintf(` AND assigned_to = $%d`, argIdx)
		args = append(args, filter.AssignedTo)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.LeadType != "" {
		query += fmt.Sprintf(` AND lead_type = $%d`, argIdx)
		args = append(args, filter.LeadType)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count leads")
	}
	return n, nil
}

func (s *PostgresStore) FetchPool(ctx context.Context, filter PoolFilter) ([]string, error) {
	query := `SELECT id FROM leads WHERE assigned_to IS NULL AND status <> $1`
	args := []any{string(model.LeadStatusSold)}
	argIdx := 2

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.LeadType != "" {
		query += fmt.Sprintf(` AND lead_type = $%d`, argIdx)
		args = append(args, filter.LeadType)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch pool")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pool id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate pool")
	}
	return ids, nil
}

func (s *PostgresStore) AssignLeads(ctx context.Context, ids []string, userID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET assigned_to = $1, assigned_at = $2, status = $3 WHERE id = ANY($4)`,
		userID, at, string(model.LeadStatusAssigned), ids,
	)
	return eris.Wrap(err, "postgres: assign leads")
}

func (s *PostgresStore) UnassignLeads(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET assigned_to = NULL, assigned_at = NULL WHERE id = ANY($1)`,
		ids,
	)
	return eris.Wrap(err, "postgres: unassign leads")
}

func (s *PostgresStore) AssignedAmong(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM leads WHERE id = ANY($1) AND assigned_to IS NOT NULL`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: assigned among")
	}
	defer rows.Close()

	var assigned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assigned id")
		}
		assigned = append(assigned, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate assigned")
	}
	return assigned, nil
}

func (s *PostgresStore) LedgerLeadIDs(ctx context.Context, limit int) (map[string]struct{}, error) {
	if limit <= 0 {
		limit = 100000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT lead_id FROM lead_assignments LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: ledger lead ids")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ledger id")
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate ledger")
	}
	return ids, nil
}

func (s *PostgresStore) AppendAssignment(ctx context.Context, entry model.AssignmentEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	at := entry.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_assignments (id, lead_id, user_id, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, entry.LeadID, entry.UserID, entry.Reason, at,
	)
	return eris.Wrap(err, "postgres: append assignment")
}
