package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_NewRequiresURL(t *testing.T) {
	_, err := NewPostgres(context.Background(), "", nil)
	require.Error(t, err)
}

func TestPostgres_CreateImportBatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO lead_files`).
		WithArgs(pgxmock.AnyArg(), model.StringPtr("mgr-1"), "leads.csv", 10, "received", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	batch, err := s.CreateImportBatch(context.Background(), model.ImportBatch{
		UploadedBy:       model.StringPtr("mgr-1"),
		OriginalFilename: "leads.csv",
		RowCount:         10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, model.BatchStatusReceived, batch.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinalizeImportBatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE lead_files SET processed_count`).
		WithArgs(8, 2, "processed", "batch-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FinalizeImportBatch(context.Background(), "batch-1", 8, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinalizeImportBatch_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE lead_files SET processed_count`).
		WithArgs(8, 2, "processed", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinalizeImportBatch(context.Background(), "missing", 8, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetImportBatch(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, uploaded_by, original_filename.*FROM lead_files WHERE id`).
		WithArgs("batch-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "uploaded_by", "original_filename", "row_count",
			"processed_count", "skipped_count", "status", "created_at",
		}).AddRow("batch-1", model.StringPtr("mgr-1"), "leads.csv", 10, 8, 2, "processed", now))

	batch, err := s.GetImportBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusProcessed, batch.Status)
	assert.Equal(t, 8, batch.ProcessedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertLeads_Copy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"leads"}, leadColumns).WillReturnResult(2)

	n, err := s.InsertLeads(context.Background(), []model.Lead{
		{FirstName: "A", PhoneE164: model.StringPtr("+15550000001"), Status: model.LeadStatusNew},
		{FirstName: "B", Email: model.StringPtr("b@acme.com"), Status: model.LeadStatusNew},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertLeads_Empty(t *testing.T) {
	s, _ := newMockStore(t)
	n, err := s.InsertLeads(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgres_ExistingPhones(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT phone_e164 FROM leads WHERE phone_e164 = ANY`).
		WithArgs([]string{"+15550000001", "+15550000002"}).
		WillReturnRows(pgxmock.NewRows([]string{"phone_e164"}).AddRow("+15550000001"))

	found, err := s.ExistingPhones(context.Background(), []string{"+15550000001", "+15550000002"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	_, ok := found["+15550000001"]
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountLeads_Filters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM leads WHERE true AND status = \$1 AND state = \$2`).
		WithArgs("new", "TX").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountLeads(context.Background(), LeadFilter{Status: model.LeadStatusNew, State: "TX"})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FetchPool(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM leads WHERE assigned_to IS NULL AND status <> \$1 AND state = \$2 LIMIT \$3`).
		WithArgs("sold", "TX", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("lead-1").AddRow("lead-2"))

	ids, err := s.FetchPool(context.Background(), PoolFilter{State: "TX", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead-1", "lead-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AssignLeads(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE leads SET assigned_to = \$1, assigned_at = \$2, status = \$3 WHERE id = ANY`).
		WithArgs("agent-1", at, "assigned", []string{"lead-1", "lead-2"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, s.AssignLeads(context.Background(), []string{"lead-1", "lead-2"}, "agent-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UnassignLeads(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leads SET assigned_to = NULL, assigned_at = NULL WHERE id = ANY`).
		WithArgs([]string{"lead-1"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UnassignLeads(context.Background(), []string{"lead-1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AssignedAmong(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM leads WHERE id = ANY\(\$1\) AND assigned_to IS NOT NULL`).
		WithArgs([]string{"lead-1", "lead-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("lead-2"))

	assigned, err := s.AssignedAmong(context.Background(), []string{"lead-1", "lead-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead-2"}, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LedgerLeadIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT lead_id FROM lead_assignments LIMIT \$1`).
		WithArgs(100000).
		WillReturnRows(pgxmock.NewRows([]string{"lead_id"}).AddRow("lead-1").AddRow("lead-1").AddRow("lead-2"))

	ids, err := s.LedgerLeadIDs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendAssignment(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO lead_assignments`).
		WithArgs(pgxmock.AnyArg(), "lead-1", model.StringPtr("agent-1"), "manager-assign", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AppendAssignment(context.Background(), model.AssignmentEntry{
		LeadID: "lead-1",
		UserID: model.StringPtr("agent-1"),
		Reason: model.ReasonManagerAssign,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}
