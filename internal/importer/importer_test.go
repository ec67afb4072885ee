package importer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/config"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestImporter(st store.Store) *Importer {
	imp := New(st, config.ImportConfig{InsertBatchSize: 500, LookupBatchSize: 1000})
	imp.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }
	return imp
}

func TestImport_Basic(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	csv := `First Name,Last Name,Phone,Email,State,Age,DOB,Lead Type
John,Doe,(555) 123-4567,John@Acme.COM,TX,83,05/12/1942,
Jane,Smith,,jane@acme.com,CA,,1990-01-01,Mortgage Protection
`
	res, err := imp.Import(ctx, Request{CSVText: csv, OriginalFilename: "leads.csv", UserID: "mgr-1", DefaultLeadType: "veteran"})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Skipped)
	assert.NotEmpty(t, res.FileID)

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	byFirst := map[string]model.Lead{}
	for _, l := range leads {
		byFirst[l.FirstName] = l
	}

	john := byFirst["John"]
	require.NotNil(t, john.PhoneE164)
	assert.Equal(t, "+15551234567", *john.PhoneE164)
	require.NotNil(t, john.Email)
	assert.Equal(t, "john@acme.com", *john.Email)
	require.NotNil(t, john.DOB)
	assert.Equal(t, "1942-05-12", *john.DOB)
	require.NotNil(t, john.Age)
	assert.Equal(t, 83, *john.Age)
	require.NotNil(t, john.LeadType)
	assert.Equal(t, "VETERAN", *john.LeadType) // default applied, uppercased
	assert.Equal(t, model.LeadStatusNew, john.Status)
	assert.Equal(t, res.FileID, john.SourceFileID)

	jane := byFirst["Jane"]
	assert.Nil(t, jane.PhoneE164) // email-only is allowed
	require.NotNil(t, jane.LeadType)
	assert.Equal(t, "MORTGAGE PROTECTION", *jane.LeadType) // row value wins
	require.NotNil(t, jane.Age)
	assert.Equal(t, 36, *jane.Age) // derived from DOB

	batch, err := st.GetImportBatch(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusProcessed, batch.Status)
	assert.Equal(t, 2, batch.RowCount)
	assert.Equal(t, 2, batch.ProcessedCount)
	assert.Equal(t, 0, batch.SkippedCount)
	require.NotNil(t, batch.UploadedBy)
	assert.Equal(t, "mgr-1", *batch.UploadedBy)
}

func TestImport_MissingContactDropped(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	csv := `First Name,Phone,Email
John,5551234567,
NoContact,,
`
	res, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Breakdown.MissingContact)

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].HasContact())
}

func TestImport_FileDuplicates_FirstWins(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	// second row has more complete fields but shares the phone; the
	// first occurrence is kept regardless
	csv := `First Name,Last Name,Phone,Email
First,,5551234567,
Second,Richer,(555) 123-4567,second@acme.com
Third,,5559876543,
`
	res, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Breakdown.FileDuplicatesByPhone)

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	for _, l := range leads {
		assert.NotEqual(t, "Second", l.FirstName)
	}
}

func TestImport_ExistingDuplicatesSkipped(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	_, err := imp.Import(ctx, Request{CSVText: "First Name,Phone\nOld,5551234567\n"})
	require.NoError(t, err)

	res, err := imp.Import(ctx, Request{CSVText: "First Name,Phone\nNew,(555) 123-4567\nFresh,5550001111\n"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Breakdown.ExistingDuplicatesByPhone)

	n, err := st.CountLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImport_EmailOnlyNeverDeduplicated(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	csv := `First Name,Email
A,same@acme.com
B,same@acme.com
`
	res, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Skipped)
}

func TestImport_FallbackPhoneFromUnmappedColumn(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	// phone lives under an unknown header; the row scan recovers it
	csv := `First Name,Contact Info
John,(555) 123-4567
`
	res, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	require.NotNil(t, leads[0].PhoneE164)
	assert.Equal(t, "+15551234567", *leads[0].PhoneE164)
}

func TestImport_DuplicateColumnsConcatenated(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	csv := `First Name,Phone,Address,Address 1
John,5551234567,12 Main St,Apt 4B
`
	_, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "12 Main St Apt 4B", leads[0].Address)
}

func TestImport_BeneficiaryDisambiguation(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	csv := `First Name,Phone,Beneficiary,Beneficiary Name
John,5551234567,Spouse,Mary Smith
Solo,5559876543,Spouse,
`
	_, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	byFirst := map[string]model.Lead{}
	for _, l := range leads {
		byFirst[l.FirstName] = l
	}
	require.NotNil(t, byFirst["John"].BeneficiaryName)
	assert.Equal(t, "Mary Smith", *byFirst["John"].BeneficiaryName)
	// a single value is trusted verbatim, label or not
	require.NotNil(t, byFirst["Solo"].BeneficiaryName)
	assert.Equal(t, "Spouse", *byFirst["Solo"].BeneficiaryName)
}

func TestImport_RowsInput(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)
	ctx := context.Background()

	rows := [][]string{
		{"First Name", "Phone"},
		{"John", "5551234567"},
	}
	res, err := imp.Import(ctx, Request{Rows: rows, OriginalFilename: "leads.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	batch, err := st.GetImportBatch(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, "leads.xlsx", batch.OriginalFilename)
}

func TestImport_NoInput(t *testing.T) {
	st := newTestStore(t)
	imp := newTestImporter(st)

	_, err := imp.Import(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv_text is required")
}

func TestImport_SmallBatchSizes(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, config.ImportConfig{InsertBatchSize: 1, LookupBatchSize: 1})
	ctx := context.Background()

	csv := `First Name,Phone
A,5550000001
B,5550000002
C,5550000003
`
	res, err := imp.Import(ctx, Request{CSVText: csv})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)

	n, err := st.CountLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
