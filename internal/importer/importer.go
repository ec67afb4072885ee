// Package importer turns heterogeneous spreadsheet exports of sales
// leads into canonical records: header alias resolution, contact
// validation, date/age reconciliation, and two-pass phone deduplication
// before persistence.
package importer

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/config"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/store"
)

// Request describes one import invocation. Exactly one of CSVText or
// Rows must be set; Rows carries pre-tokenized cells (the XLSX path)
// with the header row first.
type Request struct {
	CSVText          string
	Rows             [][]string
	OriginalFilename string
	UserID           string
	DefaultLeadType  string
}

// Breakdown itemizes skipped rows by cause.
type Breakdown struct {
	MissingContact            int `json:"missing_contact"`
	FileDuplicatesByPhone     int `json:"file_duplicates_by_phone"`
	ExistingDuplicatesByPhone int `json:"existing_duplicates_by_phone"`
}

// Result reports the outcome of one import.
type Result struct {
	OK        bool      `json:"ok"`
	FileID    string    `json:"file_id"`
	Inserted  int       `json:"inserted"`
	Skipped   int       `json:"skipped"`
	Breakdown Breakdown `json:"breakdown"`
}

// Importer is a stateless per-request pipeline over the lead store.
type Importer struct {
	store      store.Store
	insertSize int
	lookupSize int
	now        func() time.Time
}

// New creates an Importer. Batch sizes come from config and exist to
// respect backend request-size limits.
func New(st store.Store, cfg config.ImportConfig) *Importer {
	insertSize := cfg.InsertBatchSize
	if insertSize <= 0 {
		insertSize = 500
	}
	lookupSize := cfg.LookupBatchSize
	if lookupSize <= 0 {
		lookupSize = 1000
	}
	return &Importer{
		store:      st,
		insertSize: insertSize,
		lookupSize: lookupSize,
		now:        time.Now,
	}
}

// Import runs the full pipeline: tokenize, stage, dedup, persist,
// finalize. Store mutations committed before a failing step stay
// committed; there is no compensating rollback.
func (imp *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	headers, rows, err := imp.tokenize(req)
	if err != nil {
		return nil, err
	}

	filename := req.OriginalFilename
	if filename == "" {
		filename = "inline.csv"
	}

	batch, err := imp.store.CreateImportBatch(ctx, model.ImportBatch{
		UploadedBy:       model.StringPtr(req.UserID),
		OriginalFilename: filename,
		RowCount:         len(rows),
	})
	if err != nil {
		return nil, eris.Wrap(err, "importer: create batch")
	}

	mapped := MapHeaders(headers)

	var breakdown Breakdown
	staged := make([]model.Lead, 0, len(rows))
	for _, row := range rows {
		lead, ok := imp.stageRow(mapped, row, batch.ID, req.DefaultLeadType)
		if !ok {
			breakdown.MissingContact++
			continue
		}
		staged = append(staged, lead)
	}

	// Pass 1: within-file dedup by phone; first occurrence wins.
	// Phoneless (email-only) records always pass.
	seen := make(map[string]struct{})
	unique := staged[:0]
	for _, lead := range staged {
		if lead.PhoneE164 == nil {
			unique = append(unique, lead)
			continue
		}
		if _, dup := seen[*lead.PhoneE164]; dup {
			breakdown.FileDuplicatesByPhone++
			continue
		}
		seen[*lead.PhoneE164] = struct{}{}
		unique = append(unique, lead)
	}

	// Pass 2: dedup against the store, looking up distinct phones in
	// bounded batches.
	phones := make([]string, 0, len(seen))
	for p := range seen {
		phones = append(phones, p)
	}
	existing := make(map[string]struct{})
	for chunk := range slices.Chunk(phones, imp.lookupSize) {
		found, err := imp.store.ExistingPhones(ctx, chunk)
		if err != nil {
			return nil, eris.Wrap(err, "importer: lookup existing phones")
		}
		for p := range found {
			existing[p] = struct{}{}
		}
	}

	ready := unique[:0:0]
	for _, lead := range unique {
		if lead.PhoneE164 != nil {
			if _, dup := existing[*lead.PhoneE164]; dup {
				breakdown.ExistingDuplicatesByPhone++
				continue
			}
		}
		ready = append(ready, lead)
	}

	inserted := 0
	for chunk := range slices.Chunk(ready, imp.insertSize) {
		n, err := imp.store.InsertLeads(ctx, chunk)
		if err != nil {
			return nil, eris.Wrap(err, "importer: insert leads")
		}
		inserted += n
	}

	skipped := breakdown.MissingContact + breakdown.FileDuplicatesByPhone + breakdown.ExistingDuplicatesByPhone
	if err := imp.store.FinalizeImportBatch(ctx, batch.ID, inserted, skipped); err != nil {
		return nil, eris.Wrap(err, "importer: finalize batch")
	}

	zap.L().Info("import complete",
		zap.String("file_id", batch.ID),
		zap.String("filename", filename),
		zap.Int("rows", len(rows)),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
	)

	return &Result{
		OK:        true,
		FileID:    batch.ID,
		Inserted:  inserted,
		Skipped:   skipped,
		Breakdown: breakdown,
	}, nil
}

func (imp *Importer) tokenize(req Request) ([]string, [][]string, error) {
	if len(req.Rows) > 0 {
		headers := make([]string, len(req.Rows[0]))
		for i, h := range req.Rows[0] {
			headers[i] = strings.TrimSpace(h)
		}
		return headers, req.Rows[1:], nil
	}
	if req.CSVText == "" {
		return nil, nil, eris.New("importer: csv_text is required")
	}
	return ParseCSV(req.CSVText)
}

// stageRow maps one raw row to a canonical lead. ok is false when the
// row has neither a valid phone nor an email and must be skipped.
func (imp *Importer) stageRow(mapped []*Field, row []string, batchID, defaultLeadType string) (model.Lead, bool) {
	values := make(map[string]string)
	var beneficiaryRaw []string

	for i, field := range mapped {
		if field == nil || i >= len(row) {
			continue
		}
		trimmed := strings.TrimSpace(row[i])
		if trimmed == "" {
			continue // keep blanks blank
		}
		switch field.Strategy {
		case Collect:
			beneficiaryRaw = append(beneficiaryRaw, trimmed)
		default:
			if prev := values[field.Name]; prev != "" {
				values[field.Name] = prev + " " + trimmed
			} else {
				values[field.Name] = trimmed
			}
		}
	}

	// Phone: mapped column first, then a scan over every raw cell.
	phone := NormalizePhone(values["phone"])
	if phone == "" {
		phone = FallbackPhone(row)
	}
	email := NormalizeEmail(values["email"])
	if phone == "" && email == "" {
		return model.Lead{}, false
	}

	dob := ParseDOB(values["dob"])
	age := ResolveAge(values["age"], dob, imp.now())

	leadType := strings.TrimSpace(values["lead_type"])
	if leadType == "" {
		leadType = strings.TrimSpace(defaultLeadType)
	}
	if leadType != "" {
		leadType = strings.ToUpper(leadType)
	}

	return model.Lead{
		SourceFileID:    batchID,
		FirstName:       values["first_name"],
		LastName:        values["last_name"],
		PhoneE164:       model.StringPtr(phone),
		Email:           model.StringPtr(email),
		State:           values["state"],
		Address:         values["address"],
		DOB:             model.StringPtr(dob),
		Age:             age,
		MilitaryBranch:  values["military_branch"],
		BeneficiaryName: model.StringPtr(PickBeneficiaryName(beneficiaryRaw)),
		LeadType:        model.StringPtr(leadType),
		Status:          model.LeadStatusNew,
	}, true
}
