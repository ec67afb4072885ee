package model

import "time"

// LeadStatus represents the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "new"
	LeadStatusAssigned LeadStatus = "assigned"
	LeadStatusSold     LeadStatus = "sold"
)

// Lead is the canonical persisted record produced by the importer.
// At least one of PhoneE164 or Email is always non-nil for a stored lead;
// rows failing that invariant are dropped before persistence.
type Lead struct {
	ID              string     `json:"id"`
	SourceFileID    string     `json:"source_file_id"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	PhoneE164       *string    `json:"phone_e164,omitempty"`
	Email           *string    `json:"email,omitempty"`
	State           string     `json:"state,omitempty"`
	Address         string     `json:"address,omitempty"`
	DOB             *string    `json:"dob,omitempty"` // ISO date YYYY-MM-DD
	Age             *int       `json:"age,omitempty"`
	MilitaryBranch  string     `json:"military_branch,omitempty"`
	BeneficiaryName *string    `json:"beneficiary_name,omitempty"`
	LeadType        *string    `json:"lead_type,omitempty"` // always uppercase
	Status          LeadStatus `json:"status"`
	AssignedTo      *string    `json:"assigned_to,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasContact reports whether the lead satisfies the contact completeness
// invariant (valid phone or non-empty email).
func (l Lead) HasContact() bool {
	if l.PhoneE164 != nil && *l.PhoneE164 != "" {
		return true
	}
	return l.Email != nil && *l.Email != ""
}

// BatchStatus represents the state of one import batch.
type BatchStatus string

const (
	BatchStatusReceived  BatchStatus = "received"
	BatchStatusProcessed BatchStatus = "processed"
)

// ImportBatch tracks one importer invocation. It is created when the file
// is received and finalized exactly once when processing completes.
type ImportBatch struct {
	ID               string      `json:"id"`
	UploadedBy       *string     `json:"uploaded_by,omitempty"`
	OriginalFilename string      `json:"original_filename"`
	RowCount         int         `json:"row_count"`
	ProcessedCount   int         `json:"processed_count"`
	SkippedCount     int         `json:"skipped_count"`
	Status           BatchStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Assignment reasons recorded in the ledger.
const (
	ReasonManagerAssign   = "manager-assign"
	ReasonManagerUnassign = "manager-unassign"
)

// AssignmentEntry is one append-only row in the assignment ledger. The
// ledger is the sole source of truth for whether a lead has ever been
// assigned; entries are never updated or deleted.
type AssignmentEntry struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	UserID    *string   `json:"user_id,omitempty"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// StringPtr returns a pointer to s, or nil when s is empty. Used when
// mapping optional import fields to nullable columns.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
