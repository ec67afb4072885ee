package store

import (
	"context"
	"time"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
)

// PoolFilter specifies criteria for fetching the distribution candidate
// pool: leads with no current assignee and a non-terminal status.
type PoolFilter struct {
	State    string `json:"state,omitempty"`
	LeadType string `json:"lead_type,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// LeadFilter specifies criteria for listing or counting leads.
type LeadFilter struct {
	Status     model.LeadStatus `json:"status,omitempty"`
	AssignedTo string           `json:"assigned_to,omitempty"`
	State      string           `json:"state,omitempty"`
	LeadType   string           `json:"lead_type,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// Store defines the persistence interface shared by the importer and the
// distribution engine. Batch-sized inputs (InsertLeads, ExistingPhones)
// are expected to arrive pre-chunked by the caller; each call maps to a
// bounded backend request.
type Store interface {
	// Import batches
	CreateImportBatch(ctx context.Context, batch model.ImportBatch) (*model.ImportBatch, error)
	FinalizeImportBatch(ctx context.Context, batchID string, processed, skipped int) error
	GetImportBatch(ctx context.Context, batchID string) (*model.ImportBatch, error)

	// Leads
	InsertLeads(ctx context.Context, leads []model.Lead) (int, error)
	ExistingPhones(ctx context.Context, phones []string) (map[string]struct{}, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, filter LeadFilter) (int, error)

	// Distribution
	FetchPool(ctx context.Context, filter PoolFilter) ([]string, error)
	AssignLeads(ctx context.Context, ids []string, userID string, at time.Time) error
	UnassignLeads(ctx context.Context, ids []string) error
	AssignedAmong(ctx context.Context, ids []string) ([]string, error)

	// Assignment ledger (append-only)
	LedgerLeadIDs(ctx context.Context, limit int) (map[string]struct{}, error)
	AppendAssignment(ctx context.Context, entry model.AssignmentEntry) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
