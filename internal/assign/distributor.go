// Package assign redistributes unassigned leads across a sales team,
// preferring leads no colleague has ever worked.
package assign

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/config"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/store"
)

// Filters narrows the candidate pool to exact matches.
type Filters struct {
	State    string `json:"state,omitempty"`
	LeadType string `json:"lead_type,omitempty"`
}

// Request asks for Count leads to be assigned to AssignToUser.
type Request struct {
	AssignToUser string  `json:"assign_to_user"`
	Count        int     `json:"count"`
	Filters      Filters `json:"filters"`
}

// PickedFrom reports how many selected leads came from each partition.
type PickedFrom struct {
	NeverAssigned      int `json:"never_assigned"`
	PreviouslyAssigned int `json:"previously_assigned"`
}

// Result reports the outcome of one distribution call.
type Result struct {
	Assigned   int        `json:"assigned"`
	Requested  int        `json:"requested"`
	PickedFrom PickedFrom `json:"picked_from"`
	Filters    Filters    `json:"filters"`
	IDs        []string   `json:"ids,omitempty"`
}

// UnassignRequest clears the assignment of the given leads. ManagerUserID
// is recorded in the ledger for audit when present.
type UnassignRequest struct {
	LeadIDs       []string `json:"lead_ids"`
	ManagerUserID string   `json:"manager_user_id,omitempty"`
}

// UnassignResult reports the outcome of an unassignment.
type UnassignResult struct {
	OK                      bool     `json:"ok"`
	IDs                     []string `json:"ids"`
	Unassigned              int      `json:"unassigned"`
	PreviouslyAssignedCount int      `json:"previously_assigned_count"`
}

// Distributor is a stateless per-request engine over the lead store.
//
// The pool-fetch -> partition -> update sequence is not atomic: two
// concurrent calls with overlapping filters can select overlapping
// leads. Acceptable for the target usage (infrequent manual manager
// actions); do not tighten silently.
type Distributor struct {
	store      store.Store
	poolCap    int
	multiplier int
	ledgerCap  int
	now        func() time.Time
	shuffle    func([]string)
}

// New creates a Distributor with limits from config.
func New(st store.Store, cfg config.AssignConfig) *Distributor {
	poolCap := cfg.PoolCap
	if poolCap <= 0 {
		poolCap = 1000
	}
	multiplier := cfg.PoolMultiplier
	if multiplier <= 0 {
		multiplier = 10
	}
	ledgerCap := cfg.LedgerScanLimit
	if ledgerCap <= 0 {
		ledgerCap = 100000
	}
	return &Distributor{
		store:      st,
		poolCap:    poolCap,
		multiplier: multiplier,
		ledgerCap:  ledgerCap,
		now:        time.Now,
		shuffle: func(ids []string) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
}

// Distribute selects up to req.Count unassigned leads and assigns them to
// req.AssignToUser, drawing from never-assigned leads first and topping
// up from previously-assigned ones. Ledger appends are best-effort and
// never fail the call; the bulk assignment update is already committed
// by the time they run.
func (d *Distributor) Distribute(ctx context.Context, req Request) (*Result, error) {
	if req.AssignToUser == "" {
		return nil, eris.New("assign: assign_to_user is required")
	}
	want := req.Count
	if want < 1 {
		want = 1
	}

	// Fetch a slab large enough to shuffle meaningfully, bounded to keep
	// the request cheap.
	fetchLimit := min(d.poolCap, want*d.multiplier)
	pool, err := d.store.FetchPool(ctx, store.PoolFilter{
		State:    req.Filters.State,
		LeadType: req.Filters.LeadType,
		Limit:    fetchLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "assign: pool fetch failed")
	}

	result := &Result{Requested: want, Filters: req.Filters}
	if len(pool) == 0 {
		return result, nil
	}

	everAssigned, err := d.store.LedgerLeadIDs(ctx, d.ledgerCap)
	if err != nil {
		return nil, eris.Wrap(err, "assign: history fetch failed")
	}

	var neverAssigned, previouslyAssigned []string
	for _, id := range pool {
		if _, ok := everAssigned[id]; ok {
			previouslyAssigned = append(previouslyAssigned, id)
		} else {
			neverAssigned = append(neverAssigned, id)
		}
	}

	// Shuffle the partitions independently so ordering bias from one
	// group cannot crowd out the other.
	d.shuffle(neverAssigned)
	d.shuffle(previouslyAssigned)

	chosen := make([]string, 0, want)
	for _, id := range neverAssigned {
		if len(chosen) >= want {
			break
		}
		chosen = append(chosen, id)
	}
	for _, id := range previouslyAssigned {
		if len(chosen) >= want {
			break
		}
		chosen = append(chosen, id)
	}

	if len(chosen) == 0 {
		return result, nil
	}

	if err := d.store.AssignLeads(ctx, chosen, req.AssignToUser, d.now().UTC()); err != nil {
		return nil, eris.Wrap(err, "assign: update failed")
	}

	d.appendLedger(ctx, chosen, model.StringPtr(req.AssignToUser), model.ReasonManagerAssign)

	fromNever := min(len(neverAssigned), want)
	result.Assigned = len(chosen)
	result.IDs = chosen
	result.PickedFrom = PickedFrom{
		NeverAssigned:      fromNever,
		PreviouslyAssigned: max(0, len(chosen)-fromNever),
	}

	zap.L().Info("leads distributed",
		zap.String("user", req.AssignToUser),
		zap.Int("assigned", result.Assigned),
		zap.Int("requested", want),
		zap.Int("never_assigned", result.PickedFrom.NeverAssigned),
		zap.Int("previously_assigned", result.PickedFrom.PreviouslyAssigned),
	)
	return result, nil
}

// Unassign clears assigned_to/assigned_at on the given leads without
// touching status, and reports how many were actually assigned before.
func (d *Distributor) Unassign(ctx context.Context, req UnassignRequest) (*UnassignResult, error) {
	ids := make([]string, 0, len(req.LeadIDs))
	for _, id := range req.LeadIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, eris.New("assign: lead_id or lead_ids required")
	}

	before, err := d.store.AssignedAmong(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "assign: select failed")
	}

	if err := d.store.UnassignLeads(ctx, ids); err != nil {
		return nil, eris.Wrap(err, "assign: update failed")
	}

	d.appendLedger(ctx, ids, model.StringPtr(req.ManagerUserID), model.ReasonManagerUnassign)

	zap.L().Info("leads unassigned",
		zap.Int("requested", len(ids)),
		zap.Int("previously_assigned", len(before)),
	)
	return &UnassignResult{
		OK:                      true,
		IDs:                     ids,
		Unassigned:              len(ids),
		PreviouslyAssignedCount: len(before),
	}, nil
}

// appendLedger fires one ledger append per lead concurrently. Failures
// are logged and swallowed: a missing entry only degrades future
// fairness accounting, never the assignment itself.
func (d *Distributor) appendLedger(ctx context.Context, ids []string, userID *string, reason string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			if err := d.store.AppendAssignment(ctx, model.AssignmentEntry{
				LeadID: id,
				UserID: userID,
				Reason: reason,
			}); err != nil {
				zap.L().Warn("ledger append failed",
					zap.String("lead_id", id),
					zap.String("reason", reason),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}
