package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/store"
)

var (
	leadsStatus     string
	leadsAssignedTo string
	leadsState      string
	leadsLeadType   string
	leadsLimit      int
	leadsOffset     int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads matching filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.LeadFilter{
			Status:     model.LeadStatus(leadsStatus),
			AssignedTo: leadsAssignedTo,
			State:      leadsState,
			LeadType:   leadsLeadType,
			Limit:      leadsLimit,
			Offset:     leadsOffset,
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return err
		}
		total, err := st.CountLeads(ctx, filter)
		if err != nil {
			return err
		}

		if leads == nil {
			leads = []model.Lead{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"leads": leads,
			"total": total,
		})
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status (new, assigned, sold)")
	leadsCmd.Flags().StringVar(&leadsAssignedTo, "assigned-to", "", "filter by assigned user")
	leadsCmd.Flags().StringVar(&leadsState, "state", "", "filter by state")
	leadsCmd.Flags().StringVar(&leadsLeadType, "lead-type", "", "filter by lead type")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 100, "maximum rows to return")
	leadsCmd.Flags().IntVar(&leadsOffset, "offset", 0, "rows to skip")
	rootCmd.AddCommand(leadsCmd)
}
