package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/assign"
)

var (
	unassignIDs     []string
	unassignManager string
)

var unassignCmd = &cobra.Command{
	Use:   "unassign",
	Short: "Return leads to the unassigned pool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		dist := assign.New(st, cfg.Assign)
		res, err := dist.Unassign(ctx, assign.UnassignRequest{
			LeadIDs:       unassignIDs,
			ManagerUserID: unassignManager,
		})
		if err != nil {
			return err
		}

		zap.L().Info("unassignment complete",
			zap.Int("unassigned", res.Unassigned),
			zap.Int("previously_assigned", res.PreviouslyAssignedCount),
		)
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	},
}

func init() {
	unassignCmd.Flags().StringSliceVar(&unassignIDs, "ids", nil, "lead ids to unassign, comma separated (required)")
	unassignCmd.Flags().StringVar(&unassignManager, "manager", "", "manager recorded in the assignment ledger")
	_ = unassignCmd.MarkFlagRequired("ids")
	rootCmd.AddCommand(unassignCmd)
}
