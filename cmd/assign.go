package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/assign"
)

var (
	assignUser     string
	assignCount    int
	assignState    string
	assignLeadType string
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Distribute unassigned leads to a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		dist := assign.New(st, cfg.Assign)
		res, err := dist.Distribute(ctx, assign.Request{
			AssignToUser: assignUser,
			Count:        assignCount,
			Filters: assign.Filters{
				State:    assignState,
				LeadType: assignLeadType,
			},
		})
		if err != nil {
			return err
		}

		zap.L().Info("assignment complete",
			zap.String("user", assignUser),
			zap.Int("assigned", res.Assigned),
		)
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	},
}

func init() {
	assignCmd.Flags().StringVar(&assignUser, "user", "", "user to assign leads to (required)")
	assignCmd.Flags().IntVar(&assignCount, "count", 10, "number of leads to assign")
	assignCmd.Flags().StringVar(&assignState, "state", "", "restrict to leads in this state")
	assignCmd.Flags().StringVar(&assignLeadType, "lead-type", "", "restrict to leads of this type")
	_ = assignCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(assignCmd)
}
