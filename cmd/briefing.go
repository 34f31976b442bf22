package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var (
	briefingCustomer string
	briefingUser     string
	briefingLimit    int
	briefingRefresh  bool
)

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Print the daily briefing for a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if briefingRefresh {
			if _, err := env.Recommendations.RefreshBriefing(ctx, briefingCustomer); err != nil {
				return err
			}
		}

		briefing, err := env.Recommendations.GetBriefing(ctx, briefingCustomer, briefingUser, briefingLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(briefing)
	},
}

func init() {
	briefingCmd.Flags().StringVar(&briefingCustomer, "customer", "", "customer ID")
	briefingCmd.Flags().StringVar(&briefingUser, "user", "", "user ID for feedback-aware filtering")
	briefingCmd.Flags().IntVar(&briefingLimit, "limit", 0, "max cards to return")
	briefingCmd.Flags().BoolVar(&briefingRefresh, "refresh", false, "regenerate recommendations from active signals first")
	_ = briefingCmd.MarkFlagRequired("customer")
	rootCmd.AddCommand(briefingCmd)
}
