package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salesops/internal/agent"
	"github.com/sells-group/salesops/internal/model"
)

var (
	discoverPrompt       string
	discoverCustomer     string
	discoverCriteriaFile string
	discoverMaxResults   int
	discoverMinFitScore  float64
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a lead discovery pipeline once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		input := &agent.Input{
			Prompt:      discoverPrompt,
			MaxResults:  discoverMaxResults,
			MinFitScore: discoverMinFitScore,
		}

		if discoverCriteriaFile != "" {
			data, err := os.ReadFile(discoverCriteriaFile)
			if err != nil {
				return eris.Wrap(err, "discover: read criteria file")
			}
			var criteria model.ICPCriteria
			if err := json.Unmarshal(data, &criteria); err != nil {
				return eris.Wrap(err, "discover: parse criteria file")
			}
			input.Criteria = &criteria
		}

		if errs := env.Discovery.Validate(ctx, input); len(errs) > 0 {
			return eris.Errorf("discover: invalid input: %v", errs)
		}

		runID := uuid.New().String()
		zap.L().Info("starting discovery run",
			zap.String("run_id", runID),
			zap.String("customer_id", discoverCustomer),
		)

		out, err := env.Discovery.Execute(ctx, discoverCustomer, runID, input)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverPrompt, "prompt", "", "natural language description of the target companies")
	discoverCmd.Flags().StringVar(&discoverCustomer, "customer", "", "customer ID to create leads under")
	discoverCmd.Flags().StringVar(&discoverCriteriaFile, "criteria-file", "", "path to a JSON file with explicit search criteria")
	discoverCmd.Flags().IntVar(&discoverMaxResults, "max-results", 0, "max search results (default from config)")
	discoverCmd.Flags().Float64Var(&discoverMinFitScore, "min-fit-score", 0, "minimum fit score to qualify (default from config)")
	_ = discoverCmd.MarkFlagRequired("customer")
	rootCmd.AddCommand(discoverCmd)
}
