// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/internal/evalclient"
	"github.com/pdiddy/okr-evaluator/internal/gate"
	"github.com/pdiddy/okr-evaluator/internal/session"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

var krCmd = &cobra.Command{
	Use:   "kr",
	Short: "Evaluate a key result for an already evaluated objective",
	Long: `Kr loads the parent objective from the evaluation service and, when its
score unlocks key results, submits one key result for evaluation.`,
	RunE: runKeyResult,
}

func runKeyResult(cmd *cobra.Command, args []string) error {
	objectiveID, _ := cmd.Flags().GetString("objective-id")
	definition, _ := cmd.Flags().GetString("definition")
	targetValue, _ := cmd.Flags().GetString("target-value")
	targetDate, _ := cmd.Flags().GetString("target-date")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	draft := types.KeyResultDraft{
		ObjectiveID: objectiveID,
		Definition:  definition,
		TargetValue: targetValue,
		TargetDate:  targetDate,
	}
	if err := evalclient.ValidateKeyResult(draft); err != nil {
		return errors.New(describe(err))
	}

	cfg := loadConfig()
	client := newClient(cfg)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}
	ctx := cmd.Context()

	parent, err := client.FetchObjective(ctx, objectiveID)
	if err != nil {
		return fmt.Errorf("loading objective %s: %s", objectiveID, describe(err))
	}

	if store != nil {
		if err := store.RememberObjective(ctx, parent); err != nil {
			logger.Warn("recording parent objective failed", zap.Error(err))
		}
	}

	s := session.New(client, sessionOptions(store)...)
	s.Load(parent)
	s.SetKeyResultDraft(draft)
	kr, err := s.SubmitKeyResult(ctx)
	switch {
	case errors.Is(err, session.ErrKeyResultsLocked):
		return fmt.Errorf("objective %s scored %s: key results need at least %.1f",
			objectiveID, formatScore(parent.Score), gate.KeyResultThreshold)
	case err != nil:
		return fmt.Errorf("evaluating key result: %s", describe(err))
	}

	if jsonOutput {
		return writeJSON(os.Stdout, kr)
	}
	printKeyResult(os.Stdout, kr)
	return nil
}

func init() {
	krCmd.Flags().String("objective-id", "", "ID of the parent objective (required)")
	krCmd.Flags().String("definition", "", "key result definition (required)")
	krCmd.Flags().String("target-value", "", `target value, e.g. "55", "20%" or "all regions" (required)`)
	krCmd.Flags().String("target-date", "", "target date, YYYY-MM-DD (required)")
	krCmd.Flags().Bool("json", false, "output the key result as JSON")
	_ = krCmd.MarkFlagRequired("objective-id")
	_ = krCmd.MarkFlagRequired("definition")
	_ = krCmd.MarkFlagRequired("target-value")
	_ = krCmd.MarkFlagRequired("target-date")

	rootCmd.AddCommand(krCmd)
}
