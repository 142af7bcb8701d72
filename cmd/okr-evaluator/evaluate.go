// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/okr-evaluator/internal/session"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <objective>",
	Short: "Evaluate an objective and, if it qualifies, its key results",
	Long: `Evaluate submits the objective text to the evaluation service and prints
the score, the SMART criteria breakdown and the suggestions it returns.

Key results given with --kr are evaluated afterwards, one request each, but
only when the objective scored at least 7.5. Each --kr value has the form
"definition|target value|YYYY-MM-DD".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvaluate,
}

type evaluateOutput struct {
	Objective          string                 `json:"objective"`
	Result             types.EvaluationResult `json:"result"`
	KeyResultsUnlocked bool                   `json:"key_results_unlocked"`
	KeyResults         []types.KeyResult      `json:"key_results"`
	Errors             []string               `json:"errors,omitempty"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	krFlags, _ := cmd.Flags().GetStringArray("kr")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	drafts := make([]types.KeyResultDraft, 0, len(krFlags))
	for _, f := range krFlags {
		d, err := parseKeyResultFlag(f)
		if err != nil {
			return err
		}
		drafts = append(drafts, d)
	}

	cfg := loadConfig()
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}
	s := session.New(newClient(cfg), sessionOptions(store)...)
	ctx := cmd.Context()

	text := strings.Join(args, " ")
	s.SetObjectiveText(text)
	result, err := s.SubmitObjective(ctx)
	if err != nil {
		return fmt.Errorf("evaluating objective: %s", describe(err))
	}

	out := evaluateOutput{
		Objective:          strings.TrimSpace(text),
		Result:             result,
		KeyResultsUnlocked: s.CanAddKeyResults(),
		KeyResults:         []types.KeyResult{},
	}
	if !jsonOutput {
		printEvaluation(os.Stdout, result)
		printGate(os.Stdout, result.ScorePtr())
	}

	if len(drafts) > 0 && !out.KeyResultsUnlocked {
		msg := fmt.Sprintf("skipping %d key result(s): objective score is below the threshold", len(drafts))
		out.Errors = append(out.Errors, msg)
		if !jsonOutput {
			fmt.Fprintln(os.Stdout, msg)
		}
		drafts = nil
	}

	for _, d := range drafts {
		s.SetKeyResultDraft(d)
		kr, err := s.SubmitKeyResult(ctx)
		if err != nil {
			msg := fmt.Sprintf("key result %q: %s", d.Definition, describe(err))
			out.Errors = append(out.Errors, msg)
			if !jsonOutput {
				fmt.Fprintln(os.Stderr, msg)
			}
			s.DismissKeyResult()
			continue
		}
		out.KeyResults = append(out.KeyResults, kr)
		if !jsonOutput {
			fmt.Fprintln(os.Stdout)
			printKeyResult(os.Stdout, kr)
		}
	}

	if jsonOutput {
		if err := writeJSON(os.Stdout, out); err != nil {
			return err
		}
	}
	if failed := len(drafts) - len(out.KeyResults); failed > 0 {
		return fmt.Errorf("%d key result(s) failed evaluation", failed)
	}
	return nil
}

func addEvaluateFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("kr", nil, `key result to evaluate after the objective: "definition|target value|YYYY-MM-DD" (repeatable)`)
	cmd.Flags().Bool("json", false, "output the evaluation as JSON")
}

func init() {
	addEvaluateFlags(evaluateCmd)
	rootCmd.AddCommand(evaluateCmd)
}
