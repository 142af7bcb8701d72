// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/okr-evaluator/internal/gate"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one evaluated objective",
	Long: `Show fetches a single objective from the evaluation service and prints
its scores and feedback, followed by any key results recorded for it in the
local history. When the service cannot be reached the local copy is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

type showOutput struct {
	types.Objective `yaml:",inline"`
	KeyResults      []types.KeyResult `json:"key_results" yaml:"key_results"`
}

func runShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig()
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}
	ctx := cmd.Context()

	// The remote objective and the locally recorded key results are
	// independent reads.
	var (
		o        types.Objective
		fetchErr error
		krs      = []types.KeyResult{}
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		o, fetchErr = newClient(cfg).FetchObjective(egCtx, id)
		return nil
	})
	if store != nil {
		eg.Go(func() error {
			local, err := store.KeyResults(egCtx, id)
			if err != nil {
				logger.Warn("reading local key results failed", zap.Error(err))
				return nil
			}
			krs = local
			return nil
		})
	}
	_ = eg.Wait()

	if fetchErr != nil {
		if store == nil {
			return fmt.Errorf("fetching objective %s: %s", id, describe(fetchErr))
		}
		logger.Warn("objective unavailable from service, using local history", zap.String("id", id), zap.Error(fetchErr))
		local, err := store.Objective(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching objective %s: %s", id, describe(fetchErr))
		}
		o = local
	}

	out := showOutput{Objective: o, KeyResults: krs}
	if jsonOutput {
		return writeJSON(os.Stdout, out)
	}
	printObjective(os.Stdout, out.Objective)
	for _, kr := range out.KeyResults {
		fmt.Fprintln(os.Stdout)
		printKeyResult(os.Stdout, kr)
	}
	return nil
}

func printObjective(w io.Writer, o types.Objective) {
	fmt.Fprintf(w, "ID:        %s\n", o.ID)
	fmt.Fprintf(w, "Objective: %s\n", o.Objective)
	if o.Description != "" {
		fmt.Fprintf(w, "           %s\n", o.Description)
	}
	fmt.Fprintf(w, "Status:    %s\n", orPlaceholder(string(o.Status)))
	fmt.Fprintf(w, "Created:   %s\n", orPlaceholder(o.CreatedAt))
	fmt.Fprintf(w, "Score:     %s / 10 (clarity %s, focus %s, writing %s)\n",
		formatScore(o.Score), formatScore(o.Clarity), formatScore(o.Focus), formatScore(o.Writing))
	if o.Feedback != "" {
		fmt.Fprintf(w, "\n%s\n", o.Feedback)
	}
	if gate.CanAddKeyResults(o.Score) {
		fmt.Fprintln(w, "\nKey results: unlocked")
	}
}

func init() {
	showCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(showCmd)
}
