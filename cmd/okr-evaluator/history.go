// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/okr-evaluator/internal/history"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or export evaluations recorded by this client",
	Long: `History lists the objectives evaluated from this machine, newest first,
with the number of key results recorded for each. Use --export to write the
whole history, key results included, as YAML or JSON to stdout.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("export")

	cfg := loadConfig()
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled (set history.enabled to true)")
	}
	store, err := history.NewStore(cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()

	if format != "" {
		return store.Export(ctx, os.Stdout, history.Format(format))
	}

	objectives, err := store.ListObjectives(ctx, types.FilterSpec{})
	if err != nil {
		return err
	}
	if len(objectives) == 0 {
		fmt.Println("No evaluations recorded yet.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-26s  %-5s  %-3s  %-10s  %s\n", "ID", "Score", "KRs", "Evaluated", "Objective")
	for _, o := range objectives {
		krs, err := store.KeyResults(ctx, o.ID)
		if err != nil {
			return err
		}
		created := o.CreatedAt
		if len(created) > 10 {
			created = created[:10]
		}
		fmt.Fprintf(os.Stdout, "%-26s  %5s  %3d  %-10s  %s\n",
			truncate(o.ID, 26), formatScore(o.Score), len(krs), created, truncate(o.Objective, 50))
	}
	fmt.Fprintf(os.Stdout, "\n%d objectives in %s\n", len(objectives), cfg.History.Dir)
	return nil
}

func init() {
	historyCmd.Flags().String("export", "", "export format: yaml or json")
	rootCmd.AddCommand(historyCmd)
}
