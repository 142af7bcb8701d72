// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/okr-evaluator/internal/collection"
	"github.com/pdiddy/okr-evaluator/internal/filter"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List evaluated objectives with optional filters",
	Long: `List fetches the evaluated objectives and shows those matching the
filters: a case-insensitive text query, a status, and an inclusive creation
date range. The count and average score cover the listed objectives only.

When the service cannot be reached, objectives recorded in the local
history are listed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

type listOutput struct {
	Filter       types.FilterSpec  `json:"filter" yaml:"filter"`
	Count        int               `json:"count" yaml:"count"`
	Total        int               `json:"total" yaml:"total"`
	AverageScore float64           `json:"average_score" yaml:"average_score"`
	Objectives   []types.Objective `json:"objectives" yaml:"objectives"`
}

func runList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	yamlOutput, _ := cmd.Flags().GetBool("yaml")
	if jsonOutput && yamlOutput {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}

	spec, err := filterSpecFromFlags(cmd, args)
	if err != nil {
		return err
	}
	view, err := loadView(cmd, spec)
	if err != nil {
		return err
	}

	visible := view.Visible()
	summary := view.Summary()
	out := listOutput{
		Filter:       spec,
		Count:        summary.Count,
		Total:        len(view.Objectives()),
		AverageScore: summary.AverageScore,
		Objectives:   visible,
	}
	switch {
	case jsonOutput:
		return writeJSON(os.Stdout, out)
	case yamlOutput:
		return writeYAML(os.Stdout, out)
	}

	if len(visible) == 0 {
		fmt.Println("No objectives found.")
		return nil
	}
	printObjectiveTable(os.Stdout, visible)
	fmt.Fprintf(os.Stdout, "\n%d of %d objectives, average score %.1f\n", out.Count, out.Total, out.AverageScore)
	return nil
}

// --- shared helpers ---

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "case-insensitive text contained in the objective")
	cmd.Flags().String("status", "", "filter by status: in_progress, completed, delayed")
	cmd.Flags().String("from", "", "created on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "created on or before this date, whole day included (YYYY-MM-DD)")
	cmd.Flags().Bool("server-filter", false, "also send the filter to the service")
}

func filterSpecFromFlags(cmd *cobra.Command, args []string) (types.FilterSpec, error) {
	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = args[0]
	}
	status, _ := cmd.Flags().GetString("status")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	return filter.ParseSpec(query, status, from, to, time.Local)
}

// loadView builds a collection view with spec applied and refreshes it once.
func loadView(cmd *cobra.Command, spec types.FilterSpec) (*collection.View, error) {
	serverFilter, _ := cmd.Flags().GetBool("server-filter")

	cfg := loadConfig()
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	opts := []collection.Option{collection.WithLogger(logger.Named("collection"))}
	if serverFilter {
		opts = append(opts, collection.WithServerFilter())
	}
	view := collection.New(collectionFetcher(newClient(cfg), store), opts...)
	view.SetFilter(spec)

	if err := view.Refresh(cmd.Context()); err != nil {
		return nil, fmt.Errorf("listing objectives: %s", describe(err))
	}
	return view, nil
}

func init() {
	addFilterFlags(listCmd)
	listCmd.Flags().Bool("json", false, "output as JSON")
	listCmd.Flags().Bool("yaml", false, "output as YAML")

	rootCmd.AddCommand(listCmd)
}
