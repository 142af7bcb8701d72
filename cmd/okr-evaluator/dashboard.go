// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/okr-evaluator/internal/metrics"
)

const barWidth = 30

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show aggregate metrics and a score chart for evaluated objectives",
	Long: `Dashboard shows the number of evaluated objectives, their average score,
overall progress and a bar chart of the first objectives' scores. The same
filters as list narrow the set the metrics are computed over.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	spec, err := filterSpecFromFlags(cmd, nil)
	if err != nil {
		return err
	}
	view, err := loadView(cmd, spec)
	if err != nil {
		return err
	}
	printDashboard(os.Stdout, view.Summary())
	return nil
}

func printDashboard(w io.Writer, s metrics.Summary) {
	fmt.Fprintf(w, "Objectives evaluated:  %d\n", s.Count)
	fmt.Fprintf(w, "Average score:         %.1f / 10\n", s.AverageScore)
	filled := int(math.Round(s.ProgressPercent() / 100 * barWidth))
	fmt.Fprintf(w, "Progress:              [%s%s] %.0f%%\n",
		strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), s.ProgressPercent())

	if len(s.ChartSeries) == 0 {
		return
	}
	fmt.Fprintln(w, "\nScores")
	for _, p := range s.ChartSeries {
		fmt.Fprintf(w, "  %-15s |%-*s %.1f\n", p.Label, barWidth, strings.Repeat("=", barLength(p.Score)), p.Score)
	}
}

// barLength scales a score on [0,10] to the bar width. Out-of-range scores
// are drawn clamped; the printed value is left as is.
func barLength(score float64) int {
	n := int(math.Round(score / 10 * barWidth))
	return max(0, min(n, barWidth))
}

func init() {
	addFilterFlags(dashboardCmd)
	rootCmd.AddCommand(dashboardCmd)
}
