// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/okr-evaluator/internal/evalclient"
	"github.com/pdiddy/okr-evaluator/internal/gate"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

const placeholder = "—"

// formatScore renders a score with one decimal, or the placeholder when it
// is unknown or not a number.
func formatScore(score *float64) string {
	if score == nil || math.IsNaN(*score) || math.IsInf(*score, 0) {
		return placeholder
	}
	return fmt.Sprintf("%.1f", *score)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// parseKeyResultFlag splits a "definition|target value|YYYY-MM-DD" flag value.
func parseKeyResultFlag(s string) (types.KeyResultDraft, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return types.KeyResultDraft{}, fmt.Errorf("key result %q: want \"definition|target value|YYYY-MM-DD\"", s)
	}
	return types.KeyResultDraft{
		Definition:  parts[0],
		TargetValue: parts[1],
		TargetDate:  parts[2],
	}.Trimmed(), nil
}

func printEvaluation(w io.Writer, r types.EvaluationResult) {
	if r.ID != "" {
		fmt.Fprintf(w, "ID:     %s\n", r.ID)
	}
	fmt.Fprintf(w, "Score:  %s / 10\n", formatScore(r.ScorePtr()))
	printBreakdown(w, r.Breakdown)
	if r.Feedback != "" {
		fmt.Fprintf(w, "\n%s\n", r.Feedback)
	}

	fmt.Fprintln(w, "\nSMART criteria")
	if !r.CriteriaAvailable() {
		fmt.Fprintln(w, "  Detailed criteria are not available for this evaluation.")
	} else {
		for _, name := range types.CriterionNames {
			c, _ := r.Criteria.ByName(name)
			score := c.Score
			fmt.Fprintf(w, "  %-11s %5s  %s\n", name, formatScore(&score), c.Comment)
		}
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSuggestions")
		for _, s := range r.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

func printBreakdown(w io.Writer, b map[string]float64) {
	if len(b) == 0 {
		return
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := b[k]
		parts[i] = fmt.Sprintf("%s %s", k, formatScore(&v))
	}
	fmt.Fprintf(w, "        %s\n", strings.Join(parts, ", "))
}

func printGate(w io.Writer, score *float64) {
	if gate.CanAddKeyResults(score) {
		fmt.Fprintln(w, "\nKey results: unlocked")
		return
	}
	fmt.Fprintf(w, "\nKey results: locked (score must be at least %.1f)\n", gate.KeyResultThreshold)
}

func printKeyResult(w io.Writer, kr types.KeyResult) {
	fmt.Fprintf(w, "KR %s: %s\n", orPlaceholder(kr.ID), kr.Definition)
	fmt.Fprintf(w, "  target %s by %s, score %s\n", kr.TargetValue, kr.TargetDate, formatScore(kr.Score))
	printBreakdown(w, kr.Breakdown)
	if kr.Feedback != "" {
		fmt.Fprintf(w, "  %s\n", kr.Feedback)
	}
}

func printObjectiveTable(w io.Writer, objectives []types.Objective) {
	fmt.Fprintf(w, "%-12s  %-11s  %-5s  %-10s  %s\n", "ID", "Status", "Score", "Created", "Objective")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, o := range objectives {
		created := o.CreatedAt
		if len(created) > 10 {
			created = created[:10]
		}
		fmt.Fprintf(w, "%-12s  %-11s  %5s  %-10s  %s\n",
			truncate(o.ID, 12), orPlaceholder(string(o.Status)), formatScore(o.Score),
			orPlaceholder(created), truncate(o.Objective, 50))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// describe returns the message to show for err: the client's user message
// for evaluation errors, the error text otherwise.
func describe(err error) string {
	var ee *evalclient.EvalError
	if errors.As(err, &ee) {
		return ee.UserMessage()
	}
	return err.Error()
}
