// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics computes dashboard aggregates over a collection of objectives.
//
// A missing score counts as zero here. That is deliberate and local to the
// aggregate: per-objective display shows an unknown score as a placeholder.
package metrics

import (
	"math"
	"unicode/utf8"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

const (
	// ChartLimit is the maximum number of points in the chart series.
	ChartLimit = 6

	// LabelLimit is the maximum label length in characters before the ellipsis.
	LabelLimit = 14

	// Ellipsis marks a truncated label.
	Ellipsis = "…"

	emptyLabel = "—"
)

// ChartPoint is one bar of the score chart.
type ChartPoint struct {
	Label string  `json:"label" yaml:"label"`
	Score float64 `json:"score" yaml:"score"`
}

// Summary is the aggregate view of a collection.
type Summary struct {
	Count        int          `json:"count" yaml:"count"`
	AverageScore float64      `json:"average_score" yaml:"average_score"`
	ChartSeries  []ChartPoint `json:"chart_series" yaml:"chart_series"`
}

// ProgressPercent maps the average score onto a 0-100 progress value.
func (s Summary) ProgressPercent() float64 {
	return math.Max(0, math.Min(100, s.AverageScore*10))
}

// Compute returns the count, the mean score rounded to one decimal, and the
// chart series for the first ChartLimit objectives in input order. It does
// not filter or sort.
func Compute(objectives []types.Objective) Summary {
	s := Summary{
		Count:       len(objectives),
		ChartSeries: []ChartPoint{},
	}
	if len(objectives) == 0 {
		return s
	}

	var total float64
	for _, o := range objectives {
		total += scoreOrZero(o.Score)
	}
	s.AverageScore = roundTenth(total / float64(len(objectives)))

	n := min(len(objectives), ChartLimit)
	for _, o := range objectives[:n] {
		s.ChartSeries = append(s.ChartSeries, ChartPoint{
			Label: Label(o.Objective),
			Score: scoreOrZero(o.Score),
		})
	}
	return s
}

// Label truncates text to LabelLimit characters and appends Ellipsis when
// anything was cut.
func Label(text string) string {
	if text == "" {
		return emptyLabel
	}
	if utf8.RuneCountInString(text) <= LabelLimit {
		return text
	}
	return string([]rune(text)[:LabelLimit]) + Ellipsis
}

func scoreOrZero(score *float64) float64 {
	if score == nil || math.IsNaN(*score) || math.IsInf(*score, 0) {
		return 0
	}
	return *score
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
