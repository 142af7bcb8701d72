// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the okr-evaluator client:
// objectives and key results as returned by the evaluation service, the
// normalized evaluation result, and the filter applied to the objective list.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle status an objective may carry.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelayed    Status = "delayed"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusInProgress, StatusCompleted, StatusDelayed}

// Valid reports whether s is one of the known statuses. The empty status is
// not valid; callers treat it as "no status".
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusDelayed:
		return true
	}
	return false
}

// Objective is the "O" of an OKR as held by the evaluation service.
type Objective struct {
	// ID is assigned by the remote service and is unique.
	ID string `json:"id" yaml:"id"`

	// Objective is the submitted objective text.
	Objective string `json:"objective" yaml:"objective"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Status is empty when the service reports none.
	Status Status `json:"status,omitempty" yaml:"status,omitempty"`

	// Score is the overall evaluation score in [0,10]; nil means unknown.
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`

	Clarity *float64 `json:"clarity,omitempty" yaml:"clarity,omitempty"`
	Focus   *float64 `json:"focus,omitempty" yaml:"focus,omitempty"`
	Writing *float64 `json:"writing,omitempty" yaml:"writing,omitempty"`

	Feedback string `json:"feedback,omitempty" yaml:"feedback,omitempty"`

	// CreatedAt is the raw ISO-8601 creation timestamp as received.
	CreatedAt string `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
}

// UnmarshalJSON accepts the id as either a JSON string or number and the
// creation timestamp under either createdAt or created_at.
func (o *Objective) UnmarshalJSON(data []byte) error {
	type plain Objective
	var aux struct {
		plain
		ID          json.RawMessage `json:"id"`
		CreatedAtSC string          `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*o = Objective(aux.plain)

	id, err := decodeID(aux.ID)
	if err != nil {
		return err
	}
	o.ID = id
	if o.CreatedAt == "" {
		o.CreatedAt = aux.CreatedAtSC
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decoding objective id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decoding objective id: %w", err)
	}
	return n.String(), nil
}

// KeyResultDraft holds the user-entered fields of a key result before it is
// evaluated. A draft always names its parent objective.
type KeyResultDraft struct {
	ObjectiveID string `json:"okr_id" yaml:"okr_id"`
	Definition  string `json:"kr_definition" yaml:"kr_definition"`

	// TargetValue is free-form: "55", "20%" or "all regions".
	TargetValue string `json:"target_value" yaml:"target_value"`

	// TargetDate is a calendar date in YYYY-MM-DD form.
	TargetDate string `json:"target_date" yaml:"target_date"`
}

// Trimmed returns a copy of d with surrounding whitespace removed from every field.
func (d KeyResultDraft) Trimmed() KeyResultDraft {
	return KeyResultDraft{
		ObjectiveID: strings.TrimSpace(d.ObjectiveID),
		Definition:  strings.TrimSpace(d.Definition),
		TargetValue: strings.TrimSpace(d.TargetValue),
		TargetDate:  strings.TrimSpace(d.TargetDate),
	}
}

// KeyResult is an evaluated key result. It cannot exist without its parent
// objective ID.
type KeyResult struct {
	KeyResultDraft `yaml:",inline"`

	ID          string             `json:"id" yaml:"id"`
	Score       *float64           `json:"score,omitempty" yaml:"score,omitempty"`
	Feedback    string             `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Breakdown   map[string]float64 `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
	EvaluatedAt time.Time          `json:"evaluated_at" yaml:"evaluated_at"`
}

// CriterionScore is one SMART dimension as scored by the evaluator.
type CriterionScore struct {
	Score   float64 `json:"score" yaml:"score"`
	Comment string  `json:"comment" yaml:"comment"`
}

// Criteria is the SMART breakdown. The five dimensions are always present
// together; a partial breakdown is reported as unavailable instead.
type Criteria struct {
	Specific   CriterionScore `json:"specific" yaml:"specific"`
	Measurable CriterionScore `json:"measurable" yaml:"measurable"`
	Achievable CriterionScore `json:"achievable" yaml:"achievable"`
	Relevant   CriterionScore `json:"relevant" yaml:"relevant"`
	Timebound  CriterionScore `json:"timebound" yaml:"timebound"`
}

// CriterionNames lists the SMART keys in rubric order.
var CriterionNames = []string{"specific", "measurable", "achievable", "relevant", "timebound"}

// ByName returns the criterion for a key in CriterionNames.
func (c Criteria) ByName(name string) (CriterionScore, bool) {
	switch name {
	case "specific":
		return c.Specific, true
	case "measurable":
		return c.Measurable, true
	case "achievable":
		return c.Achievable, true
	case "relevant":
		return c.Relevant, true
	case "timebound":
		return c.Timebound, true
	}
	return CriterionScore{}, false
}

// EvaluationResult is the normalized outcome of one evaluation round trip.
type EvaluationResult struct {
	// ID is the identifier the service assigned to the evaluated objective or
	// key result. It may be empty when the service does not report one.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Score    float64 `json:"score" yaml:"score"`
	Feedback string  `json:"feedback" yaml:"feedback"`

	// Criteria is nil when the service did not return a complete SMART
	// breakdown. Nil means unavailable, which is not the same as all zeros.
	Criteria *Criteria `json:"criteria,omitempty" yaml:"criteria,omitempty"`

	// Suggestions is never nil.
	Suggestions []string `json:"suggestions" yaml:"suggestions"`

	// Breakdown holds the service's sub-scores keyed by dimension name.
	Breakdown map[string]float64 `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
}

// CriteriaAvailable reports whether the SMART breakdown was returned.
func (r EvaluationResult) CriteriaAvailable() bool {
	return r.Criteria != nil
}

// ScorePtr returns a pointer to a copy of the result's score.
func (r EvaluationResult) ScorePtr() *float64 {
	s := r.Score
	return &s
}

// FilterSpec is the combined text, status, and date constraint applied to the
// objective collection. Zero-valued fields impose no constraint.
type FilterSpec struct {
	// Query is matched case-insensitively as a substring of the objective text.
	Query string `json:"q,omitempty" yaml:"q,omitempty"`

	Status Status `json:"status,omitempty" yaml:"status,omitempty"`

	// FromDate and ToDate are inclusive calendar bounds at midnight in their
	// location. ToDate covers the whole day.
	FromDate time.Time `json:"from_date,omitempty" yaml:"from_date,omitempty"`
	ToDate   time.Time `json:"to_date,omitempty" yaml:"to_date,omitempty"`
}

// IsEmpty reports whether the filter imposes no constraint at all.
func (f FilterSpec) IsEmpty() bool {
	return strings.TrimSpace(f.Query) == "" && f.Status == "" && f.FromDate.IsZero() && f.ToDate.IsZero()
}

// DateLayout is the calendar date format used for filter bounds and KR target dates.
const DateLayout = "2006-01-02"
