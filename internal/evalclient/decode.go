// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// evaluationResponse is the wire shape of both evaluate endpoints. Optional
// fields stay raw so a wrong type degrades to "unavailable" rather than
// failing the whole decode.
type evaluationResponse struct {
	Score       *float64        `json:"score"`
	Feedback    json.RawMessage `json:"feedback"`
	Criteria    json.RawMessage `json:"criteria"`
	Suggestions json.RawMessage `json:"suggestions"`
	Breakdown   json.RawMessage `json:"breakdown"`

	OKRID       json.RawMessage `json:"okr_id"`
	KeyResultID json.RawMessage `json:"key_result_id"`
	ID          json.RawMessage `json:"id"`
}

// decodeEvaluation turns a 2xx body into a normalized result. Only a body
// that is not a JSON object, or one without a finite numeric score, is an
// error.
func decodeEvaluation(raw []byte) (types.EvaluationResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return types.EvaluationResult{}, fmt.Errorf("expected a JSON object")
	}

	var wire evaluationResponse
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return types.EvaluationResult{}, fmt.Errorf("parsing response: %w", err)
	}
	if wire.Score == nil || math.IsNaN(*wire.Score) || math.IsInf(*wire.Score, 0) {
		return types.EvaluationResult{}, errMissingScore
	}

	id := rawID(wire.OKRID)
	if id == "" {
		id = rawID(wire.KeyResultID)
	}
	if id == "" {
		id = rawID(wire.ID)
	}

	return types.EvaluationResult{
		ID:          id,
		Score:       *wire.Score,
		Feedback:    rawString(wire.Feedback),
		Criteria:    normalizeCriteria(wire.Criteria),
		Suggestions: normalizeSuggestions(wire.Suggestions),
		Breakdown:   normalizeBreakdown(wire.Breakdown),
	}, nil
}

// normalizeCriteria returns nil unless all five SMART keys are present with
// a numeric score.
func normalizeCriteria(raw json.RawMessage) *types.Criteria {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil
	}

	scores := make(map[string]types.CriterionScore, len(types.CriterionNames))
	for _, name := range types.CriterionNames {
		entry, ok := obj[name]
		if !ok {
			return nil
		}
		var wire struct {
			Score   *float64        `json:"score"`
			Comment json.RawMessage `json:"comment"`
		}
		if err := json.Unmarshal(entry, &wire); err != nil || wire.Score == nil {
			return nil
		}
		scores[name] = types.CriterionScore{Score: *wire.Score, Comment: rawString(wire.Comment)}
	}

	return &types.Criteria{
		Specific:   scores["specific"],
		Measurable: scores["measurable"],
		Achievable: scores["achievable"],
		Relevant:   scores["relevant"],
		Timebound:  scores["timebound"],
	}
}

// normalizeSuggestions returns the non-empty string entries of a JSON array.
// Anything else yields an empty, non-nil slice.
func normalizeSuggestions(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeBreakdown(raw json.RawMessage) map[string]float64 {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
		return nil
	}
	out := make(map[string]float64, len(obj))
	for k, v := range obj {
		var f float64
		if err := json.Unmarshal(v, &f); err == nil && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
