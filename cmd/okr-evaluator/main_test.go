// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/okr-evaluator/internal/evalclient"
	"github.com/pdiddy/okr-evaluator/internal/metrics"
	"github.com/pdiddy/okr-evaluator/internal/session"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

func ptr(f float64) *float64 { return &f }

func TestFormatScore(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  string
	}{
		{"nil", nil, placeholder},
		{"NaN", ptr(math.NaN()), placeholder},
		{"Inf", ptr(math.Inf(1)), placeholder},
		{"value", ptr(7.46), "7.5"},
		{"out of range kept", ptr(12), "12.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatScore(tt.score))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Reduïr ...", truncate("Reduïr l’esperança", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestParseKeyResultFlag(t *testing.T) {
	d, err := parseKeyResultFlag(" Close 20 deals | 20 | 2024-06-30 ")
	require.NoError(t, err)
	assert.Equal(t, types.KeyResultDraft{Definition: "Close 20 deals", TargetValue: "20", TargetDate: "2024-06-30"}, d)

	for _, bad := range []string{"", "only definition", "a|b", "a|b|c|d"} {
		_, err := parseKeyResultFlag(bad)
		assert.Error(t, err, bad)
	}
}

func TestDescribe(t *testing.T) {
	rejected := &evalclient.EvalError{Kind: evalclient.KindServerRejected, Status: 400, Message: "Objective too vague"}
	assert.Equal(t, "Objective too vague", describe(fmt.Errorf("wrapped: %w", rejected)))
	assert.Equal(t, session.ErrNoObjective.Error(), describe(session.ErrNoObjective))
	assert.Equal(t, "plain", describe(errors.New("plain")))
}

func TestBarLength(t *testing.T) {
	assert.Equal(t, 0, barLength(0))
	assert.Equal(t, 0, barLength(-3))
	assert.Equal(t, barWidth/2, barLength(5))
	assert.Equal(t, barWidth, barLength(10))
	assert.Equal(t, barWidth, barLength(14))
}

func TestPrintDashboard(t *testing.T) {
	s := metrics.Compute([]types.Objective{
		{Objective: "Increase NPS by 10%", Score: ptr(8)},
		{Objective: "Reduce churn", Score: ptr(6)},
		{Objective: "Launch survey"},
	})
	var buf bytes.Buffer
	printDashboard(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "Objectives evaluated:  3")
	assert.Contains(t, out, "Average score:         4.7 / 10")
	assert.Contains(t, out, "47%")
	assert.Contains(t, out, "Increase NPS b…")
}

func TestPrintEvaluationCriteriaUnavailable(t *testing.T) {
	var buf bytes.Buffer
	printEvaluation(&buf, types.EvaluationResult{Score: 6, Suggestions: []string{"Add a deadline"}})
	assert.Contains(t, buf.String(), "Detailed criteria are not available")
	assert.Contains(t, buf.String(), "- Add a deadline")
}

func TestPrintEvaluationCriteria(t *testing.T) {
	c := &types.Criteria{Specific: types.CriterionScore{Score: 9, Comment: "clear"}}
	var buf bytes.Buffer
	printEvaluation(&buf, types.EvaluationResult{Score: 8, Criteria: c, Suggestions: []string{}})
	assert.Contains(t, buf.String(), "specific      9.0  clear")
	assert.Contains(t, buf.String(), "timebound")
}

// --- command tests ---

func withService(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	viper.Reset()
	setDefaults()
	viper.Set("api.base_url", srv.URL)
	viper.Set("history.enabled", false)
	t.Cleanup(viper.Reset)
}

func testEvaluateCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	addEvaluateFlags(cmd)
	for k, v := range flags {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	cmd.SetContext(context.Background())
	return cmd
}

func TestNewClientSharedPerConfig(t *testing.T) {
	var fetches int
	withService(t, func(w http.ResponseWriter, r *http.Request) {
		fetches++
		fmt.Fprint(w, `{"id":"7","objective":"Grow revenue","score":8.0}`)
	})

	first := newClient(loadConfig())
	second := newClient(loadConfig())
	require.Same(t, first, second)

	for range 2 {
		o, err := newClient(loadConfig()).FetchObjective(context.Background(), "7")
		require.NoError(t, err)
		assert.Equal(t, "Grow revenue", o.Objective)
	}
	assert.Equal(t, 1, fetches)

	viper.Set("http.user_agent", "okr-evaluator/test")
	assert.NotSame(t, first, newClient(loadConfig()))
}

func TestRunEvaluateServerRejected(t *testing.T) {
	withService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":"Objective must describe an outcome"}`)
	})

	err := runEvaluate(testEvaluateCmd(t, nil), []string{"Do", "things"})
	assert.EqualError(t, err, "evaluating objective: Objective must describe an outcome")
}

func TestRunEvaluateSkipsKeyResultsBelowThreshold(t *testing.T) {
	var krCalls int
	withService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/okrs/kr/evaluate" {
			krCalls++
		}
		fmt.Fprint(w, `{"okr_id":"1","score":6.0,"feedback":"needs a metric","suggestions":[]}`)
	})

	cmd := testEvaluateCmd(t, map[string]string{"kr": "Close deals|20|2024-06-30", "json": "true"})
	err := runEvaluate(cmd, []string{"Grow revenue"})
	assert.NoError(t, err)
	assert.Equal(t, 0, krCalls)
}

func TestRunEvaluateValidation(t *testing.T) {
	withService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failure must not reach the service")
	})

	err := runEvaluate(testEvaluateCmd(t, nil), []string{"   "})
	assert.Error(t, err)
}

func TestRunEvaluateWithKeyResults(t *testing.T) {
	var krBodies int
	withService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/okrs/evaluate":
			fmt.Fprint(w, `{"okr_id":"11","score":8.4,"feedback":"good","suggestions":["tighten scope"]}`)
		case "/api/v1/okrs/kr/evaluate":
			krBodies++
			if krBodies == 2 {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"detail":"target date is in the past"}`)
				return
			}
			fmt.Fprint(w, `{"key_result_id":"kr-1","score":7.0,"feedback":"ok","suggestions":[]}`)
		default:
			http.NotFound(w, r)
		}
	})

	cmd := testEvaluateCmd(t, nil)
	require.NoError(t, cmd.Flags().Set("kr", "Close deals|20|2030-06-30"))
	require.NoError(t, cmd.Flags().Set("kr", "Expand regions|all regions|2020-01-01"))

	err := runEvaluate(cmd, []string{"Grow revenue"})
	assert.EqualError(t, err, "1 key result(s) failed evaluation")
	assert.Equal(t, 2, krBodies)
}
