// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/okr-evaluator/internal/evalclient"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes ---

type fakeEvaluator struct {
	objective func(ctx context.Context, text string) (types.EvaluationResult, error)
	keyResult func(ctx context.Context, d types.KeyResultDraft) (types.EvaluationResult, error)
}

func (f *fakeEvaluator) EvaluateObjective(ctx context.Context, text string) (types.EvaluationResult, error) {
	return f.objective(ctx, text)
}

func (f *fakeEvaluator) EvaluateKeyResult(ctx context.Context, d types.KeyResultDraft) (types.EvaluationResult, error) {
	return f.keyResult(ctx, d)
}

func scoreResult(id string, score float64) types.EvaluationResult {
	return types.EvaluationResult{ID: id, Score: score, Suggestions: []string{}}
}

type recorder struct {
	mu         sync.Mutex
	objectives []string
	keyResults []types.KeyResult
}

func (r *recorder) ObjectiveEvaluated(text string, _ types.EvaluationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objectives = append(r.objectives, text)
}

func (r *recorder) KeyResultEvaluated(kr types.KeyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyResults = append(r.keyResults, kr)
}

func ptr(f float64) *float64 { return &f }

// --- end to end against the real client ---

const smartResponse = `{
  "okr_id": "okr-1",
  "score": 8.0,
  "feedback": "Good",
  "criteria": {
    "specific":   {"score": 8, "comment": ""},
    "measurable": {"score": 9, "comment": ""},
    "achievable": {"score": 7, "comment": ""},
    "relevant":   {"score": 8, "comment": ""},
    "timebound":  {"score": 6, "comment": ""}
  },
  "suggestions": ["Add a deadline"]
}`

func serverClient(t *testing.T, status int, body string) *evalclient.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return evalclient.New(types.ClientConfig{BaseURL: ts.URL})
}

func TestEndToEnd_SuccessUnlocksKeyResults(t *testing.T) {
	s := New(serverClient(t, http.StatusOK, smartResponse))
	s.SetObjectiveText("Increase NPS by 10%")

	require.False(t, s.CanAddKeyResults())

	res, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.Score)

	snap := s.Snapshot()
	assert.Equal(t, StateSucceeded, snap.ObjectiveState)
	assert.True(t, snap.KeyResultsUnlocked)
	assert.True(t, s.CanAddKeyResults())
	require.NotNil(t, snap.Score)
	assert.Equal(t, 8.0, *snap.Score)
	assert.Equal(t, "okr-1", snap.ObjectiveID)
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.CriteriaAvailable())
	assert.Equal(t, []string{"Add a deadline"}, snap.Result.Suggestions)
	assert.Equal(t, "Good", snap.Result.Feedback)
}

func TestEndToEnd_ServerErrorKeepsPriorScore(t *testing.T) {
	s := New(serverClient(t, http.StatusInternalServerError, `{"detail": "evaluator crashed"}`))
	s.Load(types.Objective{ID: "okr-7", Objective: "Increase NPS by 10%", Score: ptr(8.2)})
	before := s.Snapshot()
	require.True(t, before.KeyResultsUnlocked)

	_, err := s.SubmitObjective(context.Background())
	require.Error(t, err)
	assert.True(t, evalclient.IsKind(err, evalclient.KindServerRejected))
	assert.Equal(t, "evaluator crashed", evalclient.UserMessage(err))

	after := s.Snapshot()
	assert.Equal(t, StateFailed, after.ObjectiveState)
	require.Error(t, after.ObjectiveErr)
	assert.Equal(t, "evaluator crashed", evalclient.UserMessage(after.ObjectiveErr))
	require.NotNil(t, after.Score)
	assert.Equal(t, 8.2, *after.Score)
	assert.Equal(t, before.KeyResultsUnlocked, after.KeyResultsUnlocked)
	assert.Equal(t, before.KeyResultState, after.KeyResultState)
	assert.Equal(t, "okr-7", after.ObjectiveID)
}

func TestEndToEnd_MalformedKeepsPreviousResult(t *testing.T) {
	var mu sync.Mutex
	body := smartResponse
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	s := New(evalclient.New(types.ClientConfig{BaseURL: ts.URL}))
	s.SetObjectiveText("Increase NPS by 10%")
	_, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)

	mu.Lock()
	body = `{"feedback": "no score here"}`
	mu.Unlock()

	_, err = s.SubmitObjective(context.Background())
	assert.True(t, evalclient.IsKind(err, evalclient.KindMalformedResponse))

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.ObjectiveState)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "Good", snap.Result.Feedback)
	assert.Equal(t, 8.0, *snap.Score)
}

func TestValidationFailureNeverReachesEvaluator(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, smartResponse)
	}))
	defer ts.Close()

	s := New(evalclient.New(types.ClientConfig{BaseURL: ts.URL}))
	s.SetObjectiveText("   ")
	_, err := s.SubmitObjective(context.Background())
	assert.True(t, evalclient.IsKind(err, evalclient.KindValidation))
	assert.Equal(t, StateFailed, s.Snapshot().ObjectiveState)
	assert.Equal(t, 0, calls)
}

// --- state machine ---

func TestFailureThenDismissReturnsToIdle(t *testing.T) {
	boom := errors.New("boom")
	s := New(&fakeEvaluator{objective: func(context.Context, string) (types.EvaluationResult, error) {
		return types.EvaluationResult{}, boom
	}})

	assert.Equal(t, StateIdle, s.Snapshot().ObjectiveState)
	_, err := s.SubmitObjective(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, s.Snapshot().ObjectiveState)

	s.DismissObjective()
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.ObjectiveState)
	assert.NoError(t, snap.ObjectiveErr)
	assert.Nil(t, snap.Score)
}

func TestRetryAfterFailureSucceeds(t *testing.T) {
	attempt := 0
	s := New(&fakeEvaluator{objective: func(context.Context, string) (types.EvaluationResult, error) {
		attempt++
		if attempt == 1 {
			return types.EvaluationResult{}, &evalclient.EvalError{Kind: evalclient.KindNetwork}
		}
		return scoreResult("o", 7.6), nil
	}})
	s.SetObjectiveText("x")

	_, err := s.SubmitObjective(context.Background())
	require.Error(t, err)
	_, err = s.SubmitObjective(context.Background())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StateSucceeded, snap.ObjectiveState)
	assert.NoError(t, snap.ObjectiveErr)
	assert.True(t, snap.KeyResultsUnlocked)
}

func TestLowScoreKeepsKeyResultsLocked(t *testing.T) {
	s := New(&fakeEvaluator{
		objective: func(context.Context, string) (types.EvaluationResult, error) { return scoreResult("o", 7.49), nil },
		keyResult: func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
			t.Fatal("key result must not be evaluated while locked")
			return types.EvaluationResult{}, nil
		},
	})
	_, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)
	assert.False(t, s.CanAddKeyResults())

	_, err = s.SubmitKeyResult(context.Background())
	assert.ErrorIs(t, err, ErrKeyResultsLocked)
	assert.Equal(t, StateIdle, s.Snapshot().KeyResultState)
}

func TestSubmitObjectiveWhileSubmittingIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	s := New(&fakeEvaluator{objective: func(context.Context, string) (types.EvaluationResult, error) {
		calls++
		close(started)
		<-release
		return scoreResult("o", 8), nil
	}})

	done := make(chan error)
	go func() {
		_, err := s.SubmitObjective(context.Background())
		done <- err
	}()
	<-started

	assert.Equal(t, StateSubmitting, s.Snapshot().ObjectiveState)
	_, err := s.SubmitObjective(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateSucceeded, s.Snapshot().ObjectiveState)
}

func TestStaleObjectiveResponseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	rec := &recorder{}
	s := New(&fakeEvaluator{objective: func(context.Context, string) (types.EvaluationResult, error) {
		close(started)
		<-release
		return scoreResult("old", 9.5), nil
	}}, WithObserver(rec))
	s.SetObjectiveText("first draft")

	done := make(chan error)
	go func() {
		_, err := s.SubmitObjective(context.Background())
		done <- err
	}()
	<-started

	s.Load(types.Objective{ID: "other", Objective: "Another objective", Score: ptr(6)})
	close(release)
	assert.ErrorIs(t, <-done, ErrStale)

	snap := s.Snapshot()
	assert.Equal(t, "other", snap.ObjectiveID)
	assert.Equal(t, 6.0, *snap.Score)
	assert.Nil(t, snap.Result)
	assert.Equal(t, StateIdle, snap.ObjectiveState)
	assert.Empty(t, rec.objectives)
}

// --- key results ---

func unlockedSession(t *testing.T, kr func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error), opts ...Option) *Session {
	t.Helper()
	s := New(&fakeEvaluator{
		objective: func(context.Context, string) (types.EvaluationResult, error) { return scoreResult("okr-1", 8), nil },
		keyResult: kr,
	}, opts...)
	s.SetObjectiveText("Increase NPS by 10%")
	_, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)
	return s
}

func TestKeyResultsAppendInOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var drafts []types.KeyResultDraft
	n := 0
	rec := &recorder{}
	s := unlockedSession(t, func(_ context.Context, d types.KeyResultDraft) (types.EvaluationResult, error) {
		n++
		drafts = append(drafts, d)
		return scoreResult(fmt.Sprintf("kr-%d", n), float64(5+n)), nil
	}, WithClock(func() time.Time { return now }), WithObserver(rec))

	for i, def := range []string{"Raise NPS to 55", "Cut churn to 3%"} {
		s.SetKeyResultDraft(types.KeyResultDraft{
			ObjectiveID: "ignored",
			Definition:  def,
			TargetValue: fmt.Sprint(i),
			TargetDate:  "2026-12-31",
		})
		_, err := s.SubmitKeyResult(context.Background())
		require.NoError(t, err)
	}

	snap := s.Snapshot()
	require.Len(t, snap.KeyResults, 2)
	assert.Equal(t, "kr-1", snap.KeyResults[0].ID)
	assert.Equal(t, "Raise NPS to 55", snap.KeyResults[0].Definition)
	assert.Equal(t, 6.0, *snap.KeyResults[0].Score)
	assert.Equal(t, "kr-2", snap.KeyResults[1].ID)
	assert.Equal(t, now, snap.KeyResults[1].EvaluatedAt)
	assert.Equal(t, "okr-1", drafts[0].ObjectiveID)
	assert.Equal(t, "okr-1", snap.KeyResults[1].ObjectiveID)
	assert.Equal(t, StateSucceeded, snap.KeyResultState)
	assert.Equal(t, types.KeyResultDraft{}, snap.KeyResultDraft)
	assert.Len(t, rec.keyResults, 2)
	assert.Equal(t, []string{"Increase NPS by 10%"}, rec.objectives)
}

func TestKeyResultFailureKeepsExistingEntries(t *testing.T) {
	n := 0
	s := unlockedSession(t, func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
		n++
		if n == 2 {
			return types.EvaluationResult{}, &evalclient.EvalError{Kind: evalclient.KindServerRejected, Status: 500, Message: "nope"}
		}
		return scoreResult("kr", 8), nil
	})

	_, err := s.SubmitKeyResult(context.Background())
	require.NoError(t, err)
	_, err = s.SubmitKeyResult(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.KeyResults, 1)
	assert.Equal(t, StateFailed, snap.KeyResultState)
	assert.Equal(t, StateSucceeded, snap.ObjectiveState)

	s.DismissKeyResult()
	assert.Equal(t, StateIdle, s.Snapshot().KeyResultState)
}

func TestKeyResultNeedsObjectiveID(t *testing.T) {
	s := New(&fakeEvaluator{
		objective: func(context.Context, string) (types.EvaluationResult, error) { return scoreResult("", 9), nil },
	})
	_, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)
	require.True(t, s.CanAddKeyResults())

	_, err = s.SubmitKeyResult(context.Background())
	assert.ErrorIs(t, err, ErrNoObjective)
}

func TestKeyResultStreamIndependentOfObjective(t *testing.T) {
	objRelease := make(chan struct{})
	var mu sync.Mutex
	objCalls := 0

	s := New(&fakeEvaluator{
		objective: func(context.Context, string) (types.EvaluationResult, error) {
			mu.Lock()
			objCalls++
			n := objCalls
			mu.Unlock()
			if n > 1 {
				<-objRelease
			}
			return scoreResult("okr-1", 8), nil
		},
		keyResult: func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
			return scoreResult("kr-1", 7), nil
		},
	})
	_, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)

	// The second objective evaluation blocks; the KR stream keeps working.
	done := make(chan error)
	go func() {
		_, err := s.SubmitObjective(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		return s.Snapshot().ObjectiveState == StateSubmitting
	}, time.Second, time.Millisecond)

	_, err = s.SubmitKeyResult(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().KeyResults, 1)

	close(objRelease)
	require.NoError(t, <-done)
}

func TestSubmitKeyResultWhileSubmittingIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := unlockedSession(t, func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
		close(started)
		<-release
		return scoreResult("kr", 8), nil
	})

	done := make(chan error)
	go func() {
		_, err := s.SubmitKeyResult(context.Background())
		done <- err
	}()
	<-started

	_, err := s.SubmitKeyResult(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, s.Snapshot().KeyResults, 1)
}

func TestStaleKeyResultDiscardedAfterReset(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := unlockedSession(t, func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
		close(started)
		<-release
		return scoreResult("kr", 8), nil
	})

	done := make(chan error)
	go func() {
		_, err := s.SubmitKeyResult(context.Background())
		done <- err
	}()
	<-started
	s.Reset()
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	snap := s.Snapshot()
	assert.Empty(t, snap.KeyResults)
	assert.False(t, snap.KeyResultsUnlocked)
	assert.Empty(t, snap.ObjectiveID)
}

func TestStaleKeyResultDiscardedWhenObjectiveIDChanges(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	objCalls := 0

	s := New(&fakeEvaluator{
		objective: func(context.Context, string) (types.EvaluationResult, error) {
			mu.Lock()
			defer mu.Unlock()
			objCalls++
			if objCalls == 1 {
				return scoreResult("okr-A", 8), nil
			}
			return scoreResult("okr-B", 5), nil
		},
		keyResult: func(_ context.Context, d types.KeyResultDraft) (types.EvaluationResult, error) {
			assert.Equal(t, "okr-A", d.ObjectiveID)
			close(started)
			<-release
			return scoreResult("kr-1", 7), nil
		},
	})
	s.SetObjectiveText("Increase NPS by 10%")
	_, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)
	s.SetKeyResultDraft(types.KeyResultDraft{Definition: "Raise NPS to 55", TargetValue: "55", TargetDate: "2026-06-30"})

	done := make(chan error)
	go func() {
		_, err := s.SubmitKeyResult(context.Background())
		done <- err
	}()
	<-started

	s.SetObjectiveText("Increase NPS by 10% this year")
	_, err = s.SubmitObjective(context.Background())
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	snap := s.Snapshot()
	assert.Equal(t, "okr-B", snap.ObjectiveID)
	assert.Empty(t, snap.KeyResults)
	assert.Equal(t, types.KeyResultDraft{}, snap.KeyResultDraft)
	assert.Equal(t, StateIdle, snap.KeyResultState)
	assert.False(t, snap.KeyResultsUnlocked)
}

func TestSameObjectiveIDKeepsKeyResults(t *testing.T) {
	s := unlockedSession(t, func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
		return scoreResult("kr-1", 7), nil
	})
	_, err := s.SubmitKeyResult(context.Background())
	require.NoError(t, err)

	_, err = s.SubmitObjective(context.Background())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, "okr-1", snap.ObjectiveID)
	assert.Len(t, snap.KeyResults, 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := unlockedSession(t, func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
		return scoreResult("kr", 8), nil
	})
	_, err := s.SubmitKeyResult(context.Background())
	require.NoError(t, err)

	snap := s.Snapshot()
	*snap.Score = 0
	snap.KeyResults[0].ID = "mutated"
	snap.Result.Feedback = "mutated"

	again := s.Snapshot()
	assert.Equal(t, 8.0, *again.Score)
	assert.Equal(t, "kr", again.KeyResults[0].ID)
	assert.NotEqual(t, "mutated", again.Result.Feedback)
}

func TestSnapshotDoesNotAliasNestedValues(t *testing.T) {
	s := New(&fakeEvaluator{
		objective: func(context.Context, string) (types.EvaluationResult, error) {
			return types.EvaluationResult{
				ID:          "okr-1",
				Score:       8,
				Criteria:    &types.Criteria{Specific: types.CriterionScore{Score: 8}},
				Suggestions: []string{"Add a deadline"},
				Breakdown:   map[string]float64{"clarity": 8},
			}, nil
		},
		keyResult: func(context.Context, types.KeyResultDraft) (types.EvaluationResult, error) {
			return types.EvaluationResult{ID: "kr-1", Score: 7, Suggestions: []string{}, Breakdown: map[string]float64{"measurable": 7}}, nil
		},
	})
	returned, err := s.SubmitObjective(context.Background())
	require.NoError(t, err)
	kr, err := s.SubmitKeyResult(context.Background())
	require.NoError(t, err)

	returned.Suggestions[0] = "from caller"
	kr.Breakdown["measurable"] = -1

	snap := s.Snapshot()
	snap.Result.Suggestions[0] = "mutated"
	snap.Result.Criteria.Specific.Score = 0
	snap.Result.Breakdown["clarity"] = 0
	*snap.KeyResults[0].Score = 0
	snap.KeyResults[0].Breakdown["measurable"] = 0

	again := s.Snapshot()
	assert.Equal(t, []string{"Add a deadline"}, again.Result.Suggestions)
	assert.Equal(t, 8.0, again.Result.Criteria.Specific.Score)
	assert.Equal(t, 8.0, again.Result.Breakdown["clarity"])
	assert.Equal(t, 7.0, *again.KeyResults[0].Score)
	assert.Equal(t, 7.0, again.KeyResults[0].Breakdown["measurable"])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
}
