// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session holds the state of one interactive evaluation: the
// objective being worked on, its latest result, and the key results
// evaluated under it.
//
// The objective and key result streams are independent. Each allows one
// request in flight; a second submit while one is pending returns ErrBusy.
// Every request is tagged with a sequence number so a response that arrives
// after Load or Reset changed the session is dropped with ErrStale.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/internal/gate"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// State is the lifecycle state of one request stream.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrBusy is returned when a stream already has a request in flight.
	ErrBusy = errors.New("an evaluation is already in progress")

	// ErrStale is returned when the session changed while the request was
	// in flight; the response was discarded.
	ErrStale = errors.New("session changed while the evaluation was in flight; result discarded")

	// ErrKeyResultsLocked is returned when the objective score does not
	// clear gate.KeyResultThreshold.
	ErrKeyResultsLocked = fmt.Errorf("key results unlock at an objective score of %.1f", gate.KeyResultThreshold)

	// ErrNoObjective is returned for a key result when the session has no
	// objective identifier to attach it to.
	ErrNoObjective = errors.New("no evaluated objective to attach the key result to")
)

// Evaluator is the remote evaluation service as seen by a session.
type Evaluator interface {
	EvaluateObjective(ctx context.Context, text string) (types.EvaluationResult, error)
	EvaluateKeyResult(ctx context.Context, draft types.KeyResultDraft) (types.EvaluationResult, error)
}

// Observer is notified after evaluations succeed and their result has been
// committed to the session. Calls happen outside the session lock.
type Observer interface {
	ObjectiveEvaluated(text string, result types.EvaluationResult)
	KeyResultEvaluated(kr types.KeyResult)
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithObserver registers an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// WithClock overrides the time source used to stamp key results.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

type stream struct {
	state State
	seq   uint64
	err   error
}

// begin moves the stream to Submitting and returns the request's sequence number.
func (st *stream) begin() (uint64, error) {
	if st.state == StateSubmitting {
		return 0, ErrBusy
	}
	st.seq++
	st.state = StateSubmitting
	st.err = nil
	return st.seq, nil
}

// current reports whether seq is still the request the stream is waiting for.
func (st *stream) current(seq uint64) bool {
	return st.state == StateSubmitting && st.seq == seq
}

// invalidate abandons any in-flight request.
func (st *stream) invalidate() {
	st.seq++
	st.state = StateIdle
	st.err = nil
}

// Session is one evaluation session. It is safe for concurrent use; the
// lock is never held across a network call.
type Session struct {
	eval      Evaluator
	log       *zap.Logger
	observers []Observer
	now       func() time.Time

	mu            sync.Mutex
	objectiveText string
	objectiveID   string
	score         *float64
	result        *types.EvaluationResult
	objective     stream

	krDraft    types.KeyResultDraft
	keyResults []types.KeyResult
	kr         stream
}

// New returns an idle session with no objective.
func New(eval Evaluator, opts ...Option) *Session {
	s := &Session{
		eval: eval,
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load starts working on an existing objective: its text, ID and score
// become the session's baseline. Key results, in-flight requests and
// previous results are discarded.
func (s *Session) Load(o types.Objective) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objectiveText = o.Objective
	s.objectiveID = o.ID
	s.score = copyScore(o.Score)
	s.result = nil
	s.krDraft = types.KeyResultDraft{}
	s.keyResults = nil
	s.objective.invalidate()
	s.kr.invalidate()
	s.log.Debug("objective loaded", zap.String("objective_id", o.ID))
}

// Reset returns the session to its initial empty state.
func (s *Session) Reset() {
	s.Load(types.Objective{})
}

// SetObjectiveText updates the objective draft. It does not affect the
// current score or any request in flight.
func (s *Session) SetObjectiveText(text string) {
	s.mu.Lock()
	s.objectiveText = text
	s.mu.Unlock()
}

// SetKeyResultDraft updates the key result draft.
func (s *Session) SetKeyResultDraft(d types.KeyResultDraft) {
	s.mu.Lock()
	s.krDraft = d
	s.mu.Unlock()
}

// SubmitObjective evaluates the current objective text.
//
// On success the new score replaces the old one and the key result gate is
// re-evaluated. When the service reports a different objective ID than the
// session held, the key result stream is invalidated and the key result
// draft and list are cleared. On failure the stream moves to StateFailed and the previous
// score and result are kept.
func (s *Session) SubmitObjective(ctx context.Context) (types.EvaluationResult, error) {
	s.mu.Lock()
	seq, err := s.objective.begin()
	if err != nil {
		s.mu.Unlock()
		return types.EvaluationResult{}, err
	}
	text := s.objectiveText
	s.mu.Unlock()

	log := s.log.With(zap.Uint64("seq", seq))
	log.Debug("submitting objective")

	result, evalErr := s.eval.EvaluateObjective(ctx, text)

	s.mu.Lock()
	if !s.objective.current(seq) {
		s.mu.Unlock()
		log.Info("discarding stale objective response")
		return types.EvaluationResult{}, ErrStale
	}
	if evalErr != nil {
		s.objective.state = StateFailed
		s.objective.err = evalErr
		s.mu.Unlock()
		log.Warn("objective evaluation failed", zap.Error(evalErr))
		return types.EvaluationResult{}, evalErr
	}

	s.objective.state = StateSucceeded
	stored := cloneResult(result)
	s.result = &stored
	s.score = result.ScorePtr()
	if result.ID != "" && result.ID != s.objectiveID {
		if s.objectiveID != "" {
			// Key results belong to the previous objective.
			s.kr.invalidate()
			s.krDraft = types.KeyResultDraft{}
			s.keyResults = nil
			log.Info("objective identity changed",
				zap.String("previous_id", s.objectiveID), zap.String("objective_id", result.ID))
		}
		s.objectiveID = result.ID
	}
	unlocked := gate.CanAddKeyResults(s.score)
	s.mu.Unlock()

	log.Info("objective evaluated",
		zap.Float64("score", result.Score),
		zap.Bool("key_results_unlocked", unlocked))
	for _, o := range s.observers {
		o.ObjectiveEvaluated(strings.TrimSpace(text), result)
	}
	return result, nil
}

// SubmitKeyResult evaluates the current key result draft under the
// session's objective. The draft's ObjectiveID is always overwritten with
// the session's. A successful result is appended to KeyResults.
func (s *Session) SubmitKeyResult(ctx context.Context) (types.KeyResult, error) {
	s.mu.Lock()
	if !gate.CanAddKeyResults(s.score) {
		s.mu.Unlock()
		return types.KeyResult{}, ErrKeyResultsLocked
	}
	if s.objectiveID == "" {
		s.mu.Unlock()
		return types.KeyResult{}, ErrNoObjective
	}
	seq, err := s.kr.begin()
	if err != nil {
		s.mu.Unlock()
		return types.KeyResult{}, err
	}
	draft := s.krDraft
	draft.ObjectiveID = s.objectiveID
	s.mu.Unlock()

	log := s.log.With(zap.Uint64("kr_seq", seq), zap.String("objective_id", draft.ObjectiveID))
	log.Debug("submitting key result")

	result, evalErr := s.eval.EvaluateKeyResult(ctx, draft)

	s.mu.Lock()
	if !s.kr.current(seq) {
		s.mu.Unlock()
		log.Info("discarding stale key result response")
		return types.KeyResult{}, ErrStale
	}
	if evalErr != nil {
		s.kr.state = StateFailed
		s.kr.err = evalErr
		s.mu.Unlock()
		log.Warn("key result evaluation failed", zap.Error(evalErr))
		return types.KeyResult{}, evalErr
	}

	kr := types.KeyResult{
		KeyResultDraft: draft.Trimmed(),
		ID:             result.ID,
		Score:          result.ScorePtr(),
		Feedback:       result.Feedback,
		Breakdown:      result.Breakdown,
		EvaluatedAt:    s.now(),
	}
	s.kr.state = StateSucceeded
	s.keyResults = append(s.keyResults, cloneKeyResult(kr))
	s.krDraft = types.KeyResultDraft{}
	s.mu.Unlock()

	log.Info("key result evaluated", zap.Float64("score", result.Score))
	for _, o := range s.observers {
		o.KeyResultEvaluated(kr)
	}
	return kr, nil
}

// DismissObjective moves a finished objective stream back to StateIdle,
// clearing the last error. Score and result are kept. It has no effect
// while a request is in flight.
func (s *Session) DismissObjective() {
	s.mu.Lock()
	defer s.mu.Unlock()
	dismiss(&s.objective)
}

// DismissKeyResult is DismissObjective for the key result stream.
func (s *Session) DismissKeyResult() {
	s.mu.Lock()
	defer s.mu.Unlock()
	dismiss(&s.kr)
}

func dismiss(st *stream) {
	if st.state == StateSucceeded || st.state == StateFailed {
		st.state = StateIdle
		st.err = nil
	}
}

// Snapshot is a point-in-time copy of the session for display.
type Snapshot struct {
	ObjectiveText  string
	ObjectiveID    string
	ObjectiveState State
	ObjectiveErr   error

	// Score is nil until an objective has been loaded with a score or evaluated.
	Score  *float64
	Result *types.EvaluationResult

	// KeyResultsUnlocked is gate.CanAddKeyResults(Score).
	KeyResultsUnlocked bool

	KeyResultDraft types.KeyResultDraft
	KeyResultState State
	KeyResultErr   error
	KeyResults     []types.KeyResult
}

// Snapshot returns a copy of the current state. Nothing in it aliases the
// session's own slices, maps or pointers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *types.EvaluationResult
	if s.result != nil {
		r := cloneResult(*s.result)
		result = &r
	}
	krs := make([]types.KeyResult, len(s.keyResults))
	for i, kr := range s.keyResults {
		krs[i] = cloneKeyResult(kr)
	}

	return Snapshot{
		ObjectiveText:      s.objectiveText,
		ObjectiveID:        s.objectiveID,
		ObjectiveState:     s.objective.state,
		ObjectiveErr:       s.objective.err,
		Score:              copyScore(s.score),
		Result:             result,
		KeyResultsUnlocked: gate.CanAddKeyResults(s.score),
		KeyResultDraft:     s.krDraft,
		KeyResultState:     s.kr.state,
		KeyResultErr:       s.kr.err,
		KeyResults:         krs,
	}
}

// CanAddKeyResults reports whether the key result form should be offered.
func (s *Session) CanAddKeyResults() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gate.CanAddKeyResults(s.score)
}

func copyScore(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneResult(r types.EvaluationResult) types.EvaluationResult {
	if r.Criteria != nil {
		c := *r.Criteria
		r.Criteria = &c
	}
	r.Suggestions = slices.Clone(r.Suggestions)
	r.Breakdown = maps.Clone(r.Breakdown)
	return r
}

func cloneKeyResult(kr types.KeyResult) types.KeyResult {
	kr.Score = copyScore(kr.Score)
	kr.Breakdown = maps.Clone(kr.Breakdown)
	return kr
}
