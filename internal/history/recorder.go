// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

const recordTimeout = 5 * time.Second

// Recorder writes successful session evaluations to a Store. Write failures
// are logged and never surface to the session.
type Recorder struct {
	Store *Store
	Log   *zap.Logger
}

// ObjectiveEvaluated records an objective evaluation.
func (r *Recorder) ObjectiveEvaluated(text string, result types.EvaluationResult) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	id, err := r.Store.RecordObjective(ctx, text, result)
	r.logResult("objective", id, err)
}

// KeyResultEvaluated records a key result evaluation.
func (r *Recorder) KeyResultEvaluated(kr types.KeyResult) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	id, err := r.Store.RecordKeyResult(ctx, kr)
	r.logResult("key_result", id, err)
}

func (r *Recorder) logResult(kind, id string, err error) {
	if r.Log == nil {
		return
	}
	if err != nil {
		r.Log.Warn("recording evaluation failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	r.Log.Debug("evaluation recorded", zap.String("kind", kind), zap.String("id", id))
}
