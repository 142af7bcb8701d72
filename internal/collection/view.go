// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collection holds the fetched objective list and the active filter,
// and derives what is shown from them: the filtered objectives and the
// metrics over that filtered set.
package collection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/okr-evaluator/internal/filter"
	"github.com/pdiddy/okr-evaluator/internal/metrics"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// Fetcher returns the objective collection. The filter is a hint: a fetcher
// may apply it or ignore it, the view filters locally either way.
type Fetcher interface {
	ListObjectives(ctx context.Context, spec types.FilterSpec) ([]types.Objective, error)
}

// Option customizes a View.
type Option func(*View)

// WithLogger sets the view logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *View) { v.log = l }
}

// WithServerFilter makes Refresh pass the active filter to the fetcher so
// the service can filter authoritatively. Without it the full collection is
// fetched and filtering is local only.
//
// With server filtering the held collection only covers the filter it was
// fetched with. After SetFilter, NeedsRefresh reports whether Refresh must
// run before Visible can include rows the new filter admits.
func WithServerFilter() Option {
	return func(v *View) { v.serverFilter = true }
}

// View is the collection shown to the user. It is safe for concurrent use.
type View struct {
	fetcher      Fetcher
	log          *zap.Logger
	serverFilter bool
	group        singleflight.Group

	mu         sync.RWMutex
	objectives  []types.Objective
	spec        types.FilterSpec
	fetchedSpec types.FilterSpec
	visible     []types.Objective
	summary     metrics.Summary
	fetchedAt   time.Time
}

// New returns an empty view with no filter.
func New(f Fetcher, opts ...Option) *View {
	v := &View{
		fetcher: f,
		log:     zap.NewNop(),
		summary: metrics.Compute(nil),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Refresh fetches the collection and replaces the held one wholesale. The
// active filter is kept and re-applied. Concurrent calls share one fetch.
// The shared fetch is not canceled by any one caller; each caller stops
// waiting when its own ctx is done. On error the previous collection stays
// in place.
func (v *View) Refresh(ctx context.Context) error {
	ch := v.group.DoChan("objectives", func() (any, error) {
		return nil, v.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		v.log.Debug("refresh abandoned by caller", zap.Error(ctx.Err()))
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			v.log.Warn("collection refresh failed", zap.Error(res.Err), zap.Bool("shared", res.Shared))
		}
		return res.Err
	}
}

func (v *View) fetch(ctx context.Context) error {
	v.mu.RLock()
	spec := types.FilterSpec{}
	if v.serverFilter {
		spec = v.spec
	}
	v.mu.RUnlock()

	objectives, err := v.fetcher.ListObjectives(ctx, spec)
	if err != nil {
		return fmt.Errorf("fetching objectives: %w", err)
	}

	v.mu.Lock()
	v.objectives = objectives
	v.fetchedSpec = spec
	v.fetchedAt = time.Now()
	v.recomputeLocked()
	count, visible := len(v.objectives), len(v.visible)
	v.mu.Unlock()

	v.log.Debug("collection refreshed", zap.Int("objectives", count), zap.Int("visible", visible))
	return nil
}

// SetFilter replaces the active filter and recomputes the visible set and
// its metrics. It does not fetch; see NeedsRefresh.
func (v *View) SetFilter(spec types.FilterSpec) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spec = spec
	v.recomputeLocked()
}

// NeedsRefresh reports whether the active filter differs from the one the
// held collection was fetched with under WithServerFilter. It is always
// false for local filtering.
func (v *View) NeedsRefresh() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.serverFilter && !sameFilter(v.spec, v.fetchedSpec)
}

func sameFilter(a, b types.FilterSpec) bool {
	return a.Query == b.Query && a.Status == b.Status &&
		a.FromDate.Equal(b.FromDate) && a.ToDate.Equal(b.ToDate)
}

func (v *View) recomputeLocked() {
	v.visible = filter.Apply(v.objectives, v.spec)
	v.summary = metrics.Compute(v.visible)
}

// Filter returns the active filter.
func (v *View) Filter() types.FilterSpec {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.spec
}

// Objectives returns a copy of the full fetched collection.
func (v *View) Objectives() []types.Objective {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]types.Objective(nil), v.objectives...)
}

// Visible returns a copy of the objectives that pass the active filter.
func (v *View) Visible() []types.Objective {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]types.Objective(nil), v.visible...)
}

// Summary returns the metrics over the visible objectives.
func (v *View) Summary() metrics.Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := v.summary
	s.ChartSeries = append([]metrics.ChartPoint{}, v.summary.ChartSeries...)
	return s
}

// FetchedAt returns when the collection was last replaced, or the zero time.
func (v *View) FetchedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fetchedAt
}
