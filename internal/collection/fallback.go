// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// FallbackFetcher reads from Primary and, when that fails, from Secondary.
// The CLI uses it to show locally recorded evaluations while the service
// is unreachable.
type FallbackFetcher struct {
	Primary   Fetcher
	Secondary Fetcher
	Log       *zap.Logger
}

// ListObjectives implements Fetcher.
func (f *FallbackFetcher) ListObjectives(ctx context.Context, spec types.FilterSpec) ([]types.Objective, error) {
	objectives, err := f.Primary.ListObjectives(ctx, spec)
	if err == nil {
		return objectives, nil
	}
	if f.Secondary == nil || errors.Is(err, context.Canceled) {
		return nil, err
	}

	if f.Log != nil {
		f.Log.Warn("objective list unavailable, using local history", zap.Error(err))
	}
	local, localErr := f.Secondary.ListObjectives(ctx, spec)
	if localErr != nil {
		return nil, fmt.Errorf("%w (local fallback: %v)", err, localErr)
	}
	return local, nil
}
