package service

import (
	"context"

	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/model"
	"github.com/rs/zerolog/log"
)

// invalidateAttemptCaches drops every key family that could hold stale data
// about the attempt: by id, the user's lists, the test's lists, the limit
// validation decision and the aggregate stats. Called after the store
// commit. Failures are logged, never propagated — the store is
// authoritative and TTLs bound the staleness window.
func invalidateAttemptCaches(ctx context.Context, c cache.Cache, attempt *model.Attempt) {
	scope := attempt.Scope()

	keys := []string{
		cache.AttemptKey(scope, attempt.ID),
		cache.ValidationKey(scope, attempt.TestID, attempt.UserID),
		cache.StatsKey(scope, attempt.TestID),
	}
	if err := c.Delete(ctx, keys...); err != nil {
		log.Error().Err(err).Str("attemptID", attempt.ID.String()).Msg("Failed to invalidate attempt cache keys")
	}
	if err := c.DeleteByPrefix(ctx, cache.UserAttemptListPrefix(scope, attempt.UserID)); err != nil {
		log.Error().Err(err).Str("userID", attempt.UserID.String()).Msg("Failed to invalidate user attempt list cache")
	}
	if err := c.DeleteByPrefix(ctx, cache.TestAttemptListPrefix(scope, attempt.TestID)); err != nil {
		log.Error().Err(err).Str("testID", attempt.TestID.String()).Msg("Failed to invalidate test attempt list cache")
	}
}
