package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
)

// AttemptResolver implements resume-or-create: given (test, user, scope) it
// returns the single live attempt to resume, healing anomalies on the way,
// or nil when the caller is cleared to create a new one.
type AttemptResolver interface {
	ResolveLive(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (*model.Attempt, error)
}

type attemptResolver struct {
	attemptRepo repository.AttemptRepository
	cache       cache.Cache
	retryCfg    repository.RetryConfig
}

func NewAttemptResolver(attemptRepo repository.AttemptRepository, c cache.Cache) AttemptResolver {
	return &attemptResolver{
		attemptRepo: attemptRepo,
		cache:       c,
		retryCfg:    repository.DefaultRetryConfig(),
	}
}

func (r *attemptResolver) ResolveLive(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (*model.Attempt, error) {
	var attempts []model.Attempt
	err := repository.WithRetry(ctx, r.retryCfg, func() error {
		var qErr error
		attempts, qErr = r.attemptRepo.FindInProgress(ctx, testID, userID, scope)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var live []model.Attempt
	for i := range attempts {
		if IsExpired(&attempts[i], now) {
			r.markExpired(ctx, &attempts[i])
			continue
		}
		live = append(live, attempts[i])
	}

	if len(live) == 0 {
		return nil, nil
	}

	// Duplicate live attempts can only appear through a race between
	// concurrent starts. The newest row (first, per query order) stays
	// authoritative; the rest are cancelled as self-healing cleanup.
	if len(live) > 1 {
		log.Warn().
			Str("testID", testID.String()).
			Str("userID", userID.String()).
			Int("count", len(live)).
			Msg("Multiple live attempts found, keeping most recent")
		for i := 1; i < len(live); i++ {
			dup := live[i]
			if err := r.attemptRepo.TransitionStatus(ctx, dup.ID, model.AttemptStatusInProgress, model.AttemptStatusCancelled, nil); err != nil {
				if !errors.Is(err, repository.ErrStaleTransition) {
					log.Error().Err(err).Str("attemptID", dup.ID.String()).Msg("Failed to cancel duplicate attempt")
				}
				continue
			}
			invalidateAttemptCaches(ctx, r.cache, &dup)
		}
	}

	keep := live[0]
	return &keep, nil
}

// markExpired records logical expiry. Best-effort: this cleanup is not on
// the caller's critical path, so failures are logged and swallowed.
func (r *attemptResolver) markExpired(ctx context.Context, attempt *model.Attempt) {
	err := r.attemptRepo.TransitionStatus(ctx, attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusExpired, nil)
	if err != nil {
		if !errors.Is(err, repository.ErrStaleTransition) {
			log.Error().Err(err).Str("attemptID", attempt.ID.String()).Msg("Failed to mark attempt expired")
		}
		return
	}
	log.Info().Str("attemptID", attempt.ID.String()).Msg("Marked stale attempt as expired")
	invalidateAttemptCaches(ctx, r.cache, attempt)
}
