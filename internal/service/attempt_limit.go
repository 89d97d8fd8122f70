package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
)

// LimitDecision reports whether another attempt may be started and, when
// allowed, which attempt number it would receive.
type LimitDecision struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	AttemptNumber int    `json:"attempt_number"`
	AttemptsUsed  int    `json:"attempts_used"`
	MaxAttempts   int    `json:"max_attempts"`
}

// AttemptLimitValidator counts attempts consumed against the test policy.
// Cancelled attempts do not consume quota.
type AttemptLimitValidator interface {
	Validate(ctx context.Context, testID, userID uuid.UUID, scope model.Scope, maxAttempts int) (*LimitDecision, error)
}

type attemptLimitValidator struct {
	attemptRepo repository.AttemptRepository
	cache       cache.Cache
	ttl         time.Duration
	retryCfg    repository.RetryConfig
}

func NewAttemptLimitValidator(attemptRepo repository.AttemptRepository, c cache.Cache, ttl time.Duration) AttemptLimitValidator {
	return &attemptLimitValidator{
		attemptRepo: attemptRepo,
		cache:       c,
		ttl:         ttl,
		retryCfg:    repository.DefaultRetryConfig(),
	}
}

func (v *attemptLimitValidator) Validate(ctx context.Context, testID, userID uuid.UUID, scope model.Scope, maxAttempts int) (*LimitDecision, error) {
	key := cache.ValidationKey(scope, testID, userID)

	var cached LimitDecision
	if hit, err := v.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Validation cache read failed, falling through to store")
	} else if hit && cached.MaxAttempts == maxAttempts {
		return &cached, nil
	}

	var count int64
	err := repository.WithRetry(ctx, v.retryCfg, func() error {
		var qErr error
		count, qErr = v.attemptRepo.CountNonCancelled(ctx, testID, userID, scope)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	decision := LimitDecision{
		Allowed:       true,
		AttemptNumber: int(count) + 1,
		AttemptsUsed:  int(count),
		MaxAttempts:   maxAttempts,
	}
	// maxAttempts <= 0 means the test places no limit.
	if maxAttempts > 0 && count >= int64(maxAttempts) {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf("maximum attempts (%d) exceeded", maxAttempts)
	}

	if err := v.cache.Set(ctx, key, decision, v.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Validation cache write failed")
	}
	return &decision, nil
}
