package service

import (
	"context"
	"errors"
	"time"

	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const sweepBatchSize = 500

// ExpirySweeper periodically records attempts whose deadline passed without
// any read or write observing them. Lazy expiration at the boundaries remains
// authoritative; the sweeper only keeps stored state from drifting for
// attempts nobody touches again.
type ExpirySweeper struct {
	attemptRepo repository.AttemptRepository
	cache       cache.Cache
	schedule    string
	cron        *cron.Cron
}

func NewExpirySweeper(attemptRepo repository.AttemptRepository, c cache.Cache, schedule string) *ExpirySweeper {
	return &ExpirySweeper{
		attemptRepo: attemptRepo,
		cache:       c,
		schedule:    schedule,
	}
}

func (s *ExpirySweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("Expiry sweeper started")
	return nil
}

func (s *ExpirySweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep processes one batch and returns how many attempts were expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	attempts, err := s.attemptRepo.FindExpiredInProgress(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Expiry sweep query failed")
		return 0
	}

	swept := 0
	for i := range attempts {
		attempt := &attempts[i]
		err := s.attemptRepo.TransitionStatus(ctx, attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusExpired, nil)
		if errors.Is(err, repository.ErrStaleTransition) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("attemptID", attempt.ID.String()).Msg("Expiry sweep transition failed")
			continue
		}
		invalidateAttemptCaches(ctx, s.cache, attempt)
		swept++
	}
	if swept > 0 {
		log.Info().Int("swept", swept).Msg("Expiry sweep recorded overdue attempts")
	}
	return swept
}
