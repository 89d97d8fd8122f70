package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
)

// StatsService recomputes per-test aggregates and repopulates the stats
// cache key. Triggered after submissions and available to admin callers.
type StatsService interface {
	RefreshTestStatistics(ctx context.Context, testID uuid.UUID, scope model.Scope) (*repository.AttemptStats, error)
}

type statsService struct {
	attemptRepo repository.AttemptRepository
	cache       cache.Cache
	ttl         time.Duration
}

func NewStatsService(attemptRepo repository.AttemptRepository, c cache.Cache, ttl time.Duration) StatsService {
	return &statsService{attemptRepo: attemptRepo, cache: c, ttl: ttl}
}

func (s *statsService) RefreshTestStatistics(ctx context.Context, testID uuid.UUID, scope model.Scope) (*repository.AttemptStats, error) {
	stats, err := s.attemptRepo.Stats(ctx, testID, scope)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.StatsKey(scope, testID), stats, s.ttl); err != nil {
		log.Warn().Err(err).Str("testID", testID.String()).Msg("Failed to repopulate stats cache")
	}
	return stats, nil
}
