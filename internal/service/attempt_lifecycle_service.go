package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/ndthang/examcore/config"
	"github.com/ndthang/examcore/internal/apperr"
	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/dto"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AttemptLifecycleService is the public API governing the attempt state
// machine. It composes the resolver, the limit validator, the expiry policy
// and the cache discipline; every mutation runs through the retry wrapper
// and invalidates the affected cache key families after the store commit.
type AttemptLifecycleService interface {
	Start(ctx context.Context, req dto.StartAttemptRequest) (*dto.AttemptResponse, error)
	UpdateProgress(ctx context.Context, attemptID uuid.UUID, actor dto.Actor, req dto.UpdateProgressRequest) (*dto.AttemptResponse, error)
	Submit(ctx context.Context, attemptID uuid.UUID, actor dto.Actor, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error)
	Cancel(ctx context.Context, attemptID uuid.UUID, actor dto.Actor) error
	FindOne(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (*dto.AttemptResponse, error)
	GetUserAttempts(ctx context.Context, userID uuid.UUID, scope model.Scope, opts repository.ListOptions) (*dto.PagedAttempts, error)
	FindAttemptsByTest(ctx context.Context, testID uuid.UUID, scope model.Scope, opts repository.ListOptions) (*dto.PagedAttempts, error)
	ValidateAttemptLimits(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (*LimitDecision, error)
	GetStats(ctx context.Context, testID uuid.UUID, scope model.Scope) (*repository.AttemptStats, error)
	GetActiveAttempt(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (*dto.AttemptResponse, error)
	GetAttemptWithProgress(ctx context.Context, attemptID uuid.UUID, actor dto.Actor) (*dto.AttemptProgressResponse, error)
}

type attemptLifecycleService struct {
	attemptRepo repository.AttemptRepository
	resolver    AttemptResolver
	validator   AttemptLimitValidator
	catalog     CatalogService
	answers     AnswerService
	results     ResultService
	stats       StatsService
	cache       cache.Cache
	ttl         config.CacheTTL
	retryCfg    repository.RetryConfig
}

func NewAttemptLifecycleService(
	attemptRepo repository.AttemptRepository,
	resolver AttemptResolver,
	validator AttemptLimitValidator,
	catalog CatalogService,
	answers AnswerService,
	results ResultService,
	stats StatsService,
	c cache.Cache,
	ttl config.CacheTTL,
) AttemptLifecycleService {
	return &attemptLifecycleService{
		attemptRepo: attemptRepo,
		resolver:    resolver,
		validator:   validator,
		catalog:     catalog,
		answers:     answers,
		results:     results,
		stats:       stats,
		cache:       c,
		ttl:         ttl,
		retryCfg:    repository.DefaultRetryConfig(),
	}
}

// Start resumes the caller's live attempt when one exists, otherwise admits
// a new one under the attempt limit. Idempotent in effect: repeated calls
// while a live attempt exists return that same attempt.
func (s *attemptLifecycleService) Start(ctx context.Context, req dto.StartAttemptRequest) (*dto.AttemptResponse, error) {
	test, err := s.catalog.GetTestForAttempt(ctx, req.TestID, req.Scope)
	if err != nil {
		return nil, storeErr(err)
	}
	if !test.IsActive {
		return nil, apperr.PreconditionFailed("test is not active")
	}

	existing, err := s.resolver.ResolveLive(ctx, req.TestID, req.UserID, req.Scope)
	if err != nil {
		return nil, storeErr(err)
	}
	if existing != nil {
		log.Info().Str("attemptID", existing.ID.String()).Msg("Start resumed existing live attempt")
		return attemptToDTO(existing, true)
	}

	decision, err := s.validator.Validate(ctx, req.TestID, req.UserID, req.Scope, test.MaxAttempts)
	if err != nil {
		return nil, storeErr(err)
	}
	if !decision.Allowed {
		return nil, apperr.PreconditionFailed(decision.Reason)
	}

	now := time.Now()
	attempt := &model.Attempt{
		TestID:         req.TestID,
		UserID:         req.UserID,
		OrganizationID: req.Scope.OrganizationID,
		BranchID:       req.Scope.BranchID,
		AttemptNumber:  decision.AttemptNumber,
		Status:         model.AttemptStatusInProgress,
		StartTime:      now,
		ExpiresAt:      ComputeExpiry(now, test.DurationMinutes),
	}

	err = repository.WithRetry(ctx, s.retryCfg, func() error {
		return s.attemptRepo.Create(ctx, attempt)
	})
	if err != nil {
		// The partial unique index turns the concurrent-start race into a
		// constraint violation: the loser resumes the winner's attempt.
		if repository.IsUniqueViolation(err) {
			winner, rErr := s.resolver.ResolveLive(ctx, req.TestID, req.UserID, req.Scope)
			if rErr == nil && winner != nil {
				log.Info().Str("attemptID", winner.ID.String()).Msg("Start lost creation race, resuming winner")
				return attemptToDTO(winner, true)
			}
			return nil, apperr.PreconditionFailed("attempt already in progress")
		}
		return nil, storeErr(err)
	}

	invalidateAttemptCaches(ctx, s.cache, attempt)
	log.Info().
		Str("attemptID", attempt.ID.String()).
		Str("testID", req.TestID.String()).
		Int("attemptNumber", attempt.AttemptNumber).
		Msg("Attempt started")
	return attemptToDTO(attempt, false)
}

func (s *attemptLifecycleService) UpdateProgress(ctx context.Context, attemptID uuid.UUID, actor dto.Actor, req dto.UpdateProgressRequest) (*dto.AttemptResponse, error) {
	attempt, err := s.loadOwned(ctx, attemptID, actor)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, apperr.PreconditionFailed("attempt is not in progress")
	}
	if IsExpired(attempt, time.Now()) {
		s.recordExpiry(ctx, attempt)
		return nil, apperr.PreconditionFailed("attempt has expired")
	}

	if req.Submit {
		return s.Submit(ctx, attemptID, actor, dto.SubmitAttemptRequest{})
	}

	err = repository.WithRetry(ctx, s.retryCfg, func() error {
		return s.attemptRepo.UpdateProgress(ctx, attemptID, req.ProgressPercentage)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, apperr.PreconditionFailed("attempt is not in progress")
		}
		return nil, storeErr(err)
	}

	invalidateAttemptCaches(ctx, s.cache, attempt)
	attempt.ProgressPercentage = req.ProgressPercentage
	return attemptToDTO(attempt, false)
}

// Submit finalizes the attempt and triggers the downstream pipeline:
// answers bulk-create, auto-marking, result creation and stats refresh.
// Downstream failures are logged, not surfaced — the submission itself is
// already committed.
func (s *attemptLifecycleService) Submit(ctx context.Context, attemptID uuid.UUID, actor dto.Actor, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error) {
	attempt, err := s.loadOwned(ctx, attemptID, actor)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, apperr.PreconditionFailed("attempt is not in progress")
	}

	if len(req.Answers) > 0 {
		if _, err := s.answers.BulkCreateAnswers(ctx, attemptID, req.Answers, actor.Scope); err != nil {
			return nil, storeErr(err)
		}
	}

	now := time.Now()
	err = repository.WithRetry(ctx, s.retryCfg, func() error {
		return s.attemptRepo.TransitionStatus(ctx, attemptID, model.AttemptStatusInProgress, model.AttemptStatusSubmitted, map[string]any{
			"submit_time":         now,
			"progress_percentage": 100.0,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, apperr.PreconditionFailed("attempt is not in progress")
		}
		return nil, storeErr(err)
	}

	attempt.Status = model.AttemptStatusSubmitted
	attempt.SubmitTime = &now
	attempt.ProgressPercentage = 100

	invalidateAttemptCaches(ctx, s.cache, attempt)

	if marked, err := s.answers.AutoMark(ctx, attemptID, actor.Scope); err != nil {
		log.Error().Err(err).Str("attemptID", attemptID.String()).Msg("Auto-marking failed after submission")
	} else {
		log.Info().Str("attemptID", attemptID.String()).Int("marked", marked).Msg("Answers auto-marked")
	}
	if _, err := s.results.CreateFromAttempt(ctx, attempt); err != nil {
		log.Error().Err(err).Str("attemptID", attemptID.String()).Msg("Result creation failed after submission")
	}
	if _, err := s.stats.RefreshTestStatistics(ctx, attempt.TestID, actor.Scope); err != nil {
		log.Warn().Err(err).Str("testID", attempt.TestID.String()).Msg("Stats refresh failed after submission")
	}

	log.Info().Str("attemptID", attemptID.String()).Msg("Attempt submitted")
	return attemptToDTO(attempt, false)
}

func (s *attemptLifecycleService) Cancel(ctx context.Context, attemptID uuid.UUID, actor dto.Actor) error {
	attempt, err := s.loadOwned(ctx, attemptID, actor)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return apperr.PreconditionFailed("attempt is not in progress")
	}

	err = repository.WithRetry(ctx, s.retryCfg, func() error {
		return s.attemptRepo.TransitionStatus(ctx, attemptID, model.AttemptStatusInProgress, model.AttemptStatusCancelled, nil)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return apperr.PreconditionFailed("attempt is not in progress")
		}
		return storeErr(err)
	}

	attempt.Status = model.AttemptStatusCancelled
	invalidateAttemptCaches(ctx, s.cache, attempt)
	log.Info().Str("attemptID", attemptID.String()).Msg("Attempt cancelled")
	return nil
}

func (s *attemptLifecycleService) FindOne(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (*dto.AttemptResponse, error) {
	key := cache.AttemptKey(scope, attemptID)
	var cached dto.AttemptResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Attempt cache read failed, falling through to store")
	} else if hit {
		return &cached, nil
	}

	attempt, err := s.load(ctx, attemptID, scope)
	if err != nil {
		return nil, err
	}
	s.observeExpiry(ctx, attempt)

	resp, err := attemptToDTO(attempt, false)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, resp, s.ttl.Attempt); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Attempt cache write failed")
	}
	return resp, nil
}

func (s *attemptLifecycleService) GetUserAttempts(ctx context.Context, userID uuid.UUID, scope model.Scope, opts repository.ListOptions) (*dto.PagedAttempts, error) {
	key := cache.UserAttemptListKey(scope, userID, opts.CacheVariant())
	var cached dto.PagedAttempts
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("List cache read failed, falling through to store")
	} else if hit {
		return &cached, nil
	}

	var attempts []model.Attempt
	var total int64
	err := repository.WithRetry(ctx, s.retryCfg, func() error {
		var qErr error
		attempts, total, qErr = s.attemptRepo.FindByUser(ctx, userID, scope, opts)
		return qErr
	})
	if err != nil {
		return nil, storeErr(err)
	}

	page, err := s.toPage(ctx, attempts, total, opts)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, page, s.ttl.List); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("List cache write failed")
	}
	return page, nil
}

func (s *attemptLifecycleService) FindAttemptsByTest(ctx context.Context, testID uuid.UUID, scope model.Scope, opts repository.ListOptions) (*dto.PagedAttempts, error) {
	key := cache.TestAttemptListKey(scope, testID, opts.CacheVariant())
	var cached dto.PagedAttempts
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("List cache read failed, falling through to store")
	} else if hit {
		return &cached, nil
	}

	var attempts []model.Attempt
	var total int64
	err := repository.WithRetry(ctx, s.retryCfg, func() error {
		var qErr error
		attempts, total, qErr = s.attemptRepo.FindByTest(ctx, testID, scope, opts)
		return qErr
	})
	if err != nil {
		return nil, storeErr(err)
	}

	page, err := s.toPage(ctx, attempts, total, opts)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, page, s.ttl.List); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("List cache write failed")
	}
	return page, nil
}

func (s *attemptLifecycleService) ValidateAttemptLimits(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (*LimitDecision, error) {
	cfg, err := s.catalog.GetTestConfiguration(ctx, testID)
	if err != nil {
		return nil, storeErr(err)
	}
	decision, err := s.validator.Validate(ctx, testID, userID, scope, cfg.MaxAttempts)
	if err != nil {
		return nil, storeErr(err)
	}
	return decision, nil
}

func (s *attemptLifecycleService) GetStats(ctx context.Context, testID uuid.UUID, scope model.Scope) (*repository.AttemptStats, error) {
	key := cache.StatsKey(scope, testID)
	var cached repository.AttemptStats
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Stats cache read failed, falling through to store")
	} else if hit {
		return &cached, nil
	}

	var stats *repository.AttemptStats
	err := repository.WithRetry(ctx, s.retryCfg, func() error {
		var qErr error
		stats, qErr = s.attemptRepo.Stats(ctx, testID, scope)
		return qErr
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.cache.Set(ctx, key, stats, s.ttl.Stats); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
	}
	return stats, nil
}

func (s *attemptLifecycleService) GetActiveAttempt(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (*dto.AttemptResponse, error) {
	attempt, err := s.resolver.ResolveLive(ctx, testID, userID, scope)
	if err != nil {
		return nil, storeErr(err)
	}
	if attempt == nil {
		return nil, apperr.NotFound("no active attempt")
	}
	return attemptToDTO(attempt, false)
}

func (s *attemptLifecycleService) GetAttemptWithProgress(ctx context.Context, attemptID uuid.UUID, actor dto.Actor) (*dto.AttemptProgressResponse, error) {
	attempt, err := s.loadOwned(ctx, attemptID, actor)
	if err != nil {
		return nil, err
	}
	s.observeExpiry(ctx, attempt)

	resp, err := attemptToDTO(attempt, false)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	progress := &dto.AttemptProgressResponse{
		Attempt:            *resp,
		TimeElapsedSeconds: int64(now.Sub(attempt.StartTime).Seconds()),
	}
	if attempt.ExpiresAt != nil {
		remaining := int64(attempt.ExpiresAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		progress.TimeRemainingSeconds = &remaining
	}

	if answered, err := s.answers.CountByAttempt(ctx, attemptID, actor.Scope); err != nil {
		log.Warn().Err(err).Str("attemptID", attemptID.String()).Msg("Failed to count answers for progress view")
	} else {
		progress.AnsweredQuestions = int(answered)
	}
	if total, err := s.catalog.GetQuestionCount(ctx, attempt.TestID, actor.Scope); err != nil {
		log.Warn().Err(err).Str("testID", attempt.TestID.String()).Msg("Failed to count questions for progress view")
	} else {
		progress.TotalQuestions = total
	}
	return progress, nil
}

func (s *attemptLifecycleService) load(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (*model.Attempt, error) {
	var attempt *model.Attempt
	err := repository.WithRetry(ctx, s.retryCfg, func() error {
		var qErr error
		attempt, qErr = s.attemptRepo.FindByID(ctx, attemptID, scope)
		return qErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("attempt not found")
		}
		return nil, storeErr(err)
	}
	return attempt, nil
}

// loadOwned additionally enforces that the attempt belongs to the caller.
// Cross-tenant access already surfaces as not-found through the scoped query.
func (s *attemptLifecycleService) loadOwned(ctx context.Context, attemptID uuid.UUID, actor dto.Actor) (*model.Attempt, error) {
	attempt, err := s.load(ctx, attemptID, actor.Scope)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != actor.UserID {
		return nil, apperr.Forbidden("attempt belongs to another user")
	}
	return attempt, nil
}

// observeExpiry applies lazy expiration at a read boundary: a logically
// expired attempt is recorded as EXPIRED and never presented as live.
func (s *attemptLifecycleService) observeExpiry(ctx context.Context, attempt *model.Attempt) {
	if attempt.Status != model.AttemptStatusInProgress || !IsExpired(attempt, time.Now()) {
		return
	}
	s.recordExpiry(ctx, attempt)
}

// recordExpiry is best-effort cleanup off the caller's critical path; the
// local copy is always marked so the caller observes EXPIRED either way.
func (s *attemptLifecycleService) recordExpiry(ctx context.Context, attempt *model.Attempt) {
	err := s.attemptRepo.TransitionStatus(ctx, attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusExpired, nil)
	if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		log.Error().Err(err).Str("attemptID", attempt.ID.String()).Msg("Failed to record attempt expiry")
	}
	if err == nil {
		invalidateAttemptCaches(ctx, s.cache, attempt)
	}
	attempt.Status = model.AttemptStatusExpired
}

func (s *attemptLifecycleService) toPage(ctx context.Context, attempts []model.Attempt, total int64, opts repository.ListOptions) (*dto.PagedAttempts, error) {
	items := make([]dto.AttemptResponse, 0, len(attempts))
	for i := range attempts {
		s.observeExpiry(ctx, &attempts[i])
		item, err := attemptToDTO(&attempts[i], false)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	page := opts
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = 20
	}
	return &dto.PagedAttempts{
		Items:    items,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func attemptToDTO(attempt *model.Attempt, resumed bool) (*dto.AttemptResponse, error) {
	var resp dto.AttemptResponse
	if err := copier.Copy(&resp, attempt); err != nil {
		log.Error().Err(err).Msg("Failed to copy attempt to response DTO")
		return nil, apperr.Internal(err)
	}
	resp.Resumed = resumed
	return &resp, nil
}

// storeErr folds untyped infrastructure errors into the taxonomy; typed
// errors pass through unchanged so reasons reach the caller intact.
func storeErr(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("record not found")
	}
	if repository.IsTransient(err) {
		return apperr.Transient(err)
	}
	return apperr.Internal(err)
}
