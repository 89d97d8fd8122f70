package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/apperr"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TestForAttempt is the slice of the catalog the lifecycle manager needs to
// admit a new attempt.
type TestForAttempt struct {
	ID              uuid.UUID
	Title           string
	IsActive        bool
	DurationMinutes *int
	MaxAttempts     int
	PassingScore    *int
	OrganizationID  uuid.UUID
	BranchID        *uuid.UUID
}

type TestConfiguration struct {
	IsActive    bool
	MaxAttempts int
}

// CatalogService is the narrow read interface over the test catalog.
type CatalogService interface {
	GetTestForAttempt(ctx context.Context, testID uuid.UUID, scope model.Scope) (*TestForAttempt, error)
	GetTestConfiguration(ctx context.Context, testID uuid.UUID) (*TestConfiguration, error)
	GetQuestionCount(ctx context.Context, testID uuid.UUID, scope model.Scope) (int, error)
}

type catalogService struct {
	testRepo repository.TestRepository
}

func NewCatalogService(testRepo repository.TestRepository) CatalogService {
	return &catalogService{testRepo: testRepo}
}

func (s *catalogService) GetTestForAttempt(ctx context.Context, testID uuid.UUID, scope model.Scope) (*TestForAttempt, error) {
	test, err := s.testRepo.FindByIDInScope(ctx, testID, scope)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("test not found")
		}
		log.Error().Err(err).Str("testID", testID.String()).Msg("Failed to load test for attempt")
		return nil, err
	}
	return &TestForAttempt{
		ID:              test.ID,
		Title:           test.Title,
		IsActive:        test.IsActive,
		DurationMinutes: test.DurationMinutes,
		MaxAttempts:     test.MaxAttempts,
		PassingScore:    test.PassingScore,
		OrganizationID:  test.OrganizationID,
		BranchID:        test.BranchID,
	}, nil
}

func (s *catalogService) GetTestConfiguration(ctx context.Context, testID uuid.UUID) (*TestConfiguration, error) {
	test, err := s.testRepo.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("test not found")
		}
		return nil, err
	}
	return &TestConfiguration{IsActive: test.IsActive, MaxAttempts: test.MaxAttempts}, nil
}

func (s *catalogService) GetQuestionCount(ctx context.Context, testID uuid.UUID, scope model.Scope) (int, error) {
	if _, err := s.testRepo.FindByIDInScope(ctx, testID, scope); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.NotFound("test not found")
		}
		return 0, err
	}
	count, err := s.testRepo.CountQuestions(ctx, testID)
	return int(count), err
}
