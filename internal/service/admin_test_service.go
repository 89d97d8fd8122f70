package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/ndthang/examcore/internal/apperr"
	"github.com/ndthang/examcore/internal/dto"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminTestService manages the test catalog for admin callers.
type AdminTestService interface {
	CreateTest(ctx context.Context, req dto.TestCreateDTO, scope model.Scope) (*dto.TestResponseDTO, error)
	GetTest(ctx context.Context, testID uuid.UUID, scope model.Scope) (*dto.TestResponseDTO, error)
}

type adminTestService struct {
	testRepo repository.TestRepository
}

func NewAdminTestService(testRepo repository.TestRepository) AdminTestService {
	return &adminTestService{testRepo: testRepo}
}

func (s *adminTestService) CreateTest(ctx context.Context, req dto.TestCreateDTO, scope model.Scope) (*dto.TestResponseDTO, error) {
	test := &model.Test{
		Title:           req.Title,
		Description:     req.Description,
		OrganizationID:  scope.OrganizationID,
		BranchID:        scope.BranchID,
		DurationMinutes: req.DurationMinutes,
		MaxAttempts:     req.MaxAttempts,
		PassingScore:    req.PassingScore,
		IsActive:        true,
	}
	for _, q := range req.Questions {
		test.Questions = append(test.Questions, model.Question{
			Prompt:        q.Prompt,
			Type:          model.QuestionType(q.Type),
			OrderInTest:   q.OrderInTest,
			Options:       datatypes.JSON(q.Options),
			CorrectAnswer: datatypes.JSON(q.CorrectAnswer),
			MaxScore:      q.MaxScore,
		})
	}

	if err := s.testRepo.Create(ctx, test); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to create test")
		return nil, storeErr(err)
	}
	log.Info().Str("testID", test.ID.String()).Int("questions", len(test.Questions)).Msg("Test created")
	return testToDTO(test)
}

func (s *adminTestService) GetTest(ctx context.Context, testID uuid.UUID, scope model.Scope) (*dto.TestResponseDTO, error) {
	if _, err := s.testRepo.FindByIDInScope(ctx, testID, scope); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("test not found")
		}
		return nil, storeErr(err)
	}
	test, err := s.testRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		return nil, storeErr(err)
	}
	return testToDTO(test)
}

func testToDTO(test *model.Test) (*dto.TestResponseDTO, error) {
	var resp dto.TestResponseDTO
	if err := copier.Copy(&resp, test); err != nil {
		log.Error().Err(err).Msg("Failed to copy test to response DTO")
		return nil, apperr.Internal(err)
	}
	return &resp, nil
}
