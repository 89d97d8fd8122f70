package service

import (
	"context"

	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
)

// ResultService turns a submitted attempt into a persisted, graded result.
type ResultService interface {
	CreateFromAttempt(ctx context.Context, attempt *model.Attempt) (*model.Result, error)
}

type resultService struct {
	testRepo   repository.TestRepository
	answerRepo repository.AnswerRepository
	resultRepo repository.ResultRepository
}

func NewResultService(
	testRepo repository.TestRepository,
	answerRepo repository.AnswerRepository,
	resultRepo repository.ResultRepository,
) ResultService {
	return &resultService{
		testRepo:   testRepo,
		answerRepo: answerRepo,
		resultRepo: resultRepo,
	}
}

func (s *resultService) CreateFromAttempt(ctx context.Context, attempt *model.Attempt) (*model.Result, error) {
	test, err := s.testRepo.FindByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.FindByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	var totalScore, maxScore float64
	for _, q := range test.Questions {
		maxScore += q.MaxScore
	}
	for _, a := range answers {
		if a.Score != nil {
			totalScore += *a.Score
		}
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = totalScore / maxScore * 100
	}

	result := &model.Result{
		AttemptID:      attempt.ID,
		TestID:         attempt.TestID,
		UserID:         attempt.UserID,
		OrganizationID: attempt.OrganizationID,
		BranchID:       attempt.BranchID,
		TotalScore:     totalScore,
		MaxScore:       maxScore,
		Percentage:     percentage,
	}
	if test.PassingScore != nil {
		passed := percentage >= float64(*test.PassingScore)
		result.Passed = &passed
	}

	if err := s.resultRepo.Create(ctx, result); err != nil {
		return nil, err
	}
	log.Info().
		Str("attemptID", attempt.ID.String()).
		Float64("percentage", percentage).
		Msg("Result created from attempt")
	return result, nil
}
