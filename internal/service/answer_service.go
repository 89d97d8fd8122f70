package service

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/dto"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// AnswerService persists and marks the answers belonging to an attempt.
type AnswerService interface {
	BulkCreateAnswers(ctx context.Context, attemptID uuid.UUID, submissions []dto.AnswerSubmission, scope model.Scope) ([]model.Answer, error)
	// AutoMark grades choice questions against the stored correct answer and
	// returns how many answers were marked. Free-text answers are left for
	// manual grading.
	AutoMark(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (int, error)
	CountByAttempt(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (int64, error)
}

type answerService struct {
	attemptRepo repository.AttemptRepository
	testRepo    repository.TestRepository
	answerRepo  repository.AnswerRepository
}

func NewAnswerService(
	attemptRepo repository.AttemptRepository,
	testRepo repository.TestRepository,
	answerRepo repository.AnswerRepository,
) AnswerService {
	return &answerService{
		attemptRepo: attemptRepo,
		testRepo:    testRepo,
		answerRepo:  answerRepo,
	}
}

func (s *answerService) BulkCreateAnswers(ctx context.Context, attemptID uuid.UUID, submissions []dto.AnswerSubmission, scope model.Scope) ([]model.Answer, error) {
	if len(submissions) == 0 {
		return nil, nil
	}

	attempt, err := s.attemptRepo.FindByID(ctx, attemptID, scope)
	if err != nil {
		return nil, err
	}
	test, err := s.testRepo.FindByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	questionIDs := make(map[uuid.UUID]struct{}, len(test.Questions))
	for _, q := range test.Questions {
		questionIDs[q.ID] = struct{}{}
	}

	var answers []model.Answer
	for _, sub := range submissions {
		if _, ok := questionIDs[sub.QuestionID]; !ok {
			log.Warn().
				Str("attemptID", attemptID.String()).
				Str("questionID", sub.QuestionID.String()).
				Msg("Answer for a question not part of this test, skipping")
			continue
		}
		answers = append(answers, model.Answer{
			AttemptID:  attemptID,
			QuestionID: sub.QuestionID,
			Response:   datatypes.JSON(sub.Response),
		})
	}

	if err := s.answerRepo.CreateBatch(ctx, answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *answerService) AutoMark(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (int, error) {
	if _, err := s.attemptRepo.FindByID(ctx, attemptID, scope); err != nil {
		return 0, err
	}
	answers, err := s.answerRepo.FindByAttemptWithQuestions(ctx, attemptID)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range answers {
		answer := &answers[i]
		question := answer.Question
		if question.Type == model.QuestionTypeFreeText || len(question.CorrectAnswer) == 0 {
			continue
		}

		correct := jsonEqual(answer.Response, question.CorrectAnswer)
		score := 0.0
		if correct {
			score = question.MaxScore
		}
		answer.IsCorrect = &correct
		answer.Score = &score

		if err := s.answerRepo.UpdateMarking(ctx, answer); err != nil {
			log.Error().Err(err).Str("answerID", answer.ID.String()).Msg("Failed to save marked answer")
			continue
		}
		marked++
	}
	return marked, nil
}

func (s *answerService) CountByAttempt(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (int64, error) {
	if _, err := s.attemptRepo.FindByID(ctx, attemptID, scope); err != nil {
		return 0, err
	}
	return s.answerRepo.CountByAttempt(ctx, attemptID)
}

// jsonEqual compares two JSON documents structurally so formatting and key
// order differences do not affect marking.
func jsonEqual(a, b datatypes.JSON) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return bytes.Equal(a, b)
	}
	an, _ := json.Marshal(normalizeJSON(av))
	bn, _ := json.Marshal(normalizeJSON(bv))
	return bytes.Equal(an, bn)
}

// normalizeJSON sorts arrays of scalars so option order does not matter for
// multiple-choice answers.
func normalizeJSON(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	strs := make([]string, 0, len(arr))
	for _, item := range arr {
		b, _ := json.Marshal(item)
		strs = append(strs, string(b))
	}
	sort.Strings(strs)
	out := make([]json.RawMessage, len(strs))
	for i, s := range strs {
		out[i] = json.RawMessage(s)
	}
	return out
}
