package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	CreateBatch(ctx context.Context, answers []model.Answer) error
	// UpdateMarking persists the grading columns only, leaving the response
	// and the preloaded question association untouched.
	UpdateMarking(ctx context.Context, answer *model.Answer) error
	FindByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	FindByAttemptWithQuestions(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	CountByAttempt(ctx context.Context, attemptID uuid.UUID) (int64, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) CreateBatch(ctx context.Context, answers []model.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&answers).Error
}

func (r *answerRepository) UpdateMarking(ctx context.Context, answer *model.Answer) error {
	return r.db.WithContext(ctx).Model(&model.Answer{}).
		Where("id = ?", answer.ID).
		Updates(map[string]any{"is_correct": answer.IsCorrect, "score": answer.Score}).Error
}

func (r *answerRepository) FindByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) FindByAttemptWithQuestions(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Preload("Question").
		Where("attempt_id = ?", attemptID).
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) CountByAttempt(ctx context.Context, attemptID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Answer{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error
	return count, err
}
