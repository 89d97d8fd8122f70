package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
	"gorm.io/gorm"
)

type ResultRepository interface {
	Create(ctx context.Context, result *model.Result) error
	FindByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Create(ctx context.Context, result *model.Result) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *resultRepository) FindByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	var result model.Result
	err := r.db.WithContext(ctx).First(&result, "attempt_id = ?", attemptID).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
