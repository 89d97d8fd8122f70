package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(ctx context.Context, test *model.Test) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	FindByIDInScope(ctx context.Context, id uuid.UUID, scope model.Scope) (*model.Test, error)
	FindByIDWithQuestions(ctx context.Context, id uuid.UUID) (*model.Test, error)
	CountQuestions(ctx context.Context, testID uuid.UUID) (int64, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(ctx context.Context, test *model.Test) error {
	// Associated questions are created in the same insert.
	return r.db.WithContext(ctx).Create(test).Error
}

func (r *testRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	var test model.Test
	err := r.db.WithContext(ctx).First(&test, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByIDInScope(ctx context.Context, id uuid.UUID, scope model.Scope) (*model.Test, error) {
	var test model.Test
	err := scopeWhere(r.db.WithContext(ctx), scope).First(&test, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByIDWithQuestions(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	var test model.Test
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_test ASC")
		}).
		First(&test, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) CountQuestions(ctx context.Context, testID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Question{}).
		Where("test_id = ?", testID).
		Count(&count).Error
	return count, err
}
