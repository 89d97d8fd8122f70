package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
	"gorm.io/gorm"
)

// ErrStaleTransition is returned when a guarded status update matched no
// row: the attempt moved to another status between read and write.
var ErrStaleTransition = errors.New("attempt status changed concurrently")

// ListOptions parameterizes paginated attempt queries.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *model.AttemptStatus
	UserID   *uuid.UUID
	From     *time.Time
	To       *time.Time
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 20
	}
	if o.PageSize > 100 {
		o.PageSize = 100
	}
	return o
}

// CacheVariant encodes the parameterization into a stable cache key suffix.
func (o ListOptions) CacheVariant() string {
	o = o.normalized()
	status, user, from, to := "-", "-", "-", "-"
	if o.Status != nil {
		status = string(*o.Status)
	}
	if o.UserID != nil {
		user = o.UserID.String()
	}
	if o.From != nil {
		from = fmt.Sprintf("%d", o.From.Unix())
	}
	if o.To != nil {
		to = fmt.Sprintf("%d", o.To.Unix())
	}
	return fmt.Sprintf("p%d:s%d:%s:%s:%s:%s", o.Page, o.PageSize, status, user, from, to)
}

// AttemptStats are the per-test aggregates served from the stats cache.
type AttemptStats struct {
	TotalAttempts   int64   `json:"total_attempts"`
	InProgress      int64   `json:"in_progress"`
	Submitted       int64   `json:"submitted"`
	Expired         int64   `json:"expired"`
	Cancelled       int64   `json:"cancelled"`
	UniqueUsers     int64   `json:"unique_users"`
	AverageProgress float64 `json:"average_progress"`
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *model.Attempt) error
	FindByID(ctx context.Context, id uuid.UUID, scope model.Scope) (*model.Attempt, error)
	// FindInProgress returns IN_PROGRESS attempts for (test, user, scope),
	// newest first. More than one row is an anomaly the resolver heals.
	FindInProgress(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) ([]model.Attempt, error)
	// CountNonCancelled counts attempts consuming the user's quota.
	CountNonCancelled(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (int64, error)
	FindByUser(ctx context.Context, userID uuid.UUID, scope model.Scope, opts ListOptions) ([]model.Attempt, int64, error)
	FindByTest(ctx context.Context, testID uuid.UUID, scope model.Scope, opts ListOptions) ([]model.Attempt, int64, error)
	// TransitionStatus performs a guarded compare-and-set on status plus any
	// extra column updates. Returns ErrStaleTransition when the guard fails.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.AttemptStatus, updates map[string]any) error
	// UpdateProgress writes progress under the IN_PROGRESS guard.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error
	FindExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error)
	Stats(ctx context.Context, testID uuid.UUID, scope model.Scope) (*AttemptStats, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// EnsureAttemptIndexes creates the partial unique index that enforces at
// most one IN_PROGRESS attempt per (test, user, scope) at the store level.
// The resolver remains the fallback for engines without partial indexes.
func EnsureAttemptIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_live
		ON attempts (test_id, user_id, organization_id, COALESCE(branch_id, '00000000-0000-0000-0000-000000000000'::uuid))
		WHERE status = 'IN_PROGRESS' AND deleted_at IS NULL
	`).Error
}

func scopeWhere(db *gorm.DB, scope model.Scope) *gorm.DB {
	db = db.Where("organization_id = ?", scope.OrganizationID)
	if scope.BranchID != nil {
		return db.Where("branch_id = ?", *scope.BranchID)
	}
	return db.Where("branch_id IS NULL")
}

func (r *attemptRepository) Create(ctx context.Context, attempt *model.Attempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) FindByID(ctx context.Context, id uuid.UUID, scope model.Scope) (*model.Attempt, error) {
	var attempt model.Attempt
	err := scopeWhere(r.db.WithContext(ctx), scope).
		Where("id = ?", id).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindInProgress(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := scopeWhere(r.db.WithContext(ctx), scope).
		Where("test_id = ? AND user_id = ? AND status = ?", testID, userID, model.AttemptStatusInProgress).
		Order("created_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) CountNonCancelled(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (int64, error) {
	var count int64
	err := scopeWhere(r.db.WithContext(ctx).Model(&model.Attempt{}), scope).
		Where("test_id = ? AND user_id = ? AND status <> ?", testID, userID, model.AttemptStatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *attemptRepository) applyListFilter(db *gorm.DB, opts ListOptions) *gorm.DB {
	if opts.Status != nil {
		db = db.Where("status = ?", *opts.Status)
	}
	if opts.UserID != nil {
		db = db.Where("user_id = ?", *opts.UserID)
	}
	if opts.From != nil {
		db = db.Where("start_time >= ?", *opts.From)
	}
	if opts.To != nil {
		db = db.Where("start_time <= ?", *opts.To)
	}
	return db
}

func (r *attemptRepository) list(ctx context.Context, base *gorm.DB, opts ListOptions) ([]model.Attempt, int64, error) {
	opts = opts.normalized()
	query := r.applyListFilter(base, opts)

	var total int64
	if err := query.Session(&gorm.Session{}).Model(&model.Attempt{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	err := query.
		Order("created_at DESC").
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&attempts).Error
	return attempts, total, err
}

func (r *attemptRepository) FindByUser(ctx context.Context, userID uuid.UUID, scope model.Scope, opts ListOptions) ([]model.Attempt, int64, error) {
	base := scopeWhere(r.db.WithContext(ctx), scope).Where("user_id = ?", userID)
	return r.list(ctx, base, opts)
}

func (r *attemptRepository) FindByTest(ctx context.Context, testID uuid.UUID, scope model.Scope, opts ListOptions) ([]model.Attempt, int64, error) {
	base := scopeWhere(r.db.WithContext(ctx), scope).Where("test_id = ?", testID)
	return r.list(ctx, base, opts)
}

func (r *attemptRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.AttemptStatus, updates map[string]any) error {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *attemptRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	res := r.db.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", id, model.AttemptStatusInProgress).
		Update("progress_percentage", progress)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *attemptRepository) FindExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.AttemptStatusInProgress, now).
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) Stats(ctx context.Context, testID uuid.UUID, scope model.Scope) (*AttemptStats, error) {
	var stats AttemptStats
	err := scopeWhere(r.db.WithContext(ctx).Model(&model.Attempt{}), scope).
		Where("test_id = ?", testID).
		Select(`
			COUNT(*) AS total_attempts,
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS') AS in_progress,
			COUNT(*) FILTER (WHERE status = 'SUBMITTED') AS submitted,
			COUNT(*) FILTER (WHERE status = 'EXPIRED') AS expired,
			COUNT(*) FILTER (WHERE status = 'CANCELLED') AS cancelled,
			COUNT(DISTINCT user_id) AS unique_users,
			COALESCE(AVG(progress_percentage), 0) AS average_progress`).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
