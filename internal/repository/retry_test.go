package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	deadlock := &pgconn.PgError{Code: "40P01"}
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return deadlock
	})
	require.ErrorAs(t, err, new(*pgconn.PgError))
	require.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return gorm.ErrRecordNotFound
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Equal(t, 1, calls)
}

func TestWithRetry_UniqueViolationNotRetried(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return gorm.ErrDuplicatedKey
	})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	require.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, fastRetryConfig(), func() error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsTransient(&pgconn.PgError{Code: "40P01"}))
	require.True(t, IsTransient(&pgconn.PgError{Code: "57P01"}))
	require.True(t, IsTransient(&pgconn.PgError{Code: "08006"}))
	require.True(t, IsTransient(errors.Wrap(&pgconn.PgError{Code: "40001"}, "query")))

	require.False(t, IsTransient(nil))
	require.False(t, IsTransient(gorm.ErrRecordNotFound))
	require.False(t, IsTransient(gorm.ErrDuplicatedKey))
	require.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsTransient(errors.New("boom")))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsUniqueViolation(errors.Wrap(&pgconn.PgError{Code: "23505"}, "insert")))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	require.False(t, IsUniqueViolation(nil))
}
