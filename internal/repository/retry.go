package repository

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RetryConfig bounds the retry loop wrapped around store work.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

// IsTransient classifies store failures. Serialization conflicts, deadlocks
// and connection drops are retryable; constraint violations and not-found
// are permanent and must propagate unchanged.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected, class 08
		// connection exceptions, 57P01 admin_shutdown.
		if pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "57P01" {
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// e.g. the partial index guarding one live attempt per (test, user, scope).
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// WithRetry executes op, retrying transient failures with doubling backoff.
// Permanent failures return immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg = DefaultRetryConfig()
	}
	delay := cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = op()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Transient store failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
