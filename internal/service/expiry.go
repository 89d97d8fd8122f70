package service

import (
	"time"

	"github.com/ndthang/examcore/internal/model"
)

// ComputeExpiry derives the attempt deadline from its start time and the
// test duration. Untimed tests (nil duration) yield no deadline.
func ComputeExpiry(startTime time.Time, durationMinutes *int) *time.Time {
	if durationMinutes == nil {
		return nil
	}
	expiresAt := startTime.Add(time.Duration(*durationMinutes) * time.Minute)
	return &expiresAt
}

// IsExpired reports logical expiry: the deadline has passed regardless of
// what the persisted status still says. Pure, no side effects.
func IsExpired(attempt *model.Attempt, now time.Time) bool {
	return attempt.ExpiresAt != nil && now.After(*attempt.ExpiresAt)
}
