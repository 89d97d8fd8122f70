package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLimitValidator_AllowsUnderLimit(t *testing.T) {
	repo := newFakeAttemptRepo()
	validator := NewAttemptLimitValidator(repo, cache.NewMemoryCache(), time.Minute)
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	decision, err := validator.Validate(context.Background(), testID, userID, scope, 3)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 1, decision.AttemptNumber)
	require.Equal(t, 0, decision.AttemptsUsed)
}

func TestLimitValidator_RejectsAtLimit(t *testing.T) {
	repo := newFakeAttemptRepo()
	validator := NewAttemptLimitValidator(repo, cache.NewMemoryCache(), time.Minute)
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		repo.put(&model.Attempt{
			TestID:         testID,
			UserID:         userID,
			OrganizationID: scope.OrganizationID,
			Status:         model.AttemptStatusSubmitted,
		})
	}

	decision, err := validator.Validate(context.Background(), testID, userID, scope, 3)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "maximum attempts")
	require.Equal(t, 3, decision.AttemptsUsed)
}

func TestLimitValidator_CancelledDoNotCount(t *testing.T) {
	repo := newFakeAttemptRepo()
	validator := NewAttemptLimitValidator(repo, cache.NewMemoryCache(), time.Minute)
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	repo.put(&model.Attempt{TestID: testID, UserID: userID, OrganizationID: scope.OrganizationID, Status: model.AttemptStatusSubmitted})
	repo.put(&model.Attempt{TestID: testID, UserID: userID, OrganizationID: scope.OrganizationID, Status: model.AttemptStatusCancelled})
	repo.put(&model.Attempt{TestID: testID, UserID: userID, OrganizationID: scope.OrganizationID, Status: model.AttemptStatusCancelled})

	decision, err := validator.Validate(context.Background(), testID, userID, scope, 2)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 1, decision.AttemptsUsed)
	require.Equal(t, 2, decision.AttemptNumber)
}

func TestLimitValidator_ZeroMeansUnlimited(t *testing.T) {
	repo := newFakeAttemptRepo()
	validator := NewAttemptLimitValidator(repo, cache.NewMemoryCache(), time.Minute)
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	for i := 0; i < 50; i++ {
		repo.put(&model.Attempt{TestID: testID, UserID: userID, OrganizationID: scope.OrganizationID, Status: model.AttemptStatusSubmitted})
	}

	decision, err := validator.Validate(context.Background(), testID, userID, scope, 0)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 51, decision.AttemptNumber)
}

func TestLimitValidator_CachedDecisionIgnoredWhenPolicyChanges(t *testing.T) {
	repo := newFakeAttemptRepo()
	c := cache.NewMemoryCache()
	validator := NewAttemptLimitValidator(repo, c, time.Minute)
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	repo.put(&model.Attempt{TestID: testID, UserID: userID, OrganizationID: scope.OrganizationID, Status: model.AttemptStatusSubmitted})

	first, err := validator.Validate(context.Background(), testID, userID, scope, 1)
	require.NoError(t, err)
	require.False(t, first.Allowed)

	// The test's policy was raised; the cached decision for the old limit
	// must not be served.
	second, err := validator.Validate(context.Background(), testID, userID, scope, 5)
	require.NoError(t, err)
	require.True(t, second.Allowed)
	require.Equal(t, 5, second.MaxAttempts)
}
