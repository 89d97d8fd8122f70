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

func seedResolverAttempt(repo *fakeAttemptRepo, testID, userID uuid.UUID, scope model.Scope, status model.AttemptStatus, createdAt time.Time, expiresAt *time.Time) *model.Attempt {
	attempt := &model.Attempt{
		TestID:         testID,
		UserID:         userID,
		OrganizationID: scope.OrganizationID,
		BranchID:       scope.BranchID,
		Status:         status,
		StartTime:      createdAt,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
	}
	repo.put(attempt)
	return attempt
}

func TestResolver_NoLiveAttempt(t *testing.T) {
	repo := newFakeAttemptRepo()
	resolver := NewAttemptResolver(repo, cache.NewMemoryCache())

	got, err := resolver.ResolveLive(context.Background(), uuid.New(), uuid.New(), model.Scope{OrganizationID: uuid.New()})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestResolver_ReturnsLiveAttempt(t *testing.T) {
	repo := newFakeAttemptRepo()
	resolver := NewAttemptResolver(repo, cache.NewMemoryCache())
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	want := seedResolverAttempt(repo, testID, userID, scope, model.AttemptStatusInProgress, time.Now(), nil)

	got, err := resolver.ResolveLive(context.Background(), testID, userID, scope)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, want.ID, got.ID)
}

func TestResolver_ExpiredAttemptIsHealedNotResumed(t *testing.T) {
	repo := newFakeAttemptRepo()
	resolver := NewAttemptResolver(repo, cache.NewMemoryCache())
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	past := time.Now().Add(-time.Minute)
	stale := seedResolverAttempt(repo, testID, userID, scope, model.AttemptStatusInProgress, time.Now().Add(-2*time.Hour), &past)

	got, err := resolver.ResolveLive(context.Background(), testID, userID, scope)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, model.AttemptStatusExpired, repo.get(stale.ID).Status)
}

func TestResolver_DuplicatesKeepNewestCancelRest(t *testing.T) {
	repo := newFakeAttemptRepo()
	resolver := NewAttemptResolver(repo, cache.NewMemoryCache())
	scope := model.Scope{OrganizationID: uuid.New()}
	testID, userID := uuid.New(), uuid.New()

	older := seedResolverAttempt(repo, testID, userID, scope, model.AttemptStatusInProgress, time.Now().Add(-10*time.Minute), nil)
	newer := seedResolverAttempt(repo, testID, userID, scope, model.AttemptStatusInProgress, time.Now(), nil)

	got, err := resolver.ResolveLive(context.Background(), testID, userID, scope)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, newer.ID, got.ID)
	require.Equal(t, model.AttemptStatusCancelled, repo.get(older.ID).Status)
	require.Equal(t, model.AttemptStatusInProgress, repo.get(newer.ID).Status)
}

func TestResolver_ScopeIsolation(t *testing.T) {
	repo := newFakeAttemptRepo()
	resolver := NewAttemptResolver(repo, cache.NewMemoryCache())
	testID, userID := uuid.New(), uuid.New()
	scopeA := model.Scope{OrganizationID: uuid.New()}
	branch := uuid.New()
	scopeB := model.Scope{OrganizationID: scopeA.OrganizationID, BranchID: &branch}

	seedResolverAttempt(repo, testID, userID, scopeA, model.AttemptStatusInProgress, time.Now(), nil)

	// A branch-scoped lookup must not see the org-level attempt.
	got, err := resolver.ResolveLive(context.Background(), testID, userID, scopeB)
	require.NoError(t, err)
	require.Nil(t, got)
}
