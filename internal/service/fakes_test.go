package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/dto"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"gorm.io/gorm"
)

// fakeAttemptRepo is an in-memory AttemptRepository with the same guard
// semantics as the postgres implementation.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
	seq      int

	// createHook runs before Create persists anything; returning an error
	// simulates store failures such as unique violations.
	createHook func() error
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (f *fakeAttemptRepo) put(attempt *model.Attempt) *model.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	f.seq++
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	}
	cp := *attempt
	f.attempts[attempt.ID] = &cp
	return attempt
}

func (f *fakeAttemptRepo) get(id uuid.UUID) *model.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func sameScope(a *model.Attempt, scope model.Scope) bool {
	if a.OrganizationID != scope.OrganizationID {
		return false
	}
	if (a.BranchID == nil) != (scope.BranchID == nil) {
		return false
	}
	return a.BranchID == nil || *a.BranchID == *scope.BranchID
}

func (f *fakeAttemptRepo) Create(ctx context.Context, attempt *model.Attempt) error {
	if f.createHook != nil {
		hook := f.createHook
		f.createHook = nil
		if err := hook(); err != nil {
			return err
		}
	}
	f.put(attempt)
	return nil
}

func (f *fakeAttemptRepo) FindByID(ctx context.Context, id uuid.UUID, scope model.Scope) (*model.Attempt, error) {
	a := f.get(id)
	if a == nil || !sameScope(a, scope) {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (f *fakeAttemptRepo) FindInProgress(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.TestID == testID && a.UserID == userID && sameScope(a, scope) && a.Status == model.AttemptStatusInProgress {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeAttemptRepo) CountNonCancelled(ctx context.Context, testID, userID uuid.UUID, scope model.Scope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, a := range f.attempts {
		if a.TestID == testID && a.UserID == userID && sameScope(a, scope) && a.Status != model.AttemptStatusCancelled {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) FindByUser(ctx context.Context, userID uuid.UUID, scope model.Scope, opts repository.ListOptions) ([]model.Attempt, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID && sameScope(a, scope) {
			if opts.Status != nil && a.Status != *opts.Status {
				continue
			}
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) FindByTest(ctx context.Context, testID uuid.UUID, scope model.Scope, opts repository.ListOptions) ([]model.Attempt, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.TestID == testID && sameScope(a, scope) {
			if opts.Status != nil && a.Status != *opts.Status {
				continue
			}
			if opts.UserID != nil && a.UserID != *opts.UserID {
				continue
			}
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.AttemptStatus, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.Status != from {
		return repository.ErrStaleTransition
	}
	a.Status = to
	for k, v := range updates {
		switch k {
		case "submit_time":
			t := v.(time.Time)
			a.SubmitTime = &t
		case "progress_percentage":
			a.ProgressPercentage = v.(float64)
		}
	}
	return nil
}

func (f *fakeAttemptRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return repository.ErrStaleTransition
	}
	a.ProgressPercentage = progress
	return nil
}

func (f *fakeAttemptRepo) FindExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.Status == model.AttemptStatusInProgress && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			out = append(out, *a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) Stats(ctx context.Context, testID uuid.UUID, scope model.Scope) (*repository.AttemptStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.AttemptStats{}
	users := make(map[uuid.UUID]struct{})
	var progressSum float64
	for _, a := range f.attempts {
		if a.TestID != testID || !sameScope(a, scope) {
			continue
		}
		stats.TotalAttempts++
		progressSum += a.ProgressPercentage
		users[a.UserID] = struct{}{}
		switch a.Status {
		case model.AttemptStatusInProgress:
			stats.InProgress++
		case model.AttemptStatusSubmitted:
			stats.Submitted++
		case model.AttemptStatusExpired:
			stats.Expired++
		case model.AttemptStatusCancelled:
			stats.Cancelled++
		}
	}
	stats.UniqueUsers = int64(len(users))
	if stats.TotalAttempts > 0 {
		stats.AverageProgress = progressSum / float64(stats.TotalAttempts)
	}
	return stats, nil
}

type fakeCatalog struct {
	tests map[uuid.UUID]*TestForAttempt
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{tests: make(map[uuid.UUID]*TestForAttempt)}
}

func (f *fakeCatalog) addTest(maxAttempts int, durationMinutes *int) uuid.UUID {
	id := uuid.New()
	f.tests[id] = &TestForAttempt{
		ID:              id,
		Title:           "fixture test",
		IsActive:        true,
		DurationMinutes: durationMinutes,
		MaxAttempts:     maxAttempts,
	}
	return id
}

func (f *fakeCatalog) GetTestForAttempt(ctx context.Context, testID uuid.UUID, scope model.Scope) (*TestForAttempt, error) {
	if t, ok := f.tests[testID]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalog) GetTestConfiguration(ctx context.Context, testID uuid.UUID) (*TestConfiguration, error) {
	if t, ok := f.tests[testID]; ok {
		return &TestConfiguration{IsActive: t.IsActive, MaxAttempts: t.MaxAttempts}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalog) GetQuestionCount(ctx context.Context, testID uuid.UUID, scope model.Scope) (int, error) {
	return 10, nil
}

type fakeAnswers struct {
	bulkCreated int
	autoMarked  int
}

func (f *fakeAnswers) BulkCreateAnswers(ctx context.Context, attemptID uuid.UUID, submissions []dto.AnswerSubmission, scope model.Scope) ([]model.Answer, error) {
	f.bulkCreated += len(submissions)
	return nil, nil
}

func (f *fakeAnswers) AutoMark(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (int, error) {
	f.autoMarked++
	return 0, nil
}

func (f *fakeAnswers) CountByAttempt(ctx context.Context, attemptID uuid.UUID, scope model.Scope) (int64, error) {
	return 4, nil
}

type fakeResults struct {
	created []uuid.UUID
}

func (f *fakeResults) CreateFromAttempt(ctx context.Context, attempt *model.Attempt) (*model.Result, error) {
	f.created = append(f.created, attempt.ID)
	return &model.Result{AttemptID: attempt.ID}, nil
}

type fakeStats struct {
	refreshed int
}

func (f *fakeStats) RefreshTestStatistics(ctx context.Context, testID uuid.UUID, scope model.Scope) (*repository.AttemptStats, error) {
	f.refreshed++
	return &repository.AttemptStats{}, nil
}
