package cache

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
)

// Key families for attempt reads. Every key embeds the tenant scope so one
// organization can never observe another's cached rows.
const keyRoot = "examcore"

func scoped(scope model.Scope, parts string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyRoot, scope.OrganizationID, scope.BranchKey(), parts)
}

func AttemptKey(scope model.Scope, attemptID uuid.UUID) string {
	return scoped(scope, "attempt:"+attemptID.String())
}

// UserAttemptListPrefix covers every parameterization (filters, pagination)
// of a user's attempt list; invalidation deletes the whole prefix.
func UserAttemptListPrefix(scope model.Scope, userID uuid.UUID) string {
	return scoped(scope, "user-attempts:"+userID.String()+":")
}

func UserAttemptListKey(scope model.Scope, userID uuid.UUID, variant string) string {
	return UserAttemptListPrefix(scope, userID) + variant
}

func TestAttemptListPrefix(scope model.Scope, testID uuid.UUID) string {
	return scoped(scope, "test-attempts:"+testID.String()+":")
}

func TestAttemptListKey(scope model.Scope, testID uuid.UUID, variant string) string {
	return TestAttemptListPrefix(scope, testID) + variant
}

func ValidationKey(scope model.Scope, testID, userID uuid.UUID) string {
	return scoped(scope, fmt.Sprintf("validation:%s:%s", testID, userID))
}

func StatsKey(scope model.Scope, testID uuid.UUID) string {
	return scoped(scope, "stats:"+testID.String())
}
