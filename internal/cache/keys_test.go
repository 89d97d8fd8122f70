package cache

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
	"github.com/stretchr/testify/require"
)

func TestKeys_EmbedTenantScope(t *testing.T) {
	org := uuid.New()
	branch := uuid.New()
	attemptID := uuid.New()

	orgScope := model.Scope{OrganizationID: org}
	branchScope := model.Scope{OrganizationID: org, BranchID: &branch}

	orgKey := AttemptKey(orgScope, attemptID)
	branchKey := AttemptKey(branchScope, attemptID)

	require.NotEqual(t, orgKey, branchKey)
	require.Contains(t, orgKey, org.String())
	require.Contains(t, branchKey, branch.String())
}

func TestKeys_NilBranchUsesPlaceholder(t *testing.T) {
	scope := model.Scope{OrganizationID: uuid.New()}
	key := AttemptKey(scope, uuid.New())
	require.Contains(t, key, ":-:")
}

func TestKeys_ListVariantsShareInvalidationPrefix(t *testing.T) {
	scope := model.Scope{OrganizationID: uuid.New()}
	userID := uuid.New()

	prefix := UserAttemptListPrefix(scope, userID)
	pageOne := UserAttemptListKey(scope, userID, "p1:s20:-:-:-:-")
	pageTwo := UserAttemptListKey(scope, userID, "p2:s20:-:-:-:-")

	require.True(t, strings.HasPrefix(pageOne, prefix))
	require.True(t, strings.HasPrefix(pageTwo, prefix))
	require.NotEqual(t, pageOne, pageTwo)
}

func TestKeys_FamiliesAreDisjoint(t *testing.T) {
	scope := model.Scope{OrganizationID: uuid.New()}
	id := uuid.New()

	keys := []string{
		AttemptKey(scope, id),
		UserAttemptListKey(scope, id, "v"),
		TestAttemptListKey(scope, id, "v"),
		ValidationKey(scope, id, id),
		StatsKey(scope, id),
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		_, dup := seen[k]
		require.False(t, dup, "duplicate key %s", k)
		seen[k] = struct{}{}
	}
}
