package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
	"github.com/stretchr/testify/require"
)

func TestListOptions_Normalized(t *testing.T) {
	opts := ListOptions{}.normalized()
	require.Equal(t, 1, opts.Page)
	require.Equal(t, 20, opts.PageSize)

	opts = ListOptions{Page: -3, PageSize: 5000}.normalized()
	require.Equal(t, 1, opts.Page)
	require.Equal(t, 100, opts.PageSize)
}

func TestListOptions_CacheVariant(t *testing.T) {
	require.Equal(t, "p1:s20:-:-:-:-", ListOptions{}.CacheVariant())

	status := model.AttemptStatusSubmitted
	userID := uuid.New()
	from := time.Unix(1700000000, 0)
	variant := ListOptions{Page: 2, PageSize: 50, Status: &status, UserID: &userID, From: &from}.CacheVariant()
	require.Contains(t, variant, "p2:s50")
	require.Contains(t, variant, "SUBMITTED")
	require.Contains(t, variant, userID.String())
	require.Contains(t, variant, "1700000000")
}

func TestListOptions_DistinctParameterizationsDistinctVariants(t *testing.T) {
	status := model.AttemptStatusExpired
	variants := []string{
		ListOptions{}.CacheVariant(),
		ListOptions{Page: 2}.CacheVariant(),
		ListOptions{PageSize: 50}.CacheVariant(),
		ListOptions{Status: &status}.CacheVariant(),
	}
	seen := make(map[string]struct{})
	for _, v := range variants {
		_, dup := seen[v]
		require.False(t, dup, "duplicate variant %s", v)
		seen[v] = struct{}{}
	}
}
