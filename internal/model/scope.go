package model

import "github.com/google/uuid"

// Scope is the tenant context every query and cache key is isolated by.
// BranchID is optional; organization-wide records leave it nil.
type Scope struct {
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
}

// BranchKey returns a stable string for the branch dimension of cache keys
// and index expressions. Nil branch collapses to "-".
func (s Scope) BranchKey() string {
	if s.BranchID == nil {
		return "-"
	}
	return s.BranchID.String()
}
