package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusExpired    AttemptStatus = "EXPIRED"
	AttemptStatusCancelled  AttemptStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptStatusInProgress
}

// Attempt is one timed session of a user taking a test. At most one
// IN_PROGRESS row may exist per (test, user, scope); the store enforces this
// with a partial unique index and the resolver self-heals any duplicates
// that slip through.
type Attempt struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TestID         uuid.UUID  `json:"test_id" gorm:"type:uuid;not null;index:idx_attempts_test_user,priority:1"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_attempts_test_user,priority:2;index:idx_attempts_user"`
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	BranchID       *uuid.UUID `json:"branch_id,omitempty" gorm:"type:uuid;index"`

	// AttemptNumber counts non-cancelled prior attempts + 1; assigned once
	// at creation and never reused.
	AttemptNumber int           `json:"attempt_number" gorm:"not null"`
	Status        AttemptStatus `json:"status" gorm:"type:varchar(16);not null;default:'IN_PROGRESS';index"`

	StartTime time.Time `json:"start_time" gorm:"not null"`
	// ExpiresAt is nil for untimed tests and immutable once set.
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	SubmitTime *time.Time `json:"submit_time,omitempty"`

	ProgressPercentage float64 `json:"progress_percentage" gorm:"not null;default:0"`

	Test    Test     `json:"test,omitempty" gorm:"foreignKey:TestID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Attempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Attempt) Scope() Scope {
	return Scope{OrganizationID: a.OrganizationID, BranchID: a.BranchID}
}
