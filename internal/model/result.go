package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Result is the graded outcome generated from a submitted attempt. Kept
// append-only for audit and reporting collaborators.
type Result struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID      uuid.UUID  `json:"attempt_id" gorm:"type:uuid;not null;uniqueIndex"`
	TestID         uuid.UUID  `json:"test_id" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	BranchID       *uuid.UUID `json:"branch_id,omitempty" gorm:"type:uuid"`

	TotalScore float64 `json:"total_score" gorm:"not null"`
	MaxScore   float64 `json:"max_score" gorm:"not null"`
	Percentage float64 `json:"percentage" gorm:"not null"`
	Passed     *bool   `json:"passed,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Result) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
