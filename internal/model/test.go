package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Test struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string     `json:"title" gorm:"not null"`
	Description    string     `json:"description,omitempty"`
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	BranchID       *uuid.UUID `json:"branch_id,omitempty" gorm:"type:uuid;index"`

	// DurationMinutes nil means the test is untimed.
	DurationMinutes *int `json:"duration_minutes,omitempty"`
	MaxAttempts     int  `json:"max_attempts" gorm:"not null;default:1"`
	PassingScore    *int `json:"passing_score,omitempty"`
	IsActive        bool `json:"is_active" gorm:"not null;default:true"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Test) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
