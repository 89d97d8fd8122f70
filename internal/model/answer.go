package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Answer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID  uuid.UUID `json:"attempt_id" gorm:"type:uuid;not null;index"`
	QuestionID uuid.UUID `json:"question_id" gorm:"type:uuid;not null;index"`
	Question   Question  `json:"question,omitempty" gorm:"foreignKey:QuestionID"`

	// Response is polymorphic on the question type: selected option ids for
	// choice questions, raw text for free text.
	Response datatypes.JSON `json:"response" gorm:"type:jsonb"`

	// IsCorrect stays nil until marked; free-text answers are left for
	// manual grading.
	IsCorrect *bool    `json:"is_correct,omitempty"`
	Score     *float64 `json:"score,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
