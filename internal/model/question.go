package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "single_choice"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeFreeText       QuestionType = "free_text"
)

type Question struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	TestID      uuid.UUID    `json:"test_id" gorm:"type:uuid;not null;index"`
	Prompt      string       `json:"prompt" gorm:"type:text;not null"`
	Type        QuestionType `json:"type" gorm:"type:varchar(32);not null"`
	OrderInTest int          `json:"order_in_test" gorm:"not null"`

	// Options and CorrectAnswer are only meaningful for choice questions.
	Options       datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer datatypes.JSON `json:"-" gorm:"type:jsonb"`
	MaxScore      float64        `json:"max_score" gorm:"not null;default:1"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
