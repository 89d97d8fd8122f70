package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QuestionCreateDTO struct {
	Prompt        string          `json:"prompt" binding:"required"`
	Type          string          `json:"type" binding:"required,oneof=single_choice multiple_choice free_text"`
	OrderInTest   int             `json:"order_in_test" binding:"required,min=1"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	MaxScore      float64         `json:"max_score" binding:"required,gt=0"`
}

type TestCreateDTO struct {
	Title           string              `json:"title" binding:"required"`
	Description     string              `json:"description,omitempty"`
	DurationMinutes *int                `json:"duration_minutes,omitempty" binding:"omitempty,gt=0"`
	MaxAttempts     int                 `json:"max_attempts" binding:"min=0"`
	PassingScore    *int                `json:"passing_score,omitempty" binding:"omitempty,min=0,max=100"`
	Questions       []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

type QuestionResponseDTO struct {
	ID          uuid.UUID       `json:"id"`
	TestID      uuid.UUID       `json:"test_id"`
	Prompt      string          `json:"prompt"`
	Type        string          `json:"type"`
	OrderInTest int             `json:"order_in_test"`
	Options     json.RawMessage `json:"options,omitempty"`
	MaxScore    float64         `json:"max_score"`
}

type TestResponseDTO struct {
	ID              uuid.UUID             `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	DurationMinutes *int                  `json:"duration_minutes,omitempty"`
	MaxAttempts     int                   `json:"max_attempts"`
	PassingScore    *int                  `json:"passing_score,omitempty"`
	IsActive        bool                  `json:"is_active"`
	Questions       []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
