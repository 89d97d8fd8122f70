package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/model"
)

// Actor identifies the caller and tenant scope resolved by the auth
// middleware.
type Actor struct {
	UserID uuid.UUID
	Scope  model.Scope
}

type StartAttemptRequest struct {
	TestID uuid.UUID
	UserID uuid.UUID
	Scope  model.Scope
}

type UpdateProgressRequest struct {
	ProgressPercentage float64 `json:"progress_percentage" binding:"min=0,max=100"`
	// Submit lets a progress update double as a submission request.
	Submit bool `json:"submit"`
}

// AnswerSubmission is one answer payload arriving with a submission.
type AnswerSubmission struct {
	QuestionID uuid.UUID       `json:"question_id" binding:"required"`
	Response   json.RawMessage `json:"response" binding:"required"`
}

type SubmitAttemptRequest struct {
	Answers []AnswerSubmission `json:"answers" binding:"dive"`
}

type AttemptResponse struct {
	ID                 uuid.UUID  `json:"id"`
	TestID             uuid.UUID  `json:"test_id"`
	UserID             uuid.UUID  `json:"user_id"`
	OrganizationID     uuid.UUID  `json:"organization_id"`
	BranchID           *uuid.UUID `json:"branch_id,omitempty"`
	AttemptNumber      int        `json:"attempt_number"`
	Status             string     `json:"status"`
	StartTime          time.Time  `json:"start_time"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	SubmitTime         *time.Time `json:"submit_time,omitempty"`
	ProgressPercentage float64    `json:"progress_percentage"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	// Resumed is true when start returned an existing live attempt instead
	// of creating a new one.
	Resumed bool `json:"resumed,omitempty"`
}

// AttemptProgressResponse augments an attempt with its time budget and
// answer counts.
type AttemptProgressResponse struct {
	Attempt              AttemptResponse `json:"attempt"`
	TimeElapsedSeconds   int64           `json:"time_elapsed_seconds"`
	TimeRemainingSeconds *int64          `json:"time_remaining_seconds,omitempty"`
	AnsweredQuestions    int             `json:"answered_questions"`
	TotalQuestions       int             `json:"total_questions"`
}

type PagedAttempts struct {
	Items    []AttemptResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}
