package user

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/apperr"
	"github.com/ndthang/examcore/internal/dto"
	"github.com/ndthang/examcore/internal/middleware"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/ndthang/examcore/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	lifecycle service.AttemptLifecycleService
}

func NewAttemptController(lifecycle service.AttemptLifecycleService) *AttemptController {
	return &AttemptController{lifecycle: lifecycle}
}

// StartAttempt godoc
// @Summary Start or resume an attempt on a test
// @Description Returns the caller's live attempt when one exists, otherwise creates a new one under the test's attempt limit.
// @Tags Attempts
// @Produce json
// @Param test_id path string true "Test ID"
// @Success 200 {object} dto.AttemptResponse "Existing live attempt resumed"
// @Success 201 {object} dto.AttemptResponse "New attempt created"
// @Failure 400 {object} dto.ErrorResponse "Invalid test ID"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt limit reached or test inactive"
// @Security BearerAuth
// @Router /tests/{test_id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	testID, ok := pathUUID(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.lifecycle.Start(ctx.Request.Context(), dto.StartAttemptRequest{
		TestID: testID,
		UserID: actor.UserID,
		Scope:  actor.Scope,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	ctx.JSON(status, resp)
}

// GetActiveAttempt godoc
// @Summary Get the caller's live attempt on a test
// @Tags Attempts
// @Produce json
// @Param test_id path string true "Test ID"
// @Success 200 {object} dto.AttemptResponse
// @Failure 404 {object} dto.ErrorResponse "No live attempt"
// @Security BearerAuth
// @Router /tests/{test_id}/attempts/active [get]
func (c *AttemptController) GetActiveAttempt(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	testID, ok := pathUUID(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.lifecycle.GetActiveAttempt(ctx.Request.Context(), testID, actor.UserID, actor.Scope)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ValidateAttemptLimits godoc
// @Summary Check whether the caller may start another attempt
// @Tags Attempts
// @Produce json
// @Param test_id path string true "Test ID"
// @Success 200 {object} service.LimitDecision
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Security BearerAuth
// @Router /tests/{test_id}/attempts/limits [get]
func (c *AttemptController) ValidateAttemptLimits(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	testID, ok := pathUUID(ctx, "test_id")
	if !ok {
		return
	}

	decision, err := c.lifecycle.ValidateAttemptLimits(ctx.Request.Context(), testID, actor.UserID, actor.Scope)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, decision)
}

// GetAttempt godoc
// @Summary Get one attempt by ID
// @Tags Attempts
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Success 200 {object} dto.AttemptResponse
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Security BearerAuth
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	attemptID, ok := pathUUID(ctx, "attempt_id")
	if !ok {
		return
	}

	resp, err := c.lifecycle.FindOne(ctx.Request.Context(), attemptID, actor.Scope)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetAttemptProgress godoc
// @Summary Get an attempt with its time budget and answer counts
// @Tags Attempts
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Success 200 {object} dto.AttemptProgressResponse
// @Failure 403 {object} dto.ErrorResponse "Attempt belongs to another user"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Security BearerAuth
// @Router /attempts/{attempt_id}/progress [get]
func (c *AttemptController) GetAttemptProgress(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	attemptID, ok := pathUUID(ctx, "attempt_id")
	if !ok {
		return
	}

	resp, err := c.lifecycle.GetAttemptWithProgress(ctx.Request.Context(), attemptID, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// UpdateProgress godoc
// @Summary Update the progress percentage of a live attempt
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param body body dto.UpdateProgressRequest true "New progress"
// @Success 200 {object} dto.AttemptResponse
// @Failure 409 {object} dto.ErrorResponse "Attempt not in progress or expired"
// @Security BearerAuth
// @Router /attempts/{attempt_id}/progress [patch]
func (c *AttemptController) UpdateProgress(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	attemptID, ok := pathUUID(ctx, "attempt_id")
	if !ok {
		return
	}

	var req dto.UpdateProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.lifecycle.UpdateProgress(ctx.Request.Context(), attemptID, actor, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitAttempt godoc
// @Summary Submit a live attempt, optionally with answers
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Param body body dto.SubmitAttemptRequest false "Answers to record with the submission"
// @Success 200 {object} dto.AttemptResponse
// @Failure 409 {object} dto.ErrorResponse "Attempt not in progress"
// @Security BearerAuth
// @Router /attempts/{attempt_id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	attemptID, ok := pathUUID(ctx, "attempt_id")
	if !ok {
		return
	}

	var req dto.SubmitAttemptRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
			return
		}
	}

	log.Info().Str("attemptID", attemptID.String()).Int("answerCount", len(req.Answers)).Msg("Received submission request")
	resp, err := c.lifecycle.Submit(ctx.Request.Context(), attemptID, actor, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// CancelAttempt godoc
// @Summary Cancel a live attempt
// @Description Cancelled attempts do not count against the attempt limit.
// @Tags Attempts
// @Produce json
// @Param attempt_id path string true "Attempt ID"
// @Success 204 "Attempt cancelled"
// @Failure 409 {object} dto.ErrorResponse "Attempt not in progress"
// @Security BearerAuth
// @Router /attempts/{attempt_id} [delete]
func (c *AttemptController) CancelAttempt(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	attemptID, ok := pathUUID(ctx, "attempt_id")
	if !ok {
		return
	}

	if err := c.lifecycle.Cancel(ctx.Request.Context(), attemptID, actor); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GetMyAttempts godoc
// @Summary List the caller's attempts
// @Tags Attempts
// @Produce json
// @Param page query int false "Page number, starting at 1"
// @Param page_size query int false "Page size, max 100"
// @Param status query string false "Filter by status" Enums(IN_PROGRESS, SUBMITTED, EXPIRED, CANCELLED)
// @Param from query string false "Only attempts started at or after this RFC3339 time"
// @Param to query string false "Only attempts started at or before this RFC3339 time"
// @Success 200 {object} dto.PagedAttempts
// @Security BearerAuth
// @Router /my-attempts [get]
func (c *AttemptController) GetMyAttempts(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	opts, ok := listOptionsFromQuery(ctx)
	if !ok {
		return
	}

	resp, err := c.lifecycle.GetUserAttempts(ctx.Request.Context(), actor.UserID, actor.Scope, opts)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func pathUUID(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func listOptionsFromQuery(ctx *gin.Context) (repository.ListOptions, bool) {
	var opts repository.ListOptions
	opts.Page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	opts.PageSize, _ = strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	if raw := ctx.Query("status"); raw != "" {
		status := model.AttemptStatus(raw)
		switch status {
		case model.AttemptStatusInProgress, model.AttemptStatusSubmitted, model.AttemptStatusExpired, model.AttemptStatusCancelled:
			opts.Status = &status
		default:
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid status filter"})
			return opts, false
		}
	}
	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid from time, expected RFC3339"})
			return opts, false
		}
		opts.From = &t
	}
	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid to time, expected RFC3339"})
			return opts, false
		}
		opts.To = &t
	}
	return opts, true
}

func respondError(ctx *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Request failed")
		ctx.JSON(status, dto.ErrorResponse{Message: "internal error"})
		return
	}
	ctx.JSON(status, dto.ErrorResponse{Message: apperr.Reason(err)})
}
