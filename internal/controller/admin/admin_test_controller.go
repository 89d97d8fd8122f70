package admin

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

type AdminTestController struct {
	tests     service.AdminTestService
	lifecycle service.AttemptLifecycleService
}

func NewAdminTestController(tests service.AdminTestService, lifecycle service.AttemptLifecycleService) *AdminTestController {
	return &AdminTestController{tests: tests, lifecycle: lifecycle}
}

// CreateTest godoc
// @Summary (Admin) Create a test with its questions
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test body dto.TestCreateDTO true "Test definition"
// @Success 201 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Security BearerAuth
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}

	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateTest: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.tests.CreateTest(ctx.Request.Context(), req, actor.Scope)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetTest godoc
// @Summary (Admin) Get a test with its questions
// @Tags Admin - Tests
// @Produce json
// @Param test_id path string true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Security BearerAuth
// @Router /admin/tests/{test_id} [get]
func (c *AdminTestController) GetTest(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	testID, ok := pathUUID(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.tests.GetTest(ctx.Request.Context(), testID, actor.Scope)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListTestAttempts godoc
// @Summary (Admin) List attempts on a test
// @Tags Admin - Tests
// @Produce json
// @Param test_id path string true "Test ID"
// @Param page query int false "Page number, starting at 1"
// @Param page_size query int false "Page size, max 100"
// @Param status query string false "Filter by status" Enums(IN_PROGRESS, SUBMITTED, EXPIRED, CANCELLED)
// @Param user_id query string false "Filter by user"
// @Param from query string false "Only attempts started at or after this RFC3339 time"
// @Param to query string false "Only attempts started at or before this RFC3339 time"
// @Success 200 {object} dto.PagedAttempts
// @Security BearerAuth
// @Router /admin/tests/{test_id}/attempts [get]
func (c *AdminTestController) ListTestAttempts(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	testID, ok := pathUUID(ctx, "test_id")
	if !ok {
		return
	}
	opts, ok := listOptionsFromQuery(ctx)
	if !ok {
		return
	}

	resp, err := c.lifecycle.FindAttemptsByTest(ctx.Request.Context(), testID, actor.Scope, opts)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetTestStats godoc
// @Summary (Admin) Get aggregate attempt statistics for a test
// @Tags Admin - Tests
// @Produce json
// @Param test_id path string true "Test ID"
// @Success 200 {object} repository.AttemptStats
// @Security BearerAuth
// @Router /admin/tests/{test_id}/stats [get]
func (c *AdminTestController) GetTestStats(ctx *gin.Context) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing authentication"})
		return
	}
	testID, ok := pathUUID(ctx, "test_id")
	if !ok {
		return
	}

	stats, err := c.lifecycle.GetStats(ctx.Request.Context(), testID, actor.Scope)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
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
	if raw := ctx.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid user_id filter"})
			return opts, false
		}
		opts.UserID = &id
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
