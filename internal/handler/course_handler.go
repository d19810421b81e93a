package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

type courseService interface {
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	CreateCourse(ctx context.Context, actorID string, req models.CreateCourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, actorID, id string) error
	CreateBatch(ctx context.Context, actorID string, req models.CreateBatchRequest) (*models.Batch, error)
	DeleteBatch(ctx context.Context, actorID, id string) error
}

// CourseHandler exposes course and batch endpoints.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Code or title search"
// @Param active query bool false "Only active courses"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if active, err := strconv.ParseBool(c.DefaultQuery("active", "true")); err == nil {
		filter.ActiveOnly = active
	}
	filter.Search = c.Query("search")

	courses, pagination, err := h.service.ListCourses(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body models.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.CreateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}

	course, err := h.service.CreateCourse(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Delete godoc
// @Summary Deactivate course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteCourse(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateBatch godoc
// @Summary Schedule batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body models.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /batches [post]
func (h *CourseHandler) CreateBatch(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.CreateBatchRequest
	if !bindJSON(c, &req, "invalid batch payload") {
		return
	}

	batch, err := h.service.CreateBatch(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// DeleteBatch godoc
// @Summary Deactivate batch
// @Tags Batches
// @Param id path string true "Batch ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{id} [delete]
func (h *CourseHandler) DeleteBatch(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteBatch(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
