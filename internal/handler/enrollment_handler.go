package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, actorID string, req models.CreateEnrollmentRequest) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, actorID, id string, req models.UpdateEnrollmentStatusRequest) (*models.Enrollment, error)
	Delete(ctx context.Context, actorID, id string) error
	Archive(ctx context.Context, actorID, id string) error
	Balance(ctx context.Context, id string) (*models.EnrollmentBalance, error)
}

// EnrollmentHandler manages enrollment endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Create godoc
// @Summary Enroll student
// @Description Enroll a student into a batch; agreed fee defaults to the course base fee
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body models.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.CreateEnrollmentRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.UpdateEnrollmentStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}

	enrollment, err := h.service.UpdateStatus(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Delete godoc
// @Summary Delete enrollment
// @Description Fails with 409 while payments reference the enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Archive godoc
// @Summary Deactivate enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/archive [post]
func (h *EnrollmentHandler) Archive(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.service.Archive(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Balance godoc
// @Summary Enrollment balance
// @Description Agreed fee, amount paid, outstanding balance and overdue flag
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope{data=models.EnrollmentBalance}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/balance [get]
func (h *EnrollmentHandler) Balance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}
