package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/service"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

type paymentService interface {
	Record(ctx context.Context, actorID string, req models.RecordPaymentRequest, meta service.PaymentMeta) (*models.Payment, error)
	ListForEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Record godoc
// @Summary Record payment
// @Description Log money received against an enrollment. Receiver and date are stamped by the server.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.RecordPaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}

	meta := service.PaymentMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	payment, err := h.service.Record(c.Request.Context(), userID, req, meta)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ListForEnrollment godoc
// @Summary Payment history
// @Tags Payments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/payments [get]
func (h *PaymentHandler) ListForEnrollment(c *gin.Context) {
	payments, err := h.service.ListForEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
