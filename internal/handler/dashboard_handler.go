package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/dto"
	"github.com/noah-isme/ict-admin-api/internal/middleware"
	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/service"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

type dashboardService interface {
	Render(ctx context.Context, perms models.Permissions) (*dto.DashboardResponse, error)
	FinanceStats(ctx context.Context) (models.FinanceStats, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Dashboard godoc
// @Summary Role specific admin dashboard
// @Description KPIs, quick actions and widgets for the caller's dashboard profile
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.DashboardResponse}
// @Failure 401 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	perms, ok := middleware.Permissions(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	start := time.Now()
	payload, err := h.service.Render(c.Request.Context(), perms)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "processing_time_ms", time.Since(start).Milliseconds())
	response.JSON(c, http.StatusOK, payload, nil, middleware.ExtractMeta(c))
}

// Permissions godoc
// @Summary Current user role flags
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.PermissionsResponse}
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /me/permissions [get]
func (h *DashboardHandler) Permissions(c *gin.Context) {
	claims := claimsFromContext(c)
	perms, ok := middleware.Permissions(c)
	if claims == nil || !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, dto.PermissionsResponse{
		UserID:  claims.UserID,
		Flags:   perms.Flags(),
		Profile: string(service.SelectProfile(perms)),
	}, nil, middleware.ExtractMeta(c))
}

// FinanceStats godoc
// @Summary Finance aggregates
// @Description Payments today and this month, outstanding and credit balances
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=models.FinanceStats}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /finance/stats [get]
func (h *DashboardHandler) FinanceStats(c *gin.Context) {
	stats, err := h.service.FinanceStats(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to load finance stats"))
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
