package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/pkg/response"
)

type userService interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, actorID string, req models.CreateUserRequest) (*models.User, error)
	SetGroups(ctx context.Context, actorID, userID string, req models.SetGroupsRequest) ([]string, error)
	UpdateRole(ctx context.Context, actorID, userID string, req models.UpdateRoleRequest) (*models.User, error)
	SetActive(ctx context.Context, actorID, userID string, req models.SetActiveRequest) (*models.User, error)
}

// UserHandler handles staff management endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Get godoc
// @Summary Get user
// @Description Get user detail
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create user
// @Description Create a new account with optional group memberships
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "Create user payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.CreateUserRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	user, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// SetGroups godoc
// @Summary Replace group memberships
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.SetGroupsRequest true "Groups payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id}/groups [put]
func (h *UserHandler) SetGroups(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.SetGroupsRequest
	if !bindJSON(c, &req, "invalid groups payload") {
		return
	}

	groups, err := h.service.SetGroups(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user_id": c.Param("id"), "groups": groups}, nil)
}

// UpdateRole godoc
// @Summary Change user role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.UpdateRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id}/role [patch]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.UpdateRoleRequest
	if !bindJSON(c, &req, "invalid role payload") {
		return
	}

	user, err := h.service.UpdateRole(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// SetActive godoc
// @Summary Activate or deactivate user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.SetActiveRequest true "Activation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id}/active [patch]
func (h *UserHandler) SetActive(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req models.SetActiveRequest
	if !bindJSON(c, &req, "invalid activation payload") {
		return
	}

	user, err := h.service.SetActive(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}
