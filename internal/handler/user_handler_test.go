package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type fakeUserSrv struct {
	actorID string
	userID  string
	groups  models.SetGroupsRequest
	role    models.UpdateRoleRequest
	created models.CreateUserRequest
	active  *bool
	err     error
}

func (f *fakeUserSrv) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Username: "jdoe"}, nil
}

func (f *fakeUserSrv) Create(_ context.Context, actorID string, req models.CreateUserRequest) (*models.User, error) {
	f.actorID = actorID
	f.created = req
	return &models.User{ID: "user-2", Username: req.Username}, nil
}

func (f *fakeUserSrv) SetGroups(_ context.Context, actorID, userID string, req models.SetGroupsRequest) ([]string, error) {
	f.actorID = actorID
	f.userID = userID
	f.groups = req
	return req.Groups, nil
}

func (f *fakeUserSrv) UpdateRole(_ context.Context, actorID, userID string, req models.UpdateRoleRequest) (*models.User, error) {
	f.actorID = actorID
	f.userID = userID
	f.role = req
	return &models.User{ID: userID, Role: req.Role}, nil
}

func (f *fakeUserSrv) SetActive(_ context.Context, actorID, userID string, req models.SetActiveRequest) (*models.User, error) {
	f.actorID = actorID
	f.userID = userID
	f.active = req.Active
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: userID, IsActive: *req.Active}, nil
}

func TestUserHandlerSetGroups(t *testing.T) {
	srv := &fakeUserSrv{}
	handler := NewUserHandler(srv)
	c, rec := newTestContext(http.MethodPut, "/users/user-2/groups", `{"groups":["Finance","Registrar"]}`)
	c.Params = append(c.Params, ginParam("id", "user-2"))
	withClaims(c, "admin-1")

	handler.SetGroups(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", srv.actorID)
	assert.Equal(t, "user-2", srv.userID)
	assert.Equal(t, []string{"Finance", "Registrar"}, srv.groups.Groups)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"groups":["Finance","Registrar"]`)
}

func TestUserHandlerUpdateRole(t *testing.T) {
	srv := &fakeUserSrv{}
	handler := NewUserHandler(srv)
	c, rec := newTestContext(http.MethodPatch, "/users/user-2/role", `{"role":"INSTRUCTOR"}`)
	c.Params = append(c.Params, ginParam("id", "user-2"))
	withClaims(c, "admin-1")

	handler.UpdateRole(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleInstructor, srv.role.Role)
}

func TestUserHandlerCreateRejectsBadJSON(t *testing.T) {
	handler := NewUserHandler(&fakeUserSrv{})
	c, rec := newTestContext(http.MethodPost, "/users", `[]`)
	withClaims(c, "admin-1")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandlerSetActive(t *testing.T) {
	srv := &fakeUserSrv{}
	handler := NewUserHandler(srv)
	c, rec := newTestContext(http.MethodPatch, "/users/user-2/active", `{"active":false}`)
	c.Params = append(c.Params, ginParam("id", "user-2"))
	withClaims(c, "admin-1")

	handler.SetActive(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.active)
	assert.False(t, *srv.active)
	assert.Equal(t, "user-2", srv.userID)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"is_active":false`)
}

func TestUserHandlerSetActiveForbidden(t *testing.T) {
	srv := &fakeUserSrv{err: appErrors.Clone(appErrors.ErrForbidden, "only super admins can grant or revoke super admin access")}
	handler := NewUserHandler(srv)
	c, rec := newTestContext(http.MethodPatch, "/users/root/active", `{"active":false}`)
	c.Params = append(c.Params, ginParam("id", "root"))
	withClaims(c, "admin-1")

	handler.SetActive(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrForbidden.Code, decodeEnvelope(t, rec).Error["code"])
}
