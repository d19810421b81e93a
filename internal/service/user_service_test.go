package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/repository"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

var knownGroups = map[string]bool{
	models.GroupSuperAdmin: true,
	models.GroupFinance:    true,
	models.GroupITAdmin:    true,
	models.GroupRegistrar:  true,
	models.GroupAdmissions: true,
}

type mockUserRepo struct {
	users       map[string]*models.User
	groups      map[string][]string
	commitments map[string]models.RoleCommitments
	createErr   error
	auditLogs   []*models.AuditLog
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:       map[string]*models.User{},
		groups:      map[string][]string{},
		commitments: map[string]models.RoleCommitments{},
	}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User, groups []string) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, g := range groups {
		if !knownGroups[g] {
			return fmt.Errorf("insert user groups: %w", repository.ErrUnknownGroup)
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	m.users[user.ID] = user
	m.groups[user.ID] = groups
	return nil
}

func (m *mockUserRepo) GroupNames(_ context.Context, userID string) ([]string, error) {
	if _, ok := m.users[userID]; !ok {
		return nil, sql.ErrNoRows
	}
	return m.groups[userID], nil
}

func (m *mockUserRepo) SetGroups(_ context.Context, userID string, groups []string) error {
	for _, g := range groups {
		if !knownGroups[g] {
			return fmt.Errorf("insert user groups: %w", repository.ErrUnknownGroup)
		}
	}
	m.groups[userID] = groups
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id string, role models.UserRole, _ time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	return nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id string, active bool, _ time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.IsActive = active
	return nil
}

func (m *mockUserRepo) RoleCommitments(_ context.Context, userID string) (models.RoleCommitments, error) {
	return m.commitments[userID], nil
}

func (m *mockUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type recordingInvalidator struct {
	perms       map[string]models.Permissions
	invalidated []string
}

func (r *recordingInvalidator) ForUser(_ context.Context, userID string) (models.Permissions, bool, error) {
	return r.perms[userID], false, nil
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.invalidated = append(r.invalidated, userID)
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, &recordingInvalidator{}, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), "admin", models.CreateUserRequest{
		Username: "cashier",
		Email:    "Cashier@Example.com ",
		Password: "s3cretpass",
		Role:     models.RoleFinance,
		IsStaff:  true,
		Groups:   []string{models.GroupFinance, " " + models.GroupFinance},
	})
	require.NoError(t, err)
	assert.Equal(t, "cashier@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")))
	assert.Equal(t, []string{models.GroupFinance}, repo.groups[user.ID])
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
	assert.NotContains(t, string(repo.auditLogs[0].NewValues), "s3cretpass")
}

func TestUserServiceCreateErrors(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, &recordingInvalidator{}, validator.New(), zap.NewNop())
	base := models.CreateUserRequest{Username: "someone", Password: "longenough", Role: models.RoleStudent}

	bad := base
	bad.Role = "ADMIN"
	_, err := svc.Create(context.Background(), "admin", bad)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	unknown := base
	unknown.Groups = []string{"Librarians"}
	_, err = svc.Create(context.Background(), "admin", unknown)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	repo.createErr = fmt.Errorf("insert user: %w", repository.ErrDuplicate)
	_, err = svc.Create(context.Background(), "admin", base)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.CodeOf(err))
}

func TestUserServiceSetGroupsInvalidatesPermissions(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleInstructor, IsActive: true}
	repo.groups["u1"] = []string{models.GroupRegistrar}

	cache := NewCacheService(newMemoryCacheRepo(), CacheOptions{DefaultTTL: time.Hour, Enabled: true})
	perms := NewPermissionService(repo, cache, time.Hour, nil)
	svc := NewUserService(repo, perms, validator.New(), zap.NewNop())
	ctx := context.Background()

	before, _, err := perms.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleFlags{IsRegistrar: true}, before.Flags())

	groups, err := svc.SetGroups(ctx, "admin", "u1", models.SetGroupsRequest{Groups: []string{models.GroupFinance}})
	require.NoError(t, err)
	assert.Equal(t, []string{models.GroupFinance}, groups)

	after, hit, err := perms.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.RoleFlags{IsFinance: true}, after.Flags())

	last := repo.auditLogs[len(repo.auditLogs)-1]
	assert.Equal(t, models.AuditActionUserGroupsUpdate, last.Action)
	assert.JSONEq(t, `{"groups":["Registrar"]}`, string(last.OldValues))
}

func TestUserServiceSetGroupsUnknownUser(t *testing.T) {
	inv := &recordingInvalidator{}
	svc := NewUserService(newMockUserRepo(), inv, validator.New(), zap.NewNop())

	_, err := svc.SetGroups(context.Background(), "admin", "ghost", models.SetGroupsRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))
	assert.Empty(t, inv.invalidated)
}

func TestUserServiceUpdateRole(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleInstructor}
	inv := &recordingInvalidator{}
	svc := NewUserService(repo, inv, validator.New(), zap.NewNop())

	user, err := svc.UpdateRole(context.Background(), "admin", "u1", models.UpdateRoleRequest{Role: models.RoleITAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleITAdmin, user.Role)
	assert.Equal(t, models.RoleITAdmin, repo.users["u1"].Role)
	assert.Equal(t, []string{"u1"}, inv.invalidated)
	assert.Equal(t, models.AuditActionUserRoleUpdate, repo.auditLogs[0].Action)

	_, err = svc.UpdateRole(context.Background(), "admin", "ghost", models.UpdateRoleRequest{Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))
}

func TestUserServiceUpdateRoleKeepsCommittedUsers(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["teacher"] = &models.User{ID: "teacher", Role: models.RoleInstructor}
	repo.users["learner"] = &models.User{ID: "learner", Role: models.RoleStudent}
	repo.users["former"] = &models.User{ID: "former", Role: models.RoleInstructor}
	repo.commitments["teacher"] = models.RoleCommitments{Batches: 2}
	repo.commitments["learner"] = models.RoleCommitments{Enrollments: 1}
	repo.commitments["former"] = models.RoleCommitments{Enrollments: 3}
	inv := &recordingInvalidator{}
	svc := NewUserService(repo, inv, validator.New(), zap.NewNop())
	ctx := context.Background()

	_, err := svc.UpdateRole(ctx, "admin", "teacher", models.UpdateRoleRequest{Role: models.RoleFinance})
	assert.Equal(t, appErrors.ErrProtected.Code, appErrors.CodeOf(err))
	assert.Equal(t, models.RoleInstructor, repo.users["teacher"].Role)

	_, err = svc.UpdateRole(ctx, "admin", "learner", models.UpdateRoleRequest{Role: models.RoleInstructor})
	assert.Equal(t, appErrors.ErrProtected.Code, appErrors.CodeOf(err))
	assert.Equal(t, models.RoleStudent, repo.users["learner"].Role)
	assert.Empty(t, inv.invalidated)
	assert.Empty(t, repo.auditLogs)

	_, err = svc.UpdateRole(ctx, "admin", "learner", models.UpdateRoleRequest{Role: models.RoleStudent})
	require.NoError(t, err)

	user, err := svc.UpdateRole(ctx, "admin", "former", models.UpdateRoleRequest{Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
}

func TestUserServiceSuperAdminGrantsRequireSuperAdmin(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleFinance}
	repo.users["root"] = &models.User{ID: "root", Role: models.RoleSuperAdmin}
	inv := &recordingInvalidator{perms: map[string]models.Permissions{
		"it":   {Caps: models.CapITAdmin},
		"boss": {Caps: models.CapSuperAdmin},
	}}
	svc := NewUserService(repo, inv, validator.New(), zap.NewNop())
	ctx := context.Background()

	_, err := svc.UpdateRole(ctx, "it", "u1", models.UpdateRoleRequest{Role: models.RoleSuperAdmin})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))
	assert.Equal(t, models.RoleFinance, repo.users["u1"].Role)

	_, err = svc.UpdateRole(ctx, "it", "root", models.UpdateRoleRequest{Role: models.RoleFinance})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	_, err = svc.SetGroups(ctx, "it", "u1", models.SetGroupsRequest{Groups: []string{models.GroupSuperAdmin}})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))
	assert.Empty(t, repo.groups["u1"])

	_, err = svc.Create(ctx, "it", models.CreateUserRequest{Username: "eve", Password: "longenough", Role: models.RoleSuperAdmin})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	_, err = svc.SetGroups(ctx, "it", "u1", models.SetGroupsRequest{Groups: []string{models.GroupFinance}})
	require.NoError(t, err)

	user, err := svc.UpdateRole(ctx, "boss", "u1", models.UpdateRoleRequest{Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, user.Role)
}

func TestUserServiceSetActive(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleFinance, IsActive: true}
	repo.users["root"] = &models.User{ID: "root", IsSuperuser: true, IsActive: true}
	inv := &recordingInvalidator{perms: map[string]models.Permissions{
		"it": {Caps: models.CapITAdmin},
	}}
	svc := NewUserService(repo, inv, validator.New(), zap.NewNop())
	ctx := context.Background()
	off := false

	user, err := svc.SetActive(ctx, "it", "u1", models.SetActiveRequest{Active: &off})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.False(t, repo.users["u1"].IsActive)
	assert.Equal(t, []string{"u1"}, inv.invalidated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserActiveUpdate, repo.auditLogs[0].Action)
	assert.JSONEq(t, `{"is_active":false}`, string(repo.auditLogs[0].NewValues))

	_, err = svc.SetActive(ctx, "it", "root", models.SetActiveRequest{Active: &off})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))
	assert.True(t, repo.users["root"].IsActive)

	_, err = svc.SetActive(ctx, "it", "it", models.SetActiveRequest{Active: &off})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	_, err = svc.SetActive(ctx, "it", "u1", models.SetActiveRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	_, err = svc.SetActive(ctx, "it", "ghost", models.SetActiveRequest{Active: &off})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))
}

func TestDeactivatedUserLosesCachedPermissions(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleFinance, IsActive: true}
	cache := NewCacheService(newMemoryCacheRepo(), CacheOptions{DefaultTTL: time.Hour, Enabled: true})
	perms := NewPermissionService(repo, cache, time.Hour, nil)
	svc := NewUserService(repo, perms, validator.New(), zap.NewNop())
	ctx := context.Background()
	off := false

	_, _, err := perms.ForUser(ctx, "u1")
	require.NoError(t, err)
	_, hit, err := perms.ForUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, hit)

	_, err = svc.SetActive(ctx, "admin", "u1", models.SetActiveRequest{Active: &off})
	require.NoError(t, err)

	_, _, err = perms.ForUser(ctx, "u1")
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.CodeOf(err))
}
