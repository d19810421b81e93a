package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

func TestResolvePermissionsFinanceRoleOnly(t *testing.T) {
	flags := ResolvePermissions(models.RoleFinance, nil, false).Flags()
	assert.Equal(t, models.RoleFlags{IsFinance: true}, flags)
}

func TestResolvePermissionsSuperuserOverridesRole(t *testing.T) {
	flags := ResolvePermissions(models.RoleStudent, nil, true).Flags()
	assert.True(t, flags.IsSuperAdmin)
	assert.False(t, flags.IsFinance)
	assert.False(t, flags.IsITAdmin)
	assert.False(t, flags.IsRegistrar)
}

func TestResolvePermissionsGroups(t *testing.T) {
	cases := []struct {
		name   string
		role   models.UserRole
		groups []string
		want   models.RoleFlags
	}{
		{name: "super admin group", role: models.RoleStudent, groups: []string{models.GroupSuperAdmin}, want: models.RoleFlags{IsSuperAdmin: true}},
		{name: "super admin role", role: models.RoleSuperAdmin, want: models.RoleFlags{IsSuperAdmin: true}},
		{name: "it admin role", role: models.RoleITAdmin, want: models.RoleFlags{IsITAdmin: true}},
		{name: "it admin group", role: models.RoleInstructor, groups: []string{models.GroupITAdmin}, want: models.RoleFlags{IsITAdmin: true}},
		{name: "registrar", role: models.RoleStudent, groups: []string{models.GroupRegistrar}, want: models.RoleFlags{IsRegistrar: true}},
		{name: "admissions", role: models.RoleStudent, groups: []string{models.GroupAdmissions}, want: models.RoleFlags{IsRegistrar: true}},
		{name: "several", role: models.RoleSuperAdmin, groups: []string{models.GroupFinance, models.GroupRegistrar}, want: models.RoleFlags{IsSuperAdmin: true, IsFinance: true, IsRegistrar: true}},
		{name: "unknown group", role: models.RoleInstructor, groups: []string{"Librarians"}, want: models.RoleFlags{}},
		{name: "case sensitive", role: models.RoleStudent, groups: []string{"finance"}, want: models.RoleFlags{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolvePermissions(tc.role, tc.groups, false).Flags())
		})
	}
}

func TestResolvePermissionsOrderIndependent(t *testing.T) {
	groups := []string{models.GroupAdmissions, models.GroupFinance, models.GroupITAdmin, models.GroupSuperAdmin}
	want := ResolvePermissions(models.RoleInstructor, groups, false)

	reversed := make([]string, len(groups))
	for i, g := range groups {
		reversed[len(groups)-1-i] = g
	}
	duplicated := append(append([]string{}, groups...), groups...)

	assert.Equal(t, want, ResolvePermissions(models.RoleInstructor, reversed, false))
	assert.Equal(t, want, ResolvePermissions(models.RoleInstructor, duplicated, false))
	assert.Equal(t, want, ResolvePermissions(models.RoleInstructor, groups, false))
}

type fakePermissionUsers struct {
	users     map[string]*models.User
	groups    map[string][]string
	findCalls int
	findErr   error
}

func (f *fakePermissionUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakePermissionUsers) GroupNames(_ context.Context, userID string) ([]string, error) {
	return f.groups[userID], nil
}

func TestPermissionServiceCachesPerSession(t *testing.T) {
	users := &fakePermissionUsers{
		users:  map[string]*models.User{"u1": {ID: "u1", Role: models.RoleStudent, IsActive: true}},
		groups: map[string][]string{"u1": {models.GroupRegistrar}},
	}
	cache := NewCacheService(newMemoryCacheRepo(), CacheOptions{DefaultTTL: time.Hour, Enabled: true})
	svc := NewPermissionService(users, cache, time.Hour, nil)
	ctx := context.Background()

	perms, hit, err := svc.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, perms.Has(models.CapRegistrar))

	perms, hit, err = svc.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, perms.Has(models.CapRegistrar))
	assert.Equal(t, 1, users.findCalls)

	users.groups["u1"] = []string{models.GroupFinance}
	svc.Invalidate(ctx, "u1")

	perms, hit, err = svc.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.RoleFlags{IsFinance: true}, perms.Flags())
}

func TestPermissionServiceWithoutCache(t *testing.T) {
	users := &fakePermissionUsers{users: map[string]*models.User{"u1": {ID: "u1", IsSuperuser: true, IsActive: true}}}
	svc := NewPermissionService(users, nil, time.Hour, nil)

	perms, hit, err := svc.ForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, perms.Has(models.CapSuperAdmin))
}

func TestPermissionServiceRejectsDeactivatedUser(t *testing.T) {
	users := &fakePermissionUsers{
		users:  map[string]*models.User{"u1": {ID: "u1", Role: models.RoleFinance, IsActive: true}},
		groups: map[string][]string{},
	}
	cache := NewCacheService(newMemoryCacheRepo(), CacheOptions{DefaultTTL: time.Hour, Enabled: true})
	svc := NewPermissionService(users, cache, time.Hour, nil)
	ctx := context.Background()

	_, _, err := svc.ForUser(ctx, "u1")
	require.NoError(t, err)

	users.users["u1"].IsActive = false
	svc.Invalidate(ctx, "u1")

	_, _, err = svc.ForUser(ctx, "u1")
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.CodeOf(err))

	_, hit, err := svc.ForUser(ctx, "u1")
	assert.False(t, hit)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.CodeOf(err))
}

func TestPermissionServiceMissingUser(t *testing.T) {
	svc := NewPermissionService(&fakePermissionUsers{users: map[string]*models.User{}}, nil, time.Hour, nil)

	_, _, err := svc.ForUser(context.Background(), "ghost")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestPermissionServiceStoreFailure(t *testing.T) {
	svc := NewPermissionService(&fakePermissionUsers{findErr: errors.New("db down")}, nil, time.Hour, nil)

	_, _, err := svc.ForUser(context.Background(), "u1")
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.CodeOf(err))
}
