package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

// ResolvePermissions derives the capability set from the role attribute, group
// memberships and the superuser flag. Group order does not matter.
func ResolvePermissions(role models.UserRole, groups []string, superuser bool) models.Permissions {
	member := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		member[g] = struct{}{}
	}
	in := func(name string) bool {
		_, ok := member[name]
		return ok
	}

	var caps models.Capability
	if superuser || role == models.RoleSuperAdmin || in(models.GroupSuperAdmin) {
		caps |= models.CapSuperAdmin
	}
	if role == models.RoleFinance || in(models.GroupFinance) {
		caps |= models.CapFinance
	}
	if role == models.RoleITAdmin || in(models.GroupITAdmin) {
		caps |= models.CapITAdmin
	}
	// Registrar has no role value; group membership is the only signal.
	if in(models.GroupRegistrar) || in(models.GroupAdmissions) {
		caps |= models.CapRegistrar
	}
	return models.Permissions{Caps: caps}
}

// PermissionCacheKey is the redis key holding a user's resolved permissions.
func PermissionCacheKey(userID string) string {
	return "perm:user:" + userID
}

type permissionUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	GroupNames(ctx context.Context, userID string) ([]string, error)
}

type permissionCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// PermissionService resolves permissions once per session and keeps them in the cache.
type PermissionService struct {
	users  permissionUserRepository
	cache  permissionCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewPermissionService constructs the service. cache may be nil.
func NewPermissionService(users permissionUserRepository, cache permissionCache, ttl time.Duration, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{users: users, cache: cache, ttl: ttl, logger: logger}
}

// ForUser returns the cached permission set, recomputing from the store on a miss.
// Inactive accounts are rejected on a miss; deactivation drops the cached entry.
// The boolean reports whether the cache served the value.
func (s *PermissionService) ForUser(ctx context.Context, userID string) (models.Permissions, bool, error) {
	if s.cache != nil {
		var cached models.Permissions
		hit, err := s.cache.Get(ctx, PermissionCacheKey(userID), &cached)
		if err == nil && hit {
			return cached, true, nil
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Permissions{}, false, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return models.Permissions{}, false, appErrors.Internal(err, "failed to load user")
	}
	if !user.IsActive {
		return models.Permissions{}, false, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	perms, err := s.Warm(ctx, user)
	return perms, false, err
}

// Warm resolves the permissions of user and stores them in the cache.
func (s *PermissionService) Warm(ctx context.Context, user *models.User) (models.Permissions, error) {
	groups, err := s.users.GroupNames(ctx, user.ID)
	if err != nil {
		return models.Permissions{}, appErrors.Internal(err, "failed to load user groups")
	}

	perms := ResolvePermissions(user.Role, groups, user.IsSuperuser)
	if s.cache != nil {
		if err := s.cache.Set(ctx, PermissionCacheKey(user.ID), perms, s.ttl); err != nil {
			s.logger.Warn("failed to cache permissions", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return perms, nil
}

// Invalidate drops the cached permission set for userID.
func (s *PermissionService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, PermissionCacheKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate permissions", zap.String("user_id", userID), zap.Error(err))
	}
}
