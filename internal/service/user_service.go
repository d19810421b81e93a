package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User, groups []string) error
	GroupNames(ctx context.Context, userID string) ([]string, error)
	SetGroups(ctx context.Context, userID string, groups []string) error
	UpdateRole(ctx context.Context, id string, role models.UserRole, ts time.Time) error
	SetActive(ctx context.Context, id string, active bool, ts time.Time) error
	RoleCommitments(ctx context.Context, userID string) (models.RoleCommitments, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type userPermissions interface {
	ForUser(ctx context.Context, userID string) (models.Permissions, bool, error)
	Invalidate(ctx context.Context, userID string)
}

// UserService handles account management for IT and super admins.
type UserService struct {
	repo        userRepository
	permissions userPermissions
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, permissions userPermissions, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:        repo,
		permissions: permissions,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user", "load")
	}
	return user, nil
}

// Create registers a new account with its group memberships.
func (s *UserService) Create(ctx context.Context, actorID string, req models.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid user payload")
	}
	groups := normalizeGroups(req.Groups)
	if req.Role == models.RoleSuperAdmin || containsGroup(groups, models.GroupSuperAdmin) {
		if err := s.requireSuperAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PhoneNumber:  req.PhoneNumber,
		Role:         req.Role,
		IsStaff:      req.IsStaff,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user, groups); err != nil {
		return nil, storeError(err, "user", "create")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"username": user.Username,
		"role":     user.Role,
		"is_staff": user.IsStaff,
		"groups":   groups,
	})
	recordAudit(ctx, s.repo, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserCreate,
		Resource:   "user",
		ResourceID: &user.ID,
		NewValues:  payload,
	})
	return user, nil
}

// SetGroups replaces the user's group memberships and drops the cached permissions.
func (s *UserService) SetGroups(ctx context.Context, actorID, userID string, req models.SetGroupsRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid groups payload")
	}

	previous, err := s.repo.GroupNames(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "load")
	}

	groups := normalizeGroups(req.Groups)
	if containsGroup(previous, models.GroupSuperAdmin) != containsGroup(groups, models.GroupSuperAdmin) {
		if err := s.requireSuperAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetGroups(ctx, userID, groups); err != nil {
		return nil, storeError(err, "user", "update")
	}
	s.permissions.Invalidate(ctx, userID)

	oldValues, _ := json.Marshal(map[string][]string{"groups": previous})
	newValues, _ := json.Marshal(map[string][]string{"groups": groups})
	recordAudit(ctx, s.repo, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserGroupsUpdate,
		Resource:   "user",
		ResourceID: &userID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
	return groups, nil
}

// UpdateRole changes the stored role and drops the cached permissions.
func (s *UserService) UpdateRole(ctx context.Context, actorID, userID string, req models.UpdateRoleRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid role payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "load")
	}
	previous := user.Role
	if previous != req.Role && (previous == models.RoleSuperAdmin || req.Role == models.RoleSuperAdmin) {
		if err := s.requireSuperAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}
	if err := s.checkRoleCommitments(ctx, userID, previous, req.Role); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRole(ctx, userID, req.Role, s.now()); err != nil {
		return nil, storeError(err, "user", "update")
	}
	user.Role = req.Role
	s.permissions.Invalidate(ctx, userID)

	oldValues, _ := json.Marshal(map[string]models.UserRole{"role": previous})
	newValues, _ := json.Marshal(map[string]models.UserRole{"role": req.Role})
	recordAudit(ctx, s.repo, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserRoleUpdate,
		Resource:   "user",
		ResourceID: &userID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
	return user, nil
}

// SetActive activates or deactivates an account. Deactivation drops the cached
// permissions so the next request is rejected.
func (s *UserService) SetActive(ctx context.Context, actorID, userID string, req models.SetActiveRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid activation payload")
	}
	active := *req.Active
	if !active && actorID == userID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "load")
	}
	groups, err := s.repo.GroupNames(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "load")
	}
	if ResolvePermissions(user.Role, groups, user.IsSuperuser).Has(models.CapSuperAdmin) {
		if err := s.requireSuperAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}

	previous := user.IsActive
	if err := s.repo.SetActive(ctx, userID, active, s.now()); err != nil {
		return nil, storeError(err, "user", "update")
	}
	user.IsActive = active
	s.permissions.Invalidate(ctx, userID)

	oldValues, _ := json.Marshal(map[string]bool{"is_active": previous})
	newValues, _ := json.Marshal(map[string]bool{"is_active": active})
	recordAudit(ctx, s.repo, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserActiveUpdate,
		Resource:   "user",
		ResourceID: &userID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
	return user, nil
}

// requireSuperAdmin rejects actors that cannot grant or revoke super admin access.
func (s *UserService) requireSuperAdmin(ctx context.Context, actorID string) error {
	perms, _, err := s.permissions.ForUser(ctx, actorID)
	if err != nil {
		return err
	}
	if !perms.Has(models.CapSuperAdmin) {
		return appErrors.Clone(appErrors.ErrForbidden, "only super admins can grant or revoke super admin access")
	}
	return nil
}

// checkRoleCommitments keeps instructors assigned to batches and students holding
// enrollments in their role.
func (s *UserService) checkRoleCommitments(ctx context.Context, userID string, from, to models.UserRole) error {
	if from == to || (from != models.RoleInstructor && from != models.RoleStudent) {
		return nil
	}
	held, err := s.repo.RoleCommitments(ctx, userID)
	if err != nil {
		return storeError(err, "user", "load")
	}
	switch {
	case from == models.RoleInstructor && held.Batches > 0:
		return appErrors.Clone(appErrors.ErrProtected, "instructor is still assigned to batches")
	case from == models.RoleStudent && held.Enrollments > 0:
		return appErrors.Clone(appErrors.ErrProtected, "student still holds enrollments")
	}
	return nil
}

func containsGroup(groups []string, name string) bool {
	for _, g := range groups {
		if g == name {
			return true
		}
	}
	return false
}

// normalizeGroups trims names and removes duplicates, keeping first-seen order.
func normalizeGroups(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		name := strings.TrimSpace(g)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
