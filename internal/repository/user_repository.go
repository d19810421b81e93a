package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, phone_number, role, is_staff, is_superuser, is_active, last_login, created_at, updated_at`

// UserRepository provides database access for accounts, group memberships, sessions and audit logs.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns a user by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdateRole changes the explicit role attribute of a user.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole, ts time.Time) error {
	const query = `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, role, ts)
	if err != nil {
		return wrapPQ("update user role", err)
	}
	return requireAffected(res)
}

// SetActive flips the is_active flag of a user.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, ts time.Time) error {
	const query = `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, ts)
	if err != nil {
		return wrapPQ("update user active flag", err)
	}
	return requireAffected(res)
}

// RoleCommitments counts the batches a user teaches and the enrollments a user holds.
func (r *UserRepository) RoleCommitments(ctx context.Context, userID string) (models.RoleCommitments, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM batches WHERE instructor_id = $1) AS batches,
			(SELECT COUNT(*) FROM enrollments WHERE student_id = $1) AS enrollments`
	var out models.RoleCommitments
	if err := r.db.GetContext(ctx, &out, query, userID); err != nil {
		return models.RoleCommitments{}, fmt.Errorf("count role commitments: %w", err)
	}
	return out, nil
}

// Create inserts a user together with its group memberships.
func (r *UserRepository) Create(ctx context.Context, user *models.User, groups []string) (err error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, phone_number, role, is_staff, is_superuser, is_active, created_at, updated_at) VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :phone_number, :role, :is_staff, :is_superuser, :is_active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, user); err != nil {
		return wrapPQ("create user", err)
	}
	if err = insertGroups(ctx, tx, user.ID, groups); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// GroupNames lists the groups a user belongs to, sorted by name.
func (r *UserRepository) GroupNames(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT g.name FROM groups g JOIN user_groups ug ON ug.group_id = g.id WHERE ug.user_id = $1 ORDER BY g.name`
	var names []string
	if err := r.db.SelectContext(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	return names, nil
}

// SetGroups replaces the group memberships of a user.
func (r *UserRepository) SetGroups(ctx context.Context, userID string, groups []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set groups transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user groups: %w", err)
	}
	if err = insertGroups(ctx, tx, userID, groups); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set groups: %w", err)
	}
	return nil
}

func insertGroups(ctx context.Context, tx *sqlx.Tx, userID string, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	const query = `INSERT INTO user_groups (user_id, group_id) SELECT $1, id FROM groups WHERE name = ANY($2)`
	res, err := tx.ExecContext(ctx, query, userID, pq.Array(groups))
	if err != nil {
		return wrapPQ("insert user groups", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user groups: %w", err)
	}
	if int(n) != len(groups) {
		return fmt.Errorf("insert user groups: %w", ErrUnknownGroup)
	}
	return nil
}

// RecentStaff returns staff-flagged users ordered by join date descending.
func (r *UserRepository) RecentStaff(ctx context.Context, limit int) ([]models.StaffSummary, error) {
	const query = `SELECT id, username, first_name, last_name, email, role, created_at FROM users WHERE is_staff = TRUE ORDER BY created_at DESC LIMIT $1`
	var staff []models.StaffSummary
	if err := r.db.SelectContext(ctx, &staff, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list recent staff: %w", err)
	}
	return staff, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

func insertAuditLog(ctx context.Context, exec namedExecer, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := exec.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
