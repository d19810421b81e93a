package models

import (
	"strings"
	"time"
)

// UserRole represents the explicit role attribute stored on a user.
type UserRole string

const (
	RoleStudent    UserRole = "STUDENT"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleFinance    UserRole = "FINANCE"
	RoleITAdmin    UserRole = "IT_ADMIN"
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleFinance, RoleITAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Group names that grant dashboard capabilities.
const (
	GroupSuperAdmin = "Super Admin"
	GroupFinance    = "Finance"
	GroupITAdmin    = "IT Admin"
	GroupRegistrar  = "Registrar"
	GroupAdmissions = "Admissions"
)

// User represents an account stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	PhoneNumber  *string    `db:"phone_number" json:"phone_number,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	IsStaff      bool       `db:"is_staff" json:"is_staff"`
	IsSuperuser  bool       `db:"is_superuser" json:"is_superuser"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"date_joined"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the full name, or the username when no name is set.
func (u User) DisplayName() string {
	return displayName(u.FirstName, u.LastName, u.Username)
}

func displayName(first, last, username string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return username
	}
	return name
}

// StaffSummary is a lightweight view of a recently created staff account.
type StaffSummary struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Role      UserRole  `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"date_joined"`
}

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Username    string   `json:"username" validate:"required,min=3,max=150"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	FirstName   string   `json:"first_name" validate:"max=150"`
	LastName    string   `json:"last_name" validate:"max=150"`
	PhoneNumber *string  `json:"phone_number" validate:"omitempty,max=15"`
	Role        UserRole `json:"role" validate:"required,oneof=STUDENT INSTRUCTOR FINANCE IT_ADMIN SUPER_ADMIN"`
	IsStaff     bool     `json:"is_staff"`
	Groups      []string `json:"groups" validate:"dive,required"`
}

// SetGroupsRequest replaces the group memberships of a user.
type SetGroupsRequest struct {
	Groups []string `json:"groups" validate:"dive,required"`
}

// UpdateRoleRequest changes the stored role of a user.
type UpdateRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=STUDENT INSTRUCTOR FINANCE IT_ADMIN SUPER_ADMIN"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// RoleCommitments are the records that tie a user to the instructor or student role.
type RoleCommitments struct {
	Batches     int `db:"batches"`
	Enrollments int `db:"enrollments"`
}

// SetActiveRequest activates or deactivates an account.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
