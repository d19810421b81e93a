package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "first_name", "last_name", "phone_number", "role", "is_staff", "is_superuser", "is_active", "last_login", "created_at", "updated_at"}

func TestFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "jane", "jane@example.com", "hash", "Jane", "Doe", nil, string(models.RoleFinance), true, false, true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE username = $1 LIMIT 1")).
		WithArgs("jane").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, models.RoleFinance, user.Role)
	assert.Equal(t, "Jane Doe", user.DisplayName())
	assert.Nil(t, user.PhoneNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsernameNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE username").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateUserWithGroups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_groups (user_id, group_id) SELECT $1, id FROM groups WHERE name = ANY($2)")).
		WithArgs(sqlmock.AnyArg(), pq.Array([]string{"Finance", "Registrar"})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	user := &models.User{Username: "clerk", PasswordHash: "hash", Role: models.RoleFinance, IsStaff: true, IsActive: true}
	err := repo.Create(context.Background(), user, []string{"Finance", "Registrar"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "clerk"}, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGroupsRejectsUnknownGroup(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_groups WHERE user_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_groups").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := repo.SetGroups(context.Background(), "u1", []string{"Finance", "Wizards"})
	assert.ErrorIs(t, err, ErrUnknownGroup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGroupsClearsMemberships(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_groups").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.SetGroups(context.Background(), "u1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupNames(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT g.name FROM groups g JOIN user_groups ug ON ug.group_id = g.id WHERE ug.user_id = $1 ORDER BY g.name")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Finance").AddRow("Registrar"))

	names, err := repo.GroupNames(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance", "Registrar"}, names)
}

func TestRecentStaff(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE is_staff = TRUE ORDER BY created_at DESC LIMIT $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "first_name", "last_name", "email", "role", "created_at"}).
			AddRow("u2", "it", "", "", "it@example.com", string(models.RoleITAdmin), now))

	staff, err := repo.RecentStaff(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "it", staff[0].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleMissingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $2, updated_at = $3 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRole(context.Background(), "missing", models.RoleFinance, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{UserID: "u1", Token: "token", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	ts := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("u1", false, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetActive(context.Background(), "u1", false, ts))
	assert.ErrorIs(t, repo.SetActive(context.Background(), "missing", false, ts), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleCommitments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM batches WHERE instructor_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"batches", "enrollments"}).AddRow(2, 0))

	held, err := repo.RoleCommitments(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCommitments{Batches: 2}, held)
	assert.NoError(t, mock.ExpectationsWereMet())
}
