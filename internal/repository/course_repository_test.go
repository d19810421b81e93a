package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

func TestCreateCourseDuplicateCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "courses_code_key"})

	err := repo.CreateCourse(context.Background(), &models.Course{Code: "NET101", Title: "Networking", BaseFee: decimal.NewFromInt(10000)})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCoursesWithSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + courseColumns + " FROM courses WHERE 1=1 AND is_active = TRUE AND (LOWER(code) LIKE $1 OR LOWER(title) LIKE $1) ORDER BY code ASC LIMIT 20 OFFSET 0")).
		WithArgs("%net%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "title", "description", "base_fee", "is_active", "created_at", "updated_at"}).
			AddRow("c1", "NET101", "Networking", "", "10000.00", true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE 1=1 AND is_active = TRUE AND (LOWER(code) LIKE $1 OR LOWER(title) LIKE $1)")).
		WithArgs("%net%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.ListCourses(context.Background(), models.CourseFilter{Search: " NET ", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	assert.True(t, decimal.NewFromInt(10000).Equal(courses[0].BaseFee))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteCourseMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET is_active = FALSE")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SoftDeleteCourse(context.Background(), "nope"), sql.ErrNoRows)
}

func TestActiveCoursesCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT course_id) FROM batches")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.ActiveCoursesCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestUpcomingBatchesPassesInclusiveWindow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := today.AddDate(0, 0, 30)
	now := time.Now()

	cols := []string{"id", "course_id", "name", "instructor_id", "start_date", "end_date", "is_active", "created_at", "updated_at", "course_code", "course_title", "instructor_username", "instructor_first_name", "instructor_last_name"}
	mock.ExpectQuery(regexp.QuoteMeta(upcomingBatchesQuery)).
		WithArgs(today, deadline, 5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b1", "c1", "NET-MAR", nil, deadline, deadline.AddDate(0, 2, 0), true, now, now, "NET101", "Networking", nil, nil, nil))

	batches, err := repo.UpcomingBatches(context.Background(), today, deadline, 5)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "", batches[0].InstructorName())
	assert.Equal(t, "NET101", batches[0].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstructorLoad(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(instructorLoadQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"instructor_id", "username", "first_name", "last_name", "batch_count"}).
			AddRow("i1", "otieno", "Paul", "Otieno", 3).
			AddRow("i2", "wanjiru", "", "", 1))

	load, err := repo.InstructorLoad(context.Background())
	require.NoError(t, err)
	require.Len(t, load, 2)
	assert.Equal(t, 3, load[0].BatchCount)
}
