package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

const (
	courseColumns = `id, code, title, description, base_fee, is_active, created_at, updated_at`
	batchColumns  = `id, course_id, name, instructor_id, start_date, end_date, is_active, created_at, updated_at`
)

// CourseRepository manages courses and their scheduled batches.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// CreateCourse inserts a course.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, title, description, base_fee, is_active, created_at, updated_at) VALUES (:id, :code, :title, :description, :base_fee, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return wrapPQ("create course", err)
	}
	return nil
}

// FindCourseByID returns a course by identifier.
func (r *CourseRepository) FindCourseByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListCourses returns courses matching the filter with the total count.
func (r *CourseRepository) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := `FROM courses WHERE 1=1`
	var args []interface{}
	if filter.ActiveOnly {
		base += ` AND is_active = TRUE`
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		base += fmt.Sprintf(` AND (LOWER(code) LIKE $%d OR LOWER(title) LIKE $%d)`, len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	listQuery := fmt.Sprintf(`SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d`, courseColumns, base, size, (page-1)*size)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) `+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// SoftDeleteCourse marks a course inactive.
func (r *CourseRepository) SoftDeleteCourse(ctx context.Context, id string) error {
	const query = `UPDATE courses SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete course: %w", err)
	}
	return requireAffected(res)
}

// ActiveCoursesCount counts courses that have at least one batch.
func (r *CourseRepository) ActiveCoursesCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(DISTINCT course_id) FROM batches`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active courses: %w", err)
	}
	return count, nil
}

// CreateBatch inserts a batch.
func (r *CourseRepository) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, course_id, name, instructor_id, start_date, end_date, is_active, created_at, updated_at) VALUES (:id, :course_id, :name, :instructor_id, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return wrapPQ("create batch", err)
	}
	return nil
}

// FindBatchByID returns a batch by identifier.
func (r *CourseRepository) FindBatchByID(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return &batch, nil
}

// SoftDeleteBatch marks a batch inactive.
func (r *CourseRepository) SoftDeleteBatch(ctx context.Context, id string) error {
	const query = `UPDATE batches SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete batch: %w", err)
	}
	return requireAffected(res)
}

const upcomingBatchesQuery = `SELECT b.id, b.course_id, b.name, b.instructor_id, b.start_date, b.end_date, b.is_active, b.created_at, b.updated_at,
c.code AS course_code, c.title AS course_title,
u.username AS instructor_username, u.first_name AS instructor_first_name, u.last_name AS instructor_last_name
FROM batches b
JOIN courses c ON c.id = b.course_id
LEFT JOIN users u ON u.id = b.instructor_id
WHERE b.start_date BETWEEN $1 AND $2
ORDER BY b.start_date ASC
LIMIT $3`

// UpcomingBatches returns batches starting within [from, to], both bounds inclusive.
func (r *CourseRepository) UpcomingBatches(ctx context.Context, from, to time.Time, limit int) ([]models.BatchDetail, error) {
	var batches []models.BatchDetail
	if err := r.db.SelectContext(ctx, &batches, upcomingBatchesQuery, from, to, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list upcoming batches: %w", err)
	}
	return batches, nil
}

const instructorLoadQuery = `SELECT u.id AS instructor_id, u.username, u.first_name, u.last_name, COUNT(b.id) AS batch_count
FROM batches b
JOIN users u ON u.id = b.instructor_id
GROUP BY u.id, u.username, u.first_name, u.last_name
ORDER BY batch_count DESC, u.username ASC`

// InstructorLoad counts batches per assigned instructor. Unassigned batches are excluded.
func (r *CourseRepository) InstructorLoad(ctx context.Context) ([]models.InstructorLoad, error) {
	var load []models.InstructorLoad
	if err := r.db.SelectContext(ctx, &load, instructorLoadQuery); err != nil {
		return nil, fmt.Errorf("aggregate instructor load: %w", err)
	}
	return load, nil
}
