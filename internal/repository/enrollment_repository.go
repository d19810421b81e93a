package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

const enrollmentColumns = `id, student_id, batch_id, status, agreed_fee, is_active, created_at, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.batch_id, e.status, e.agreed_fee, e.is_active, e.created_at, e.updated_at,
u.username AS student_username, u.first_name AS student_first_name, u.last_name AS student_last_name,
b.name AS batch_name, b.end_date AS batch_end_date, c.code AS course_code, c.title AS course_title
FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = b.course_id`

// EnrollmentRepository handles persistence and aggregation of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create stores a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, batch_id, status, agreed_fee, is_active, created_at, updated_at) VALUES (:id, :student_id, :batch_id, :status, :agreed_fee, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return wrapPQ("create enrollment", err)
	}
	return nil
}

// FindByID fetches an enrollment by id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// UpdateStatus changes the lifecycle status. The agreed fee is never touched.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return wrapPQ("update enrollment status", err)
	}
	return requireAffected(res)
}

// Delete removes an enrollment. Existing payments block the delete with ErrReferenced.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return wrapPQ("delete enrollment", err)
	}
	return requireAffected(res)
}

// SoftDelete marks an enrollment inactive.
func (r *EnrollmentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete enrollment: %w", err)
	}
	return requireAffected(res)
}

// Ledger returns the agreed fee and paid total for one enrollment.
func (r *EnrollmentRepository) Ledger(ctx context.Context, id string) (*models.EnrollmentLedger, error) {
	const query = `SELECT e.id AS enrollment_id, e.agreed_fee, COALESCE(SUM(p.amount), 0) AS paid_amount, e.created_at
FROM enrollments e
LEFT JOIN payments p ON p.enrollment_id = e.id
WHERE e.id = $1
GROUP BY e.id`
	var ledger models.EnrollmentLedger
	if err := r.db.GetContext(ctx, &ledger, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load enrollment ledger: %w", err)
	}
	return &ledger, nil
}

const enrollmentStatsQuery = `SELECT
(SELECT COUNT(*) FROM enrollments) AS total_enrollments,
(SELECT COUNT(*) FROM enrollments WHERE status = 'ACTIVE') AS active_enrollments,
(SELECT COUNT(*) FROM batches) AS batch_count`

// Stats returns global enrollment and batch counters.
func (r *EnrollmentRepository) Stats(ctx context.Context) (models.EnrollmentStats, error) {
	var stats models.EnrollmentStats
	if err := r.db.GetContext(ctx, &stats, enrollmentStatsQuery); err != nil {
		return models.EnrollmentStats{}, fmt.Errorf("enrollment stats: %w", err)
	}
	return stats, nil
}

// Recent returns the latest enrollments with student, batch and course attached.
func (r *EnrollmentRepository) Recent(ctx context.Context, limit int) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` ORDER BY e.created_at DESC LIMIT $1`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list recent enrollments: %w", err)
	}
	return rows, nil
}

// CountCreatedBetween counts enrollments created in [from, to).
func (r *EnrollmentRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE created_at >= $1 AND created_at < $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, from, to); err != nil {
		return 0, fmt.Errorf("count new enrollments: %w", err)
	}
	return count, nil
}

// ApproachingCompletion returns active enrollments whose batch ends within [from, to].
func (r *EnrollmentRepository) ApproachingCompletion(ctx context.Context, from, to time.Time, limit int) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.status = 'ACTIVE' AND b.end_date BETWEEN $1 AND $2 ORDER BY b.end_date ASC LIMIT $3`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, from, to, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list approaching completion: %w", err)
	}
	return rows, nil
}

const activePerCourseQuery = `SELECT c.code AS course_code, c.title AS course_title, COUNT(e.id) AS count
FROM enrollments e
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = b.course_id
WHERE e.status = 'ACTIVE'
GROUP BY c.code, c.title
ORDER BY count DESC, c.code ASC`

// ActivePerCourse counts active enrollments grouped by course.
func (r *EnrollmentRepository) ActivePerCourse(ctx context.Context) ([]models.CourseEnrollmentCount, error) {
	var rows []models.CourseEnrollmentCount
	if err := r.db.SelectContext(ctx, &rows, activePerCourseQuery); err != nil {
		return nil, fmt.Errorf("count active enrollments per course: %w", err)
	}
	return rows, nil
}
