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

const paymentColumns = `id, enrollment_id, amount, method, reference_number, received_by, payment_date, is_active, created_at, updated_at`

const paymentDetailSelect = `SELECT p.id, p.enrollment_id, p.amount, p.method, p.reference_number, p.received_by, p.payment_date, p.is_active, p.created_at, p.updated_at,
u.username AS student_username, u.first_name AS student_first_name, u.last_name AS student_last_name,
b.name AS batch_name, c.code AS course_code, c.title AS course_title
FROM payments p
JOIN enrollments e ON e.id = p.enrollment_id
JOIN users u ON u.id = e.student_id
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = b.course_id`

// PaymentRepository records payments and computes finance aggregates.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create locks the enrollment row, inserts the payment and writes the audit entry in one transaction.
// It returns sql.ErrNoRows when the enrollment does not exist.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment, audit *models.AuditLog) (err error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollmentID string
	const lockQuery = `SELECT id FROM enrollments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &enrollmentID, lockQuery, payment.EnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}

	const insertQuery = `INSERT INTO payments (id, enrollment_id, amount, method, reference_number, received_by, payment_date, is_active, created_at, updated_at) VALUES (:id, :enrollment_id, :amount, :method, :reference_number, :received_by, :payment_date, :is_active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, payment); err != nil {
		return wrapPQ("insert payment", err)
	}

	if audit != nil {
		resourceID := payment.ID
		audit.ResourceID = &resourceID
		if err = insertAuditLog(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

// ListByEnrollment returns the payment history of one enrollment, newest first.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_id = $1 ORDER BY payment_date DESC, created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment payments: %w", err)
	}
	return payments, nil
}

const paymentTotalsQuery = `SELECT
COALESCE(SUM(amount) FILTER (WHERE payment_date = $1), 0) AS payments_today,
COALESCE(SUM(amount) FILTER (WHERE payment_date >= $2 AND payment_date < $3), 0) AS payments_this_month
FROM payments`

// Totals sums payments dated today and within [monthStart, monthEnd).
func (r *PaymentRepository) Totals(ctx context.Context, today, monthStart, monthEnd time.Time) (models.PaymentTotals, error) {
	var totals models.PaymentTotals
	if err := r.db.GetContext(ctx, &totals, paymentTotalsQuery, today, monthStart, monthEnd); err != nil {
		return models.PaymentTotals{}, fmt.Errorf("sum payments: %w", err)
	}
	return totals, nil
}

const balanceTotalsQuery = `SELECT
COALESCE(SUM(GREATEST(balance, 0)), 0) AS outstanding_total,
COALESCE(SUM(GREATEST(-balance, 0)), 0) AS credit_total
FROM (
SELECT e.agreed_fee - COALESCE(SUM(p.amount), 0) AS balance
FROM enrollments e
LEFT JOIN payments p ON p.enrollment_id = e.id
GROUP BY e.id
) balances`

// BalanceTotals sums per-enrollment balances, owed amounts and overpayments separately.
func (r *PaymentRepository) BalanceTotals(ctx context.Context) (models.BalanceTotals, error) {
	var totals models.BalanceTotals
	if err := r.db.GetContext(ctx, &totals, balanceTotalsQuery); err != nil {
		return models.BalanceTotals{}, fmt.Errorf("sum balances: %w", err)
	}
	return totals, nil
}

// Recent returns the latest payments ordered by payment date then creation time.
func (r *PaymentRepository) Recent(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	query := paymentDetailSelect + ` ORDER BY p.payment_date DESC, p.created_at DESC LIMIT $1`
	var rows []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &rows, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	return rows, nil
}

const topDebtorsQuery = `SELECT e.id, e.student_id, e.batch_id, e.status, e.agreed_fee, e.is_active, e.created_at, e.updated_at,
u.username AS student_username, u.first_name AS student_first_name, u.last_name AS student_last_name,
b.name AS batch_name, b.end_date AS batch_end_date, c.code AS course_code, c.title AS course_title,
COALESCE(paid.total, 0) AS paid_amount,
e.agreed_fee - COALESCE(paid.total, 0) AS outstanding
FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = b.course_id
LEFT JOIN (SELECT enrollment_id, SUM(amount) AS total FROM payments GROUP BY enrollment_id) paid ON paid.enrollment_id = e.id
WHERE e.agreed_fee - COALESCE(paid.total, 0) > 0
ORDER BY outstanding DESC, e.created_at ASC
LIMIT $1`

// TopDebtors returns enrollments with a positive balance, largest first.
func (r *PaymentRepository) TopDebtors(ctx context.Context, limit int) ([]models.DebtorRow, error) {
	var rows []models.DebtorRow
	if err := r.db.SelectContext(ctx, &rows, topDebtorsQuery, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("list top debtors: %w", err)
	}
	return rows, nil
}

const revenueByCourseQuery = `SELECT c.code AS course_code, c.title AS course_title, SUM(p.amount) AS total
FROM payments p
JOIN enrollments e ON e.id = p.enrollment_id
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = b.course_id
GROUP BY c.code, c.title
ORDER BY total DESC, c.code ASC`

// RevenueByCourse sums every payment grouped by course.
func (r *PaymentRepository) RevenueByCourse(ctx context.Context) ([]models.CourseRevenue, error) {
	var rows []models.CourseRevenue
	if err := r.db.SelectContext(ctx, &rows, revenueByCourseQuery); err != nil {
		return nil, fmt.Errorf("aggregate revenue by course: %w", err)
	}
	return rows, nil
}
