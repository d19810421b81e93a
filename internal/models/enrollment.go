package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
)

// Enrollment binds one student to one batch with a fee fixed at creation.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	BatchID   string           `db:"batch_id" json:"batch_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	AgreedFee decimal.Decimal  `db:"agreed_fee" json:"agreed_fee"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student, batch and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentUsername  string    `db:"student_username" json:"student_username"`
	StudentFirstName string    `db:"student_first_name" json:"-"`
	StudentLastName  string    `db:"student_last_name" json:"-"`
	BatchName        string    `db:"batch_name" json:"batch_name"`
	BatchEndDate     time.Time `db:"batch_end_date" json:"batch_end_date"`
	CourseCode       string    `db:"course_code" json:"course_code"`
	CourseTitle      string    `db:"course_title" json:"course_title"`
}

// StudentName returns the student's display name.
func (d EnrollmentDetail) StudentName() string {
	return displayName(d.StudentFirstName, d.StudentLastName, d.StudentUsername)
}

// DebtorRow is an enrollment annotated with its paid total and outstanding balance.
type DebtorRow struct {
	EnrollmentDetail
	PaidAmount  decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Outstanding decimal.Decimal `db:"outstanding" json:"outstanding"`
}

// EnrollmentStats holds global enrollment counters.
type EnrollmentStats struct {
	TotalEnrollments  int `db:"total_enrollments" json:"total_enrollments"`
	ActiveEnrollments int `db:"active_enrollments" json:"active_enrollments"`
	BatchCount        int `db:"batch_count" json:"active_batches"`
}

// CourseEnrollmentCount is the active cohort size of one course.
type CourseEnrollmentCount struct {
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	Count       int    `db:"count" json:"count"`
}

// EnrollmentLedger is the raw fee and paid total of one enrollment.
type EnrollmentLedger struct {
	EnrollmentID string          `db:"enrollment_id"`
	AgreedFee    decimal.Decimal `db:"agreed_fee"`
	PaidAmount   decimal.Decimal `db:"paid_amount"`
	CreatedAt    time.Time       `db:"created_at"`
}

// EnrollmentBalance is the derived balance view of one enrollment.
type EnrollmentBalance struct {
	EnrollmentID string          `json:"enrollment_id"`
	AgreedFee    decimal.Decimal `json:"agreed_fee"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	IsOverdue    bool            `json:"is_overdue"`
}

// Outstanding is agreed fee minus the sum of payments. It is negative when overpaid.
func Outstanding(agreedFee, paid decimal.Decimal) decimal.Decimal {
	return agreedFee.Sub(paid)
}

// IsOverdue reports whether a positive balance has been open for longer than after.
func IsOverdue(outstanding decimal.Decimal, createdAt, now time.Time, after time.Duration) bool {
	return outstanding.IsPositive() && now.Sub(createdAt) > after
}

// CreateEnrollmentRequest is the payload for enrolling a student.
type CreateEnrollmentRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	BatchID   string           `json:"batch_id" validate:"required"`
	AgreedFee *decimal.Decimal `json:"agreed_fee"`
}

// UpdateEnrollmentStatusRequest changes the enrollment lifecycle status.
type UpdateEnrollmentStatusRequest struct {
	Status EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE COMPLETED DROPPED SUSPENDED"`
}
