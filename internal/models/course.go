package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is the catalogue entry a batch is scheduled from.
type Course struct {
	ID          string          `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	BaseFee     decimal.Decimal `db:"base_fee" json:"base_fee"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Batch is a scheduled cohort of a course.
type Batch struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Name         string    `db:"name" json:"name"`
	InstructorID *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BatchDetail enriches Batch with course and instructor info.
type BatchDetail struct {
	Batch
	CourseCode          string  `db:"course_code" json:"course_code"`
	CourseTitle         string  `db:"course_title" json:"course_title"`
	InstructorUsername  *string `db:"instructor_username" json:"instructor_username,omitempty"`
	InstructorFirstName *string `db:"instructor_first_name" json:"-"`
	InstructorLastName  *string `db:"instructor_last_name" json:"-"`
}

// InstructorName returns the instructor display name, or empty when unassigned.
func (b BatchDetail) InstructorName() string {
	if b.InstructorUsername == nil {
		return ""
	}
	return displayName(deref(b.InstructorFirstName), deref(b.InstructorLastName), *b.InstructorUsername)
}

// InstructorLoad counts batches assigned to one instructor.
type InstructorLoad struct {
	InstructorID string `db:"instructor_id" json:"instructor_id"`
	Username     string `db:"username" json:"username"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	BatchCount   int    `db:"batch_count" json:"batch_count"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// CreateCourseRequest is the payload for a new course.
type CreateCourseRequest struct {
	Code        string          `json:"code" validate:"required,max=50"`
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description"`
	BaseFee     decimal.Decimal `json:"base_fee"`
}

// CreateBatchRequest is the payload for a new batch.
type CreateBatchRequest struct {
	CourseID     string  `json:"course_id" validate:"required"`
	Name         string  `json:"name" validate:"required,max=100"`
	InstructorID *string `json:"instructor_id" validate:"omitempty"`
	StartDate    string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string  `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
