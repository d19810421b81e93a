package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

// DashboardResponse is the personalised admin dashboard payload. Widget fields
// are present only when the selected profile renders them.
type DashboardResponse struct {
	Profile              string           `json:"profile"`
	DashboardKPIs        []KPI            `json:"dashboard_kpis"`
	QuickActions         []QuickAction    `json:"quick_actions"`
	RoleFlags            models.RoleFlags `json:"role_flags"`
	WidgetTitle          string           `json:"widget_title"`
	SecondaryWidgetTitle string           `json:"secondary_widget_title"`

	RecentPayments         *[]PaymentItem        `json:"recent_payments,omitempty"`
	TopDebtors             *[]DebtorItem         `json:"top_debtors,omitempty"`
	RecentEnrollments      *[]EnrollmentItem     `json:"recent_enrollments,omitempty"`
	ApproachingEnrollments *[]EnrollmentItem     `json:"approaching_enrollments,omitempty"`
	CohortSizes            *[]CohortSizeItem     `json:"cohort_sizes,omitempty"`
	UpcomingBatches        *[]BatchItem          `json:"upcoming_batches,omitempty"`
	RecentStaff            *[]StaffItem          `json:"recent_staff,omitempty"`
	InstructorLoad         *[]InstructorLoadItem `json:"instructor_load,omitempty"`
	RevenueByCourse        *[]RevenueItem        `json:"revenue_by_course,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// KPI is a single headline figure. Value is an int for counts and a decimal for money.
type KPI struct {
	Key         string      `json:"key"`
	Label       string      `json:"label"`
	Value       interface{} `json:"value"`
	Display     string      `json:"display"`
	Description string      `json:"description"`
}

// QuickAction is a role specific shortcut into the admin UI.
type QuickAction struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// PaymentItem describes one recent payment.
type PaymentItem struct {
	ID              string          `json:"id"`
	EnrollmentID    string          `json:"enrollment_id"`
	StudentName     string          `json:"student_name"`
	CourseCode      string          `json:"course_code"`
	CourseTitle     string          `json:"course_title"`
	BatchName       string          `json:"batch_name"`
	Amount          decimal.Decimal `json:"amount"`
	AmountDisplay   string          `json:"amount_display"`
	Method          string          `json:"method"`
	MethodLabel     string          `json:"method_label"`
	ReferenceNumber *string         `json:"reference_number,omitempty"`
	PaymentDate     string          `json:"payment_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DebtorItem is an enrollment with a positive balance.
type DebtorItem struct {
	EnrollmentID       string          `json:"enrollment_id"`
	StudentName        string          `json:"student_name"`
	CourseCode         string          `json:"course_code"`
	CourseTitle        string          `json:"course_title"`
	BatchName          string          `json:"batch_name"`
	AgreedFee          decimal.Decimal `json:"agreed_fee"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	Outstanding        decimal.Decimal `json:"outstanding"`
	OutstandingDisplay string          `json:"outstanding_display"`
	IsOverdue          bool            `json:"is_overdue"`
	EnrolledAt         time.Time       `json:"enrolled_at"`
}

// EnrollmentItem describes one enrollment in a list widget.
type EnrollmentItem struct {
	ID           string          `json:"id"`
	StudentName  string          `json:"student_name"`
	CourseCode   string          `json:"course_code"`
	CourseTitle  string          `json:"course_title"`
	BatchName    string          `json:"batch_name"`
	BatchEndDate string          `json:"batch_end_date"`
	Status       string          `json:"status"`
	AgreedFee    decimal.Decimal `json:"agreed_fee"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CohortSizeItem is the active enrollment count of one course.
type CohortSizeItem struct {
	CourseCode  string `json:"course_code"`
	CourseTitle string `json:"course_title"`
	Count       int    `json:"count"`
}

// BatchItem describes one upcoming batch.
type BatchItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CourseCode     string `json:"course_code"`
	CourseTitle    string `json:"course_title"`
	InstructorName string `json:"instructor_name,omitempty"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}

// StaffItem describes a recently created staff account.
type StaffItem struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	DateJoined  time.Time `json:"date_joined"`
}

// InstructorLoadItem is the batch count of one instructor.
type InstructorLoadItem struct {
	InstructorID string `json:"instructor_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	BatchCount   int    `json:"batch_count"`
}

// RevenueItem is the payment total collected for one course.
type RevenueItem struct {
	CourseCode   string          `json:"course_code"`
	CourseTitle  string          `json:"course_title"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"total_display"`
}

// PermissionsResponse is returned by the current-user permissions endpoint.
type PermissionsResponse struct {
	UserID  string           `json:"user_id"`
	Flags   models.RoleFlags `json:"role_flags"`
	Profile string           `json:"profile"`
}
