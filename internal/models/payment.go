package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how money was received.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodMpesa PaymentMethod = "MPESA"
	PaymentMethodBank  PaymentMethod = "BANK"
)

// Label returns the human readable method name.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMethodCash:
		return "Cash"
	case PaymentMethodMpesa:
		return "M-Pesa"
	case PaymentMethodBank:
		return "Bank Transfer"
	}
	return string(m)
}

// Payment is an immutable record of money received against an enrollment.
type Payment struct {
	ID              string          `db:"id" json:"id"`
	EnrollmentID    string          `db:"enrollment_id" json:"enrollment_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Method          PaymentMethod   `db:"method" json:"method"`
	ReferenceNumber *string         `db:"reference_number" json:"reference_number,omitempty"`
	ReceivedByID    string          `db:"received_by" json:"received_by"`
	PaymentDate     time.Time       `db:"payment_date" json:"payment_date"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with enrollment, student and course info.
type PaymentDetail struct {
	Payment
	StudentUsername  string `db:"student_username" json:"student_username"`
	StudentFirstName string `db:"student_first_name" json:"-"`
	StudentLastName  string `db:"student_last_name" json:"-"`
	BatchName        string `db:"batch_name" json:"batch_name"`
	CourseCode       string `db:"course_code" json:"course_code"`
	CourseTitle      string `db:"course_title" json:"course_title"`
}

// StudentName returns the paying student's display name.
func (d PaymentDetail) StudentName() string {
	return displayName(d.StudentFirstName, d.StudentLastName, d.StudentUsername)
}

// PaymentTotals sums payments received within the dashboard windows.
type PaymentTotals struct {
	PaymentsToday     decimal.Decimal `db:"payments_today"`
	PaymentsThisMonth decimal.Decimal `db:"payments_this_month"`
}

// BalanceTotals sums per-enrollment balances split by sign.
type BalanceTotals struct {
	OutstandingTotal decimal.Decimal `db:"outstanding_total"`
	CreditTotal      decimal.Decimal `db:"credit_total"`
}

// FinanceStats are the finance dashboard aggregates.
type FinanceStats struct {
	PaymentsToday     decimal.Decimal `json:"payments_today"`
	PaymentsThisMonth decimal.Decimal `json:"payments_this_month"`
	OutstandingTotal  decimal.Decimal `json:"outstanding_total"`
	CreditTotal       decimal.Decimal `json:"credit_total"`
}

// CourseRevenue is the payment total collected for one course.
type CourseRevenue struct {
	CourseCode  string          `db:"course_code" json:"course_code"`
	CourseTitle string          `db:"course_title" json:"course_title"`
	Total       decimal.Decimal `db:"total" json:"total"`
}

// RecordPaymentRequest is the payload for logging a payment.
type RecordPaymentRequest struct {
	EnrollmentID    string          `json:"enrollment_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method" validate:"required,oneof=CASH MPESA BANK"`
	ReferenceNumber *string         `json:"reference_number" validate:"omitempty,max=100"`
}
