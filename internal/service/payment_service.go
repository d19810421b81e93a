package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/repository"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment, audit *models.AuditLog) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

type enrollmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// PaymentMeta carries request details recorded with the audit entry.
type PaymentMeta struct {
	IP        string
	UserAgent string
}

// PaymentService records tuition payments.
type PaymentService struct {
	repo        paymentRepository
	enrollments enrollmentLookup
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewPaymentService constructs the service. Payment dates are stamped in loc.
func NewPaymentService(repo paymentRepository, enrollments enrollmentLookup, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &PaymentService{repo: repo, enrollments: enrollments, validator: validate, logger: logger, loc: loc, now: time.Now}
}

// Record stores a payment received by actorID today. Amount, date and receiver
// are set once here and never updated.
func (s *PaymentService) Record(ctx context.Context, actorID string, req models.RecordPaymentRequest, meta PaymentMeta) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
	}

	var reference *string
	if req.ReferenceNumber != nil {
		if trimmed := strings.TrimSpace(*req.ReferenceNumber); trimmed != "" {
			reference = &trimmed
		}
	}

	y, m, d := s.now().In(s.loc).Date()
	payment := &models.Payment{
		EnrollmentID:    req.EnrollmentID,
		Amount:          req.Amount.Round(2),
		Method:          req.Method,
		ReferenceNumber: reference,
		ReceivedByID:    actorID,
		PaymentDate:     time.Date(y, m, d, 0, 0, 0, 0, s.loc),
		IsActive:        true,
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"enrollment_id": payment.EnrollmentID,
		"amount":        payment.Amount,
		"method":        payment.Method,
	})
	audit := &models.AuditLog{
		UserID:    &actorID,
		Action:    models.AuditActionPaymentRecord,
		Resource:  "payment",
		NewValues: payload,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}

	if err := s.repo.Create(ctx, payment, audit); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment does not exist")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "reference number already recorded")
		}
		return nil, storeError(err, "payment", "record")
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("enrollment_id", payment.EnrollmentID),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	return payment, nil
}

// ListForEnrollment returns the payment history of an enrollment.
func (s *PaymentService) ListForEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		return nil, storeError(err, "enrollment", "load")
	}
	payments, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, storeError(err, "payments", "list")
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}
