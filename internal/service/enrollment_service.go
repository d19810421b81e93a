package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	Ledger(ctx context.Context, id string) (*models.EnrollmentLedger, error)
}

type batchCatalog interface {
	FindBatchByID(ctx context.Context, id string) (*models.Batch, error)
	FindCourseByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo         enrollmentRepository
	catalog      batchCatalog
	users        userReader
	audit        auditWriter
	validator    *validator.Validate
	logger       *zap.Logger
	overdueAfter time.Duration
	now          func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. overdueAfterDays defaults to 30.
func NewEnrollmentService(repo enrollmentRepository, catalog batchCatalog, users userReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger, overdueAfterDays int) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if overdueAfterDays <= 0 {
		overdueAfterDays = 30
	}
	return &EnrollmentService{
		repo:         repo,
		catalog:      catalog,
		users:        users,
		audit:        audit,
		validator:    validate,
		logger:       logger,
		overdueAfter: time.Duration(overdueAfterDays) * 24 * time.Hour,
		now:          time.Now,
	}
}

// Enroll registers a student in a batch. Without an explicit agreed fee the
// course base fee is used; the fee is fixed from then on.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID string, req models.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid enrollment payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, referenceError(err, "student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can be enrolled")
	}

	batch, err := s.catalog.FindBatchByID(ctx, req.BatchID)
	if err != nil {
		return nil, referenceError(err, "batch")
	}

	fee := req.AgreedFee
	if fee == nil {
		course, err := s.catalog.FindCourseByID(ctx, batch.CourseID)
		if err != nil {
			return nil, referenceError(err, "course")
		}
		fee = &course.BaseFee
	}
	if fee.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "agreed_fee must not be negative")
	}

	enrollment := &models.Enrollment{
		StudentID: student.ID,
		BatchID:   batch.ID,
		Status:    models.EnrollmentStatusActive,
		AgreedFee: fee.Round(2),
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, storeError(err, "enrollment", "create")
	}

	payload, _ := json.Marshal(enrollment)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentCreate,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
		NewValues:  payload,
	})
	return enrollment, nil
}

// UpdateStatus moves an enrollment to a new lifecycle status.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actorID, id string, req models.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid status payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "enrollment", "load")
	}
	previous := enrollment.Status
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, storeError(err, "enrollment", "update")
	}
	enrollment.Status = req.Status

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentStatus,
		Resource:   "enrollment",
		ResourceID: &id,
		OldValues:  statusPayload(previous),
		NewValues:  statusPayload(req.Status),
	})
	return enrollment, nil
}

// Delete removes an enrollment. Enrollments with payments are protected.
func (s *EnrollmentService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "enrollment", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentDelete,
		Resource:   "enrollment",
		ResourceID: &id,
	})
	return nil
}

// Archive deactivates an enrollment while keeping its payment history.
func (s *EnrollmentService) Archive(ctx context.Context, actorID, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return storeError(err, "enrollment", "archive")
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentDelete,
		Resource:   "enrollment",
		ResourceID: &id,
		NewValues:  []byte(`{"is_active":false}`),
	})
	return nil
}

// Balance derives the outstanding balance and overdue flag of one enrollment.
func (s *EnrollmentService) Balance(ctx context.Context, id string) (*models.EnrollmentBalance, error) {
	ledger, err := s.repo.Ledger(ctx, id)
	if err != nil {
		return nil, storeError(err, "enrollment", "load")
	}
	outstanding := models.Outstanding(ledger.AgreedFee, ledger.PaidAmount)
	return &models.EnrollmentBalance{
		EnrollmentID: ledger.EnrollmentID,
		AgreedFee:    ledger.AgreedFee,
		PaidAmount:   ledger.PaidAmount,
		Outstanding:  outstanding,
		IsOverdue:    models.IsOverdue(outstanding, ledger.CreatedAt, s.now(), s.overdueAfter),
	}, nil
}

func statusPayload(status models.EnrollmentStatus) []byte {
	payload, _ := json.Marshal(map[string]models.EnrollmentStatus{"status": status})
	return payload
}
