package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type courseRepository interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	FindCourseByID(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	SoftDeleteCourse(ctx context.Context, id string) error
	CreateBatch(ctx context.Context, batch *models.Batch) error
	SoftDeleteBatch(ctx context.Context, id string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseService manages the course catalogue and batch schedule.
type CourseService struct {
	repo      courseRepository
	users     userReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates a new course service.
func NewCourseService(repo courseRepository, users userReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, users: users, audit: audit, validator: validate, logger: logger}
}

// ListCourses returns paginated courses.
func (s *CourseService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	courses, total, err := s.repo.ListCourses(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "courses", "list")
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// CreateCourse adds a course. Codes are stored upper-case and must be unique.
func (s *CourseService) CreateCourse(ctx context.Context, actorID string, req models.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid course payload")
	}
	if req.BaseFee.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "base_fee must not be negative")
	}

	course := &models.Course{
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		BaseFee:     req.BaseFee.Round(2),
		IsActive:    true,
	}
	if err := s.repo.CreateCourse(ctx, course); err != nil {
		return nil, storeError(err, "course", "create")
	}

	payload, _ := json.Marshal(course)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCourseCreate,
		Resource:   "course",
		ResourceID: &course.ID,
		NewValues:  payload,
	})
	return course, nil
}

// DeleteCourse deactivates a course.
func (s *CourseService) DeleteCourse(ctx context.Context, actorID, id string) error {
	if err := s.repo.SoftDeleteCourse(ctx, id); err != nil {
		return storeError(err, "course", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCourseDelete,
		Resource:   "course",
		ResourceID: &id,
	})
	return nil
}

// CreateBatch schedules a batch for an existing course. An assigned instructor
// must hold the INSTRUCTOR role.
func (s *CourseService) CreateBatch(ctx context.Context, actorID string, req models.CreateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid batch payload")
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, invalid(err, "invalid start_date")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, invalid(err, "invalid end_date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	if _, err := s.repo.FindCourseByID(ctx, req.CourseID); err != nil {
		return nil, referenceError(err, "course")
	}

	var instructorID *string
	if req.InstructorID != nil && strings.TrimSpace(*req.InstructorID) != "" {
		instructor, err := s.users.FindByID(ctx, *req.InstructorID)
		if err != nil {
			return nil, referenceError(err, "instructor")
		}
		if instructor.Role != models.RoleInstructor {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user is not an instructor")
		}
		instructorID = &instructor.ID
	}

	batch := &models.Batch{
		CourseID:     req.CourseID,
		Name:         strings.TrimSpace(req.Name),
		InstructorID: instructorID,
		StartDate:    start,
		EndDate:      end,
		IsActive:     true,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, storeError(err, "batch", "create")
	}

	payload, _ := json.Marshal(batch)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionBatchCreate,
		Resource:   "batch",
		ResourceID: &batch.ID,
		NewValues:  payload,
	})
	return batch, nil
}

// DeleteBatch deactivates a batch.
func (s *CourseService) DeleteBatch(ctx context.Context, actorID, id string) error {
	if err := s.repo.SoftDeleteBatch(ctx, id); err != nil {
		return storeError(err, "batch", "delete")
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionBatchDelete,
		Resource:   "batch",
		ResourceID: &id,
	})
	return nil
}

// referenceError reports a missing referenced row as a validation failure of the payload.
func referenceError(err error, resource string) error {
	mapped := storeError(err, resource, "load")
	var appErr *appErrors.Error
	if errors.As(mapped, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
		return appErrors.Clone(appErrors.ErrValidation, resource+" does not exist")
	}
	return mapped
}
