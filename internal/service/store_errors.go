package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/internal/repository"
	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// storeError maps repository failures onto typed API errors.
func storeError(err error, resource, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, resource+" already exists")
	case errors.Is(err, repository.ErrReferenced):
		return appErrors.Wrap(err, appErrors.ErrProtected.Code, appErrors.ErrProtected.Status, resource+" is referenced by other records")
	case errors.Is(err, repository.ErrCheckFailed):
		return appErrors.Invalid(err, "invalid "+resource+" values")
	case errors.Is(err, repository.ErrUnknownGroup):
		return appErrors.Invalid(err, "unknown group name")
	}
	return appErrors.Internal(err, "failed to "+action+" "+resource)
}

func invalid(err error, message string) error {
	return appErrors.Invalid(err, message)
}

func recordAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, log *models.AuditLog) {
	if writer == nil {
		return
	}
	if err := writer.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
