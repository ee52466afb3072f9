package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/admin-backend/pkg/apierrors"
	"github.com/clubsphere/admin-backend/v1/models"
)

// AuditService persists the approval decisions administrators take, so the
// trail survives even when the upstream directory does not keep one.
type AuditService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewAuditService creates an AuditService backed by the given database
func NewAuditService(db *gorm.DB, logger *slog.Logger) *AuditService {
	return &AuditService{
		db:     db,
		logger: logger.With("service", "audit"),
	}
}

// RecordApproval stores one approval decision
func (s *AuditService) RecordApproval(actor *models.AuthenticatedUser, targetID string, req models.UpdateApprovalRequest, endpointRef string) (*models.ApprovalAudit, error) {
	if targetID == "" {
		return nil, fmt.Errorf("target id is required")
	}

	audit := &models.ApprovalAudit{
		AuditID:     "aud_" + uuid.New().String(),
		TargetID:    targetID,
		ActorID:     actor.IdpUserID,
		ActorEmail:  actor.Email,
		Decision:    string(req.Decision),
		Reason:      req.Reason,
		EndpointRef: endpointRef,
	}

	if err := s.db.Create(audit).Error; err != nil {
		return nil, apierrors.NewAPIErrorWithCause(apierrors.ErrorTypeInternal,
			"AUDIT_WRITE_FAILED", "Failed to record approval decision",
			http.StatusInternalServerError, err)
	}

	s.logger.Info("approval decision recorded",
		"auditId", audit.AuditID,
		"targetId", targetID,
		"decision", audit.Decision)

	return audit, nil
}

// ListForTarget returns the audit trail of one directory entry, newest first
func (s *AuditService) ListForTarget(targetID string) ([]models.ApprovalAudit, error) {
	var audits []models.ApprovalAudit
	err := s.db.Where("target_id = ?", targetID).
		Order("created_at DESC").
		Find(&audits).Error
	if err != nil {
		return nil, apierrors.NewAPIErrorWithCause(apierrors.ErrorTypeInternal,
			"AUDIT_READ_FAILED", "Failed to load audit trail",
			http.StatusInternalServerError, err)
	}
	return audits, nil
}
