package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel contains common fields for all persisted models
type BaseModel struct {
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// BeforeCreate GORM hook for BaseModel
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM hook for BaseModel
func (b *BaseModel) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = time.Now()
	return nil
}

// ApprovalAudit records one approval decision taken by an administrator
// against a directory entry.
type ApprovalAudit struct {
	AuditID     string `gorm:"primarykey;column:audit_id" json:"auditId"`
	TargetID    string `gorm:"column:target_id;not null;index" json:"targetId"`
	ActorID     string `gorm:"column:actor_id;not null" json:"actorId"`
	ActorEmail  string `gorm:"column:actor_email" json:"actorEmail"`
	Decision    string `gorm:"column:decision;not null" json:"decision"`
	Reason      string `gorm:"column:reason" json:"reason,omitempty"`
	EndpointRef string `gorm:"column:endpoint_ref" json:"endpointRef,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (ApprovalAudit) TableName() string {
	return "approval_audits"
}
