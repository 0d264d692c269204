package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"gorm.io/gorm"
)

type TaskAuditModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     int       `gorm:"not null;default:0"`
	Action     string    `gorm:"size:16;not null"`
	EntityType string    `gorm:"size:32;not null;index:idx_task_audit_entity"`
	EntityID   int64     `gorm:"not null;index:idx_task_audit_entity"`
	OldValues  *string   `gorm:"type:text"`
	NewValues  *string   `gorm:"type:text"`
	Changes    *string   `gorm:"type:text"`
	ChangedAt  time.Time `gorm:"not null"`
}

func (TaskAuditModel) TableName() string { return "task_audit" }

type GormTaskAuditRepository struct {
	db *gorm.DB
}

func NewGormTaskAuditRepository(db *gorm.DB) *GormTaskAuditRepository {
	return &GormTaskAuditRepository{db: db}
}

func (r *GormTaskAuditRepository) Create(ctx context.Context, audit *entity.TaskAudit) error {
	if audit.ChangedAt.IsZero() {
		audit.ChangedAt = time.Now().UTC()
	}
	model := &TaskAuditModel{
		UserID:     audit.UserID,
		Action:     string(audit.Action),
		EntityType: audit.EntityType,
		EntityID:   audit.EntityID,
		OldValues:  audit.OldValues,
		NewValues:  audit.NewValues,
		Changes:    audit.Changes,
		ChangedAt:  audit.ChangedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	audit.ID = model.ID
	return nil
}

func (r *GormTaskAuditRepository) GetByTaskId(ctx context.Context, taskId int64) ([]entity.TaskAudit, error) {
	var models []TaskAuditModel
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND entity_type = ?", taskId, entity.AuditEntityTask).
		Order("changed_at DESC").Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find audit entries: %w", err)
	}

	audits := make([]entity.TaskAudit, len(models))
	for i, m := range models {
		audits[i] = entity.TaskAudit{
			ID:         m.ID,
			UserID:     m.UserID,
			Action:     entity.ActionType(m.Action),
			EntityType: m.EntityType,
			EntityID:   m.EntityID,
			OldValues:  m.OldValues,
			NewValues:  m.NewValues,
			Changes:    m.Changes,
			ChangedAt:  m.ChangedAt.UTC(),
		}
	}
	return audits, nil
}
