package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"gorm.io/gorm"
)

// TaskModel is the gorm mapping of the task table.
type TaskModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"size:100;not null"`
	Description *string   `gorm:"type:text"`
	Status      string    `gorm:"size:20;not null;index"`
	CreatedAt   time.Time `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (TaskModel) TableName() string { return "task" }

func (m *TaskModel) toEntity() entity.Task {
	return entity.Task{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      entity.TaskStatus(m.Status),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func taskModelFrom(t *entity.Task) *TaskModel {
	return &TaskModel{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// GormTaskRepository stores tasks through gorm; used with the SQLite driver.
type GormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// Migrate creates or updates the task and audit tables.
func (r *GormTaskRepository) Migrate() error {
	return r.db.AutoMigrate(&TaskModel{}, &TaskAuditModel{})
}

func (r *GormTaskRepository) Create(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	model := taskModelFrom(task)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, translateGormError(err)
	}
	created := model.toEntity()
	return &created, nil
}

func (r *GormTaskRepository) GetByTaskId(ctx context.Context, taskId int64) (*entity.Task, error) {
	var model TaskModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", taskId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	task := model.toEntity()
	return &task, nil
}

func (r *GormTaskRepository) Save(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	// Select forces nil description to be written as NULL.
	result := r.db.WithContext(ctx).
		Model(&TaskModel{ID: task.ID}).
		Select("title", "description", "status", "updated_at").
		Updates(taskModelFrom(task))
	if result.Error != nil {
		return nil, translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByTaskId(ctx, task.ID)
}

func (r *GormTaskRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&TaskModel{}, "id = ?", id)
	if result.Error != nil {
		return false, translateGormError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormTaskRepository) List(ctx context.Context) ([]entity.Task, error) {
	return r.find(r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC"))
}

func (r *GormTaskRepository) ListByStatus(ctx context.Context, status entity.TaskStatus) ([]entity.Task, error) {
	return r.find(r.db.WithContext(ctx).Where("status = ?", string(status)))
}

// ListByTitleContaining uses instr, which is case-sensitive unlike LIKE in SQLite.
func (r *GormTaskRepository) ListByTitleContaining(ctx context.Context, query string) ([]entity.Task, error) {
	return r.find(r.db.WithContext(ctx).Where("instr(title, ?) > 0", query))
}

func (r *GormTaskRepository) CountByStatus(ctx context.Context) (map[entity.TaskStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	counts := make(map[entity.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[entity.TaskStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *GormTaskRepository) find(q *gorm.DB) ([]entity.Task, error) {
	var models []TaskModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	tasks := make([]entity.Task, len(models))
	for i := range models {
		tasks[i] = models[i].toEntity()
	}
	return tasks, nil
}

// translateGormError needs gorm.Config.TranslateError enabled.
func translateGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return entity.NewConflictError(entity.ConflictDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return entity.NewConflictError(entity.ConflictConstraint, err)
	}
	return err
}
