package repository

import (
	"context"

	"github.com/St1cky1/tarefa-service/internal/entity"
)

// ITaskRepository - интерфейс хранилища задач.
// Lookups of a missing id return (nil, nil).
type ITaskRepository interface {
	Create(ctx context.Context, task *entity.Task) (*entity.Task, error)
	GetByTaskId(ctx context.Context, taskId int64) (*entity.Task, error)
	Save(ctx context.Context, task *entity.Task) (*entity.Task, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]entity.Task, error)
	ListByStatus(ctx context.Context, status entity.TaskStatus) ([]entity.Task, error)
	ListByTitleContaining(ctx context.Context, query string) ([]entity.Task, error)
	CountByStatus(ctx context.Context) (map[entity.TaskStatus]int64, error)
}

// ITaskAuditRepository - интерфейс для журнала аудита
type ITaskAuditRepository interface {
	Create(ctx context.Context, audit *entity.TaskAudit) error
	GetByTaskId(ctx context.Context, taskId int64) ([]entity.TaskAudit, error)
}
