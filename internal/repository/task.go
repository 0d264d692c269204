package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, title, description, status, created_at, updated_at`

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{
		db: db,
	}
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	query := `
	INSERT INTO "task" (title, description, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + taskColumns

	createdTask, err := scanTask(r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
	))
	if err != nil {
		return nil, translatePgError(err)
	}

	return createdTask, nil
}

func (r *TaskRepository) GetByTaskId(ctx context.Context, taskId int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM "task" WHERE id = $1`

	task, err := scanTask(r.db.QueryRow(ctx, query, taskId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return task, nil
}

// Save - перезаписывает изменяемые поля задачи; created_at не трогаем
func (r *TaskRepository) Save(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	query := `
	UPDATE "task"
	SET title = $1, description = $2, status = $3, updated_at = $4
	WHERE id = $5
	RETURNING ` + taskColumns

	saved, err := scanTask(r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.UpdatedAt,
		task.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePgError(err)
	}

	return saved, nil
}

// Delete - удаление задачи, false если строки не было
func (r *TaskRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM "task" WHERE id = $1`, id)
	if err != nil {
		return false, translatePgError(err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *TaskRepository) List(ctx context.Context) ([]entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM "task" ORDER BY created_at DESC, id DESC`
	return r.queryTasks(ctx, query)
}

func (r *TaskRepository) ListByStatus(ctx context.Context, status entity.TaskStatus) ([]entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM "task" WHERE status = $1`
	return r.queryTasks(ctx, query, status)
}

// ListByTitleContaining - поиск по подстроке, с учетом регистра
func (r *TaskRepository) ListByTitleContaining(ctx context.Context, q string) ([]entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM "task" WHERE strpos(title, $1) > 0`
	return r.queryTasks(ctx, query, q)
}

func (r *TaskRepository) CountByStatus(ctx context.Context) (map[entity.TaskStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM "task" GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.TaskStatus]int64)
	for rows.Next() {
		var status entity.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]entity.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*entity.Task, error) {
	var task entity.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

// translatePgError turns PostgreSQL integrity violations into conflict errors.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505":
		conflict := entity.NewConflictError(entity.ConflictDuplicate, err)
		conflict.Field = pgErr.ColumnName
		return conflict
	case "23503", "23514", "23502":
		conflict := entity.NewConflictError(entity.ConflictConstraint, err)
		conflict.Field = pgErr.ColumnName
		return conflict
	}
	return fmt.Errorf("postgres error %s: %w", pgErr.Code, err)
}
