package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"github.com/St1cky1/tarefa-service/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	statisticsCacheKey = "statistics:summary"
	publishTimeout     = 5 * time.Second
)

// AuditPublisher интерфейс для публикации аудита (RabbitMQ)
type AuditPublisher interface {
	PublishAuditMessage(ctx context.Context, message *entity.AuditMessage) error
}

// StatsCache is the cache-aside store for the statistics summary.
type StatsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

type TaskService struct {
	taskRepo  repository.ITaskRepository
	auditRepo repository.ITaskAuditRepository
	publisher AuditPublisher
	cache     StatsCache

	sf       singleflight.Group
	inflight sync.WaitGroup
	// generation is bumped by every mutation
	generation atomic.Uint64
	now      func() time.Time
}

func NewTaskService(
	taskRepo repository.ITaskRepository,
	auditRepo repository.ITaskAuditRepository,
	publisher AuditPublisher,
	cache StatsCache,
) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		auditRepo: auditRepo,
		publisher: publisher,
		cache:     cache,
		now:       time.Now,
	}
}

// CreateTask validates req, defaults the status to PENDING and persists the task.
func (s *TaskService) CreateTask(ctx context.Context, req *entity.CreateTaskRequest) (*entity.Task, error) {
	if err := req.Validate(); err != nil {
		slog.Warn("task rejected by validation", "error", err)
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = entity.StatusPending
	}

	now := s.timestamp(time.Time{})
	task := &entity.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: entity.TrimmedDescription(req.Description),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	slog.Info("task created", "id", created.ID, "status", created.Status)

	s.afterMutation(entity.ActionCreate, created.ID, nil, created)
	return created, nil
}

// ListTasks returns every task, newest first.
func (s *TaskService) ListTasks(ctx context.Context) ([]entity.Task, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID int64) (*entity.Task, error) {
	task, err := s.taskRepo.GetByTaskId(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	if task == nil {
		slog.Warn("task not found", "id", taskID)
		return nil, &entity.NotFoundError{ID: taskID}
	}
	return task, nil
}

// UpdateTask applies a partial update: a blank title keeps the stored title,
// the description is always overwritten and the status only when supplied.
func (s *TaskService) UpdateTask(ctx context.Context, taskID int64, req *entity.UpdateTaskRequest) (*entity.Task, error) {
	if err := req.Validate(); err != nil {
		slog.Warn("task update rejected by validation", "id", taskID, "error", err)
		return nil, err
	}

	current, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, current, req)
}

func (s *TaskService) update(ctx context.Context, current *entity.Task, req *entity.UpdateTaskRequest) (*entity.Task, error) {
	updated := *current

	if title := strings.TrimSpace(req.Title); title != "" {
		updated.Title = title
	}
	updated.Description = entity.TrimmedDescription(req.Description)
	if req.Status != "" {
		updated.Status = req.Status
	}
	updated.UpdatedAt = s.timestamp(current.UpdatedAt)

	saved, err := s.taskRepo.Save(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", current.ID, err)
	}
	if saved == nil {
		// удалена между чтением и записью
		return nil, &entity.NotFoundError{ID: current.ID}
	}
	slog.Info("task updated", "id", saved.ID, "status", saved.Status)

	s.afterMutation(entity.ActionUpdate, saved.ID, current, saved)
	return saved, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, taskID int64) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	deleted, err := s.taskRepo.Delete(ctx, taskID)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}
	if !deleted {
		return &entity.NotFoundError{ID: taskID}
	}
	slog.Info("task deleted", "id", taskID)

	s.afterMutation(entity.ActionDelete, taskID, task, nil)
	return nil
}

// ParseStatus parses a status path token case-insensitively.
func (s *TaskService) ParseStatus(token string) (entity.TaskStatus, error) {
	status, ok := entity.ParseTaskStatus(token)
	if !ok {
		return "", &entity.BusinessRuleError{
			Rule:         entity.RuleStatusInvalid,
			CurrentState: token,
			Message: fmt.Sprintf("Status '%s' is invalid. Accepted values: PENDING, COMPLETED, CANCELLED",
				token),
		}
	}
	return status, nil
}

func (s *TaskService) ListTasksByStatus(ctx context.Context, status entity.TaskStatus) ([]entity.Task, error) {
	tasks, err := s.taskRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list tasks by status %s: %w", status, err)
	}
	return tasks, nil
}

// SearchTasksByTitle returns tasks whose title contains the trimmed query.
// A blank query yields an empty result; a one-character query is rejected.
func (s *TaskService) SearchTasksByTitle(ctx context.Context, query string) ([]entity.Task, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		slog.Warn("search by blank title ignored")
		return []entity.Task{}, nil
	}
	if utf8.RuneCountInString(trimmed) < entity.SearchMinLength {
		return nil, &entity.BusinessRuleError{
			Rule:         entity.RuleSearchTooShort,
			CurrentState: query,
			Message:      "Search term must have at least 2 characters",
		}
	}

	tasks, err := s.taskRepo.ListByTitleContaining(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("search tasks by title: %w", err)
	}
	return tasks, nil
}

// CompleteTask moves a PENDING task to COMPLETED.
func (s *TaskService) CompleteTask(ctx context.Context, taskID int64) (*entity.Task, error) {
	return s.transition(ctx, taskID, entity.StatusCompleted)
}

// CancelTask moves a PENDING task to CANCELLED.
func (s *TaskService) CancelTask(ctx context.Context, taskID int64) (*entity.Task, error) {
	return s.transition(ctx, taskID, entity.StatusCancelled)
}

func (s *TaskService) transition(ctx context.Context, taskID int64, target entity.TaskStatus) (*entity.Task, error) {
	current, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := checkTransition(current, target); err != nil {
		slog.Warn("status transition rejected", "id", taskID, "from", current.Status, "to", target)
		return nil, err
	}

	return s.update(ctx, current, &entity.UpdateTaskRequest{
		Title:       current.Title,
		Description: current.Description,
		Status:      target,
	})
}

// checkTransition guards the terminal states: nothing leaves COMPLETED or CANCELLED.
func checkTransition(task *entity.Task, target entity.TaskStatus) error {
	if !task.Status.IsTerminal() {
		return nil
	}

	var rule, msg string
	switch {
	case task.Status == target && target == entity.StatusCompleted:
		rule, msg = entity.RuleAlreadyCompleted, fmt.Sprintf("Task '%s' is already completed", task.Title)
	case task.Status == target && target == entity.StatusCancelled:
		rule, msg = entity.RuleAlreadyCancelled, fmt.Sprintf("Task '%s' is already cancelled", task.Title)
	case target == entity.StatusCompleted:
		rule, msg = entity.RuleCannotCompleteCancelled, fmt.Sprintf("Cannot complete a cancelled task ('%s')", task.Title)
	default:
		rule, msg = entity.RuleCannotCancelCompleted, fmt.Sprintf("Cannot cancel a completed task ('%s')", task.Title)
	}

	return &entity.BusinessRuleError{
		Rule:         rule,
		CurrentState: string(task.Status),
		Message:      msg,
	}
}

// GetStatistics returns counts per status, served from the cache when possible.
func (s *TaskService) GetStatistics(ctx context.Context) (*entity.Statistics, error) {
	var cached entity.Statistics
	found, err := s.cache.Get(ctx, statisticsCacheKey, &cached)
	if err != nil {
		slog.Warn("statistics cache read failed", "error", err)
	}
	if found {
		return &cached, nil
	}

	gen := s.generation.Load()
	val, err, _ := s.sf.Do(statisticsCacheKey, func() (any, error) {
		return s.computeStatistics(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	stats := val.(*entity.Statistics)

	// a mutation during the count makes the result stale for caching
	if s.generation.Load() != gen {
		return stats, nil
	}
	if err := s.cache.Set(ctx, statisticsCacheKey, stats); err != nil {
		slog.Warn("statistics cache write failed", "error", err)
	}
	if s.generation.Load() != gen {
		s.invalidateStatistics(ctx)
	}
	return stats, nil
}

func (s *TaskService) computeStatistics(ctx context.Context) (*entity.Statistics, error) {
	counts, err := s.taskRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	stats := &entity.Statistics{
		Pending:   counts[entity.StatusPending],
		Completed: counts[entity.StatusCompleted],
		Cancelled: counts[entity.StatusCancelled],
	}
	stats.Total = stats.Pending + stats.Completed + stats.Cancelled
	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

// GetTaskHistory returns the audit trail of a task, newest first. History
// outlives the task itself, so a deleted task with entries is not an error.
func (s *TaskService) GetTaskHistory(ctx context.Context, taskID int64) ([]entity.TaskAudit, error) {
	audits, err := s.auditRepo.GetByTaskId(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get history of task %d: %w", taskID, err)
	}
	if len(audits) > 0 {
		return audits, nil
	}

	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return audits, nil
}

// Wait blocks until in-flight audit publications finish.
func (s *TaskService) Wait() {
	s.inflight.Wait()
}

// timestamp returns the current UTC time at store precision, strictly after prev.
func (s *TaskService) timestamp(prev time.Time) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

func (s *TaskService) afterMutation(action entity.ActionType, taskID int64, oldTask, newTask *entity.Task) {
	s.sf.Forget(statisticsCacheKey)
	s.generation.Add(1)
	s.invalidateStatistics(context.Background())
	s.sendAuditMessage(action, taskID, oldTask, newTask)
}

func (s *TaskService) invalidateStatistics(ctx context.Context) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), statisticsCacheKey); err != nil {
		slog.Warn("statistics cache invalidation failed", "error", err)
	}
}

// Вспомогательный метод для отправки аудита
func (s *TaskService) sendAuditMessage(action entity.ActionType, taskID int64, oldTask, newTask *entity.Task) {
	auditMsg := &entity.AuditMessage{
		Action:    action,
		UserID:    entity.SystemActor,
		EntityID:  taskID,
		Timestamp: s.now().UTC(),
	}

	switch action {
	case entity.ActionCreate:
		auditMsg.NewValues = taskValues(newTask)

	case entity.ActionUpdate:
		auditMsg.OldValues = taskValues(oldTask)
		auditMsg.NewValues = taskValues(newTask)
		auditMsg.Changes = taskChanges(oldTask, newTask)

	case entity.ActionDelete:
		auditMsg.OldValues = taskValues(oldTask)
	}

	// Асинхронная отправка, ошибка не влияет на ответ
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishAuditMessage(ctx, auditMsg); err != nil {
			slog.Error("failed to publish audit message", "error", err, "action", action, "task_id", taskID)
		}
	}()
}

func taskValues(t *entity.Task) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
	}
}

func taskChanges(oldTask, newTask *entity.Task) map[string]any {
	if oldTask == nil || newTask == nil {
		return nil
	}
	changes := make(map[string]any)
	if oldTask.Title != newTask.Title {
		changes["title"] = map[string]any{"old": oldTask.Title, "new": newTask.Title}
	}
	if !equalDescriptions(oldTask.Description, newTask.Description) {
		changes["description"] = map[string]any{"old": oldTask.Description, "new": newTask.Description}
	}
	if oldTask.Status != newTask.Status {
		changes["status"] = map[string]any{"old": oldTask.Status, "new": newTask.Status}
	}
	return changes
}

func equalDescriptions(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
