package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"github.com/St1cky1/tarefa-service/internal/infrastructure/client"
	"github.com/St1cky1/tarefa-service/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	consumerTag    = "audit_worker"
	reconnectDelay = 5 * time.Second
)

var errDeliveriesClosed = errors.New("deliveries channel closed")

// AuditWorker consumes audit messages and persists them to the audit table.
type AuditWorker struct {
	url       string
	queueName string
	auditRepo repository.ITaskAuditRepository
}

func NewAuditWorker(url, queueName string, auditRepo repository.ITaskAuditRepository) *AuditWorker {
	return &AuditWorker{
		url:       url,
		queueName: queueName,
		auditRepo: auditRepo,
	}
}

// Start blocks until ctx is cancelled, reconnecting after broker failures.
func (w *AuditWorker) Start(ctx context.Context) {
	slog.Info("audit worker starting", "queue", w.queueName)

	for {
		err := w.run(ctx)
		if ctx.Err() != nil {
			slog.Info("audit worker stopped")
			return
		}
		slog.Error("audit worker failed, reconnecting", "error", err, "delay", reconnectDelay)

		select {
		case <-ctx.Done():
			slog.Info("audit worker stopped")
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *AuditWorker) run(ctx context.Context) error {
	// Отдельное соединение для consumer'а
	conn, err := amqp.Dial(w.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer channel.Close()

	if _, err := client.DeclareAuditQueue(channel, w.queueName); err != nil {
		return err
	}

	msgs, err := channel.Consume(
		w.queueName, // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	slog.Info("audit worker consuming", "queue", w.queueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			w.processMessage(ctx, msg)
		}
	}
}

// acknowledger is the subset of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *AuditWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	w.handle(ctx, msg.Body, msg)
}

func (w *AuditWorker) handle(ctx context.Context, body []byte, ack acknowledger) {
	var auditMsg entity.AuditMessage
	if err := json.Unmarshal(body, &auditMsg); err != nil {
		slog.Error("audit message is not valid JSON, dropping", "error", err)
		ack.Nack(false, false) // не возвращаем в очередь
		return
	}

	taskAudit, err := convertToTaskAudit(&auditMsg)
	if err != nil {
		slog.Error("audit message conversion failed", "error", err)
		ack.Nack(false, false)
		return
	}

	if err := w.auditRepo.Create(ctx, taskAudit); err != nil {
		slog.Error("failed to store audit entry, requeueing", "error", err, "task_id", taskAudit.EntityID)
		ack.Nack(false, true)
		return
	}

	ack.Ack(false)
	slog.Debug("audit entry stored", "action", taskAudit.Action, "task_id", taskAudit.EntityID)
}

func convertToTaskAudit(msg *entity.AuditMessage) (*entity.TaskAudit, error) {
	oldValues, err := marshalOptional(msg.OldValues)
	if err != nil {
		return nil, fmt.Errorf("old values: %w", err)
	}
	newValues, err := marshalOptional(msg.NewValues)
	if err != nil {
		return nil, fmt.Errorf("new values: %w", err)
	}
	changes, err := marshalOptional(msg.Changes)
	if err != nil {
		return nil, fmt.Errorf("changes: %w", err)
	}

	changedAt := msg.Timestamp
	if changedAt.IsZero() {
		changedAt = time.Now().UTC()
	}

	return &entity.TaskAudit{
		UserID:     msg.UserID,
		Action:     msg.Action,
		EntityType: entity.AuditEntityTask,
		EntityID:   msg.EntityID,
		OldValues:  oldValues,
		NewValues:  newValues,
		Changes:    changes,
		ChangedAt:  changedAt,
	}, nil
}

func marshalOptional(values map[string]any) (*string, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
