package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(bool) error {
	a.acked = true
	return nil
}

func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

// mockAuditRepository - мок для ITaskAuditRepository
type mockAuditRepository struct {
	created []*entity.TaskAudit
	err     error
}

func (m *mockAuditRepository) Create(_ context.Context, audit *entity.TaskAudit) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, audit)
	return nil
}

func (m *mockAuditRepository) GetByTaskId(context.Context, int64) ([]entity.TaskAudit, error) {
	return nil, nil
}

func auditBody(t *testing.T, msg *entity.AuditMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestHandleStoresEntry(t *testing.T) {
	repo := &mockAuditRepository{}
	w := NewAuditWorker("amqp://unused", "audit", repo)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ack := &fakeAck{}
	w.handle(context.Background(), auditBody(t, &entity.AuditMessage{
		UserID:    entity.SystemActor,
		Action:    entity.ActionUpdate,
		EntityID:  7,
		OldValues: map[string]any{"status": "PENDING"},
		NewValues: map[string]any{"status": "COMPLETED"},
		Changes:   map[string]any{"status": map[string]any{"old": "PENDING", "new": "COMPLETED"}},
		Timestamp: at,
	}), ack)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	require.Len(t, repo.created, 1)

	stored := repo.created[0]
	assert.Equal(t, entity.ActionUpdate, stored.Action)
	assert.Equal(t, entity.AuditEntityTask, stored.EntityType)
	assert.Equal(t, int64(7), stored.EntityID)
	assert.True(t, at.Equal(stored.ChangedAt))
	require.NotNil(t, stored.OldValues)
	assert.JSONEq(t, `{"status":"PENDING"}`, *stored.OldValues)
	assert.JSONEq(t, `{"status":{"old":"PENDING","new":"COMPLETED"}}`, *stored.Changes)
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	repo := &mockAuditRepository{}
	w := NewAuditWorker("amqp://unused", "audit", repo)

	ack := &fakeAck{}
	w.handle(context.Background(), []byte("{not json"), ack)

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, repo.created)
}

func TestHandleRequeuesOnStoreFailure(t *testing.T) {
	repo := &mockAuditRepository{err: errors.New("database is locked")}
	w := NewAuditWorker("amqp://unused", "audit", repo)

	ack := &fakeAck{}
	w.handle(context.Background(), auditBody(t, &entity.AuditMessage{
		Action:   entity.ActionCreate,
		EntityID: 1,
	}), ack)

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
	assert.False(t, ack.acked)
}

func TestConvertToTaskAuditOptionalValues(t *testing.T) {
	audit, err := convertToTaskAudit(&entity.AuditMessage{
		Action:   entity.ActionDelete,
		EntityID: 3,
	})
	require.NoError(t, err)

	assert.Nil(t, audit.OldValues)
	assert.Nil(t, audit.NewValues)
	assert.Nil(t, audit.Changes)
	assert.False(t, audit.ChangedAt.IsZero())
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewAuditWorker("amqp://127.0.0.1:1/", "audit", &mockAuditRepository{}).Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
