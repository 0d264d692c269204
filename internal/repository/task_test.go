package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"github.com/St1cky1/tarefa-service/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatePgError(t *testing.T) {
	dup := translatePgError(&pgconn.PgError{Code: "23505", ColumnName: "title"})
	var conflict *entity.DataConflictError
	require.ErrorAs(t, dup, &conflict)
	assert.Equal(t, entity.ConflictDuplicate, conflict.Kind)
	assert.Equal(t, "title", conflict.Field)

	check := translatePgError(&pgconn.PgError{Code: "23514"})
	require.ErrorAs(t, check, &conflict)
	assert.Equal(t, entity.ConflictConstraint, conflict.Kind)

	other := translatePgError(&pgconn.PgError{Code: "42P01"})
	assert.NotErrorIs(t, other, entity.ErrDataConflict)

	plain := errors.New("boom")
	assert.Same(t, plain, translatePgError(plain))
}

// newTestPool connects to TEST_DATABASE_URL and resets the schema.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	source, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	require.NoError(t, err)
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	require.NoError(t, m.Up())
	m.Close()

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestTaskRepositoryPostgres(t *testing.T) {
	pool := newTestPool(t)
	repo := NewTaskRepository(pool)
	auditRepo := NewTaskAuditRepository(pool)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)

	first, err := repo.Create(ctx, newTask("Write report", entity.StatusPending, base))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newTask("Review Report", entity.StatusCompleted, base.Add(time.Second)))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	assert.True(t, base.Equal(first.CreatedAt))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	matches, err := repo.ListByTitleContaining(ctx, "report")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, first.ID, matches[0].ID)

	first.Status = entity.StatusCancelled
	first.UpdatedAt = base.Add(time.Minute)
	saved, err := repo.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, saved.Status)
	assert.True(t, base.Equal(saved.CreatedAt))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entity.StatusCancelled])
	assert.Equal(t, int64(1), counts[entity.StatusCompleted])

	bad := newTask("Bad status", entity.TaskStatus("DONE"), base)
	_, err = repo.Create(ctx, bad)
	assert.ErrorIs(t, err, entity.ErrDataConflict)

	ok, err := repo.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	missing, err := repo.GetByTaskId(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	changes := `{"status":{"old":"PENDING","new":"CANCELLED"}}`
	require.NoError(t, auditRepo.Create(ctx, &entity.TaskAudit{
		Action:     entity.ActionUpdate,
		EntityType: entity.AuditEntityTask,
		EntityID:   first.ID,
		Changes:    &changes,
		ChangedAt:  base,
	}))
	history, err := auditRepo.GetByTaskId(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.JSONEq(t, changes, *history[0].Changes)
}
