package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidconnect/notification-service/internal/db"
	"github.com/bidconnect/notification-service/internal/domain"
	"github.com/bidconnect/notification-service/internal/repository"
)

func TestPgRepository_Lifecycle(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set (integration test)")
	}
	require.NoError(t, db.Migrate("file://../../migrations", dbURL))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()

	repo := repository.NewPgNotificationRepository(pool)
	eventID := uuid.NewString()
	userID := "it-" + uuid.NewString()

	sent := &domain.Notification{
		EventID: &eventID, UserID: userID, Email: "a@x.com",
		EventType: domain.EventSubmissionReceived, Subject: "T", Content: "M",
	}
	failed := &domain.Notification{
		UserID: userID, Email: "b@x.com",
		EventType: domain.EventSubmissionReceived, Subject: "T",
	}
	require.NoError(t, repo.Create(ctx, sent))
	require.NoError(t, repo.Create(ctx, failed))
	assert.NotZero(t, sent.ID)
	assert.False(t, sent.CreatedAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, sent.ID, time.Now().UTC()))
	require.NoError(t, repo.MarkFailed(ctx, failed.ID))
	// Terminal records stay as they are.
	require.NoError(t, repo.MarkSent(ctx, failed.ID, time.Now().UTC()))

	got, err := repo.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	require.NotNil(t, got.EventID)
	assert.Equal(t, eventID, *got.EventID)

	got, err = repo.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Nil(t, got.SentAt)
	assert.Nil(t, got.EventID)

	st := domain.StatusFailed
	list, err := repo.List(ctx, domain.ListFilter{UserID: &userID, Status: &st})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, failed.ID, list[0].ID)

	_, err = repo.GetByID(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts[domain.StatusSent], int64(1))
}
