package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmsbot/session-server-go/internal/model"
	"github.com/dmsbot/session-server-go/internal/repository"
)

func seedSession(t *testing.T, repo repository.SessionRepository, identity string, status model.SessionStatus, age time.Duration) {
	t.Helper()
	createdAt := time.Now().UTC().Add(-age)
	_, err := repo.Upsert(context.Background(), model.UpsertSessionParams{
		Identity:  identity,
		Status:    &status,
		CreatedAt: &createdAt,
	})
	require.NoError(t, err)
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(repository.NewMemorySessionRepository(), time.Hour, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
		assert.Equal(t, time.Hour, job.pendingTTL)
	})

	t.Run("removes only stale pending sessions", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		seedSession(t, repo, "pending:111111", model.SessionStatusPending, 2*time.Hour)
		seedSession(t, repo, "pending:222222", model.SessionStatusPending, time.Minute)
		seedSession(t, repo, "333333@s.whatsapp.net", model.SessionStatusConnected, 2*time.Hour)

		job := NewCleanupJob(repo, time.Hour, time.Hour)
		job.cleanup()

		sessions, err := repo.List(context.Background())
		require.NoError(t, err)
		require.Len(t, sessions, 2)

		identities := []string{sessions[0].Identity, sessions[1].Identity}
		assert.NotContains(t, identities, "pending:111111")
		assert.Contains(t, identities, "pending:222222")
		assert.Contains(t, identities, "333333@s.whatsapp.net")
	})

	t.Run("runs cleanup on start and stops cleanly", func(t *testing.T) {
		repo := repository.NewMemorySessionRepository()
		seedSession(t, repo, "pending:111111", model.SessionStatusPending, 2*time.Hour)

		job := NewCleanupJob(repo, time.Hour, 100*time.Millisecond)
		job.Start()
		defer job.Stop()

		require.Eventually(t, func() bool {
			record, err := repo.Get(context.Background(), "pending:111111")
			return err == nil && record == nil
		}, time.Second, 5*time.Millisecond)
	})
}
