package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmsbot/session-server-go/internal/model"
)

func strPtr(s string) *string                              { return &s }
func statusPtr(s model.SessionStatus) *model.SessionStatus { return &s }
func timePtr(t time.Time) *time.Time                       { return &t }

func TestMemoryRepositoryUpsertMerges(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	created, err := repo.Upsert(ctx, model.UpsertSessionParams{
		Identity:    "123@s.whatsapp.net",
		PhoneNumber: strPtr("123456789"),
		Flags:       &model.FlagSet{AntiCall: true, ViewOnceBypass: true, AntiDelete: true},
		Status:      statusPtr(model.SessionStatusConnected),
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789", created.PhoneNumber)
	assert.Equal(t, model.SessionStatusConnected, created.Status)

	// A partial update must not lose any existing field.
	now := time.Now().UTC()
	updated, err := repo.Upsert(ctx, model.UpsertSessionParams{
		Identity:   "123@s.whatsapp.net",
		LastOpenAt: timePtr(now),
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789", updated.PhoneNumber)
	assert.Equal(t, model.SessionStatusConnected, updated.Status)
	assert.True(t, updated.Flags.AntiCall)
	require.NotNil(t, updated.LastOpenAt)
	assert.Equal(t, now, *updated.LastOpenAt)
}

func TestMemoryRepositoryGetAbsent(t *testing.T) {
	repo := NewMemorySessionRepository()

	s, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestMemoryRepositoryRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	_, err := repo.Upsert(ctx, model.UpsertSessionParams{Identity: "a"})
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, "a"))
	require.NoError(t, repo.Remove(ctx, "a"))

	sessions, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestMemoryRepositoryListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	base := time.Now().UTC()
	for i, id := range []string{"c", "a", "b"} {
		_, err := repo.Upsert(ctx, model.UpsertSessionParams{
			Identity:  id,
			CreatedAt: timePtr(base.Add(time.Duration(i) * time.Second)),
		})
		require.NoError(t, err)
	}

	sessions, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "c", sessions[0].Identity)
	assert.Equal(t, "b", sessions[2].Identity)
}

func TestMemoryRepositoryConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := fmt.Sprintf("id-%d", i%5)
			_, err := repo.Upsert(ctx, model.UpsertSessionParams{
				Identity:    identity,
				PhoneNumber: strPtr(identity),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sessions, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 5)
	for _, s := range sessions {
		assert.Equal(t, s.Identity, s.PhoneNumber)
	}
}

func TestMemoryRepositoryDeleteStalePending(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	old := time.Now().UTC().Add(-2 * time.Hour)
	_, err := repo.Upsert(ctx, model.UpsertSessionParams{Identity: "stale", CreatedAt: timePtr(old)})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, model.UpsertSessionParams{
		Identity:  "live",
		CreatedAt: timePtr(old),
		Status:    statusPtr(model.SessionStatusConnected),
	})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, model.UpsertSessionParams{Identity: "fresh"})
	require.NoError(t, err)

	count, err := repo.DeleteStalePending(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	s, err := repo.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = repo.Get(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
