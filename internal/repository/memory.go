package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmsbot/session-server-go/internal/model"
)

// memorySessionRepo is a mutex-guarded in-memory registry with the same merge
// semantics as the Postgres implementation. It backs tests and the DB-less
// demo mode.
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepo{sessions: make(map[string]model.Session)}
}

func (r *memorySessionRepo) List(ctx context.Context) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Identity < out[j].Identity
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memorySessionRepo) Get(ctx context.Context, identity string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[identity]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memorySessionRepo) Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[params.Identity]
	if !ok {
		s = model.Session{
			Identity:  params.Identity,
			Status:    model.SessionStatusPending,
			CreatedAt: time.Now().UTC(),
		}
	}

	if params.PhoneNumber != nil {
		s.PhoneNumber = *params.PhoneNumber
	}
	if params.Flags != nil {
		s.Flags = *params.Flags
	}
	if params.Status != nil {
		s.Status = *params.Status
	}
	if params.CreatedAt != nil {
		s.CreatedAt = *params.CreatedAt
	}
	if params.LastOpenAt != nil {
		s.LastOpenAt = params.LastOpenAt
	}

	r.sessions[params.Identity] = s
	return &s, nil
}

func (r *memorySessionRepo) Remove(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, identity)
	return nil
}

func (r *memorySessionRepo) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, s := range r.sessions {
		if s.Status == model.SessionStatusPending && s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}
