package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmsbot/session-server-go/internal/repository"
)

// CleanupJob periodically discards pairing attempts that never completed.
// Pending records older than the TTL are deleted; connected sessions are
// never touched.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	pendingTTL  time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(sessionRepo repository.SessionRepository, pendingTTL, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		pendingTTL:  pendingTTL,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("pendingTTL", j.pendingTTL).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.pendingTTL)
	count, err := j.sessionRepo.DeleteStalePending(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup stale pending sessions")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up stale pending sessions")
	}
}
