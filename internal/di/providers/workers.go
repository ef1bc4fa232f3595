package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/ecocampus/ecocampus-server/internal/logger"
)

const sessionCleanupInterval = time.Hour

// SessionCleanupJob periodically deletes expired and revoked backend sessions.
type SessionCleanupJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &SessionCleanupJob{cancel: cancel, done: make(chan struct{})}

	cleanup := func(initial bool) {
		count, err := storeHandle.DeleteExpiredSessions(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("Session cleanup failed", "error", err, "initial", initial)
		case count > 0:
			log.Info("Session cleanup completed", "deleted", count, "initial", initial)
		}
	}

	go func() {
		defer close(job.done)
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		cleanup(true)
		for {
			select {
			case <-ticker.C:
				cleanup(false)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session cleanup job started")

	return job, nil
}
