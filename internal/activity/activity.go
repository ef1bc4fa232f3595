// Package activity records analytics rows without blocking the caller.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
)

const writeTimeout = 5 * time.Second

// Sink persists activity rows.
type Sink interface {
	LogActivity(ctx context.Context, entry domain.Activity) error
}

// Recorder writes activity in the background; failures are logged, never returned.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Record queues one row. The write outlives ctx cancellation.
func (r *Recorder) Record(ctx context.Context, userID, action, description string, metadata map[string]any) {
	entry := domain.Activity{
		UserID:      userID,
		ActionType:  action,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	ctx = context.WithoutCancel(ctx)

	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := r.sink.LogActivity(ctx, entry); err != nil {
			r.logger.Warn("activity log failed",
				"user_id", userID,
				"action", action,
				"error", err,
			)
		}
	})
}

// Wait blocks until queued writes finish.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Shutdown waits for queued writes; it satisfies do.Shutdowner.
func (r *Recorder) Shutdown() {
	r.Wait()
}
