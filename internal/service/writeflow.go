package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

// DefaultWriteTimeout bounds the remote part of a write flow.
const DefaultWriteTimeout = 15 * time.Second

// Flow is one guarded write: validate, write remotely, then apply the local
// mutation and re-render. Any failure puts the session scalars back as they
// were before the flow started.
type Flow struct {
	Name string
	// Validate runs before anything is written. A failure here surfaces its
	// own message and leaves state alone.
	Validate func(ctx context.Context) error
	// Write performs the remote calls. It may mutate state optimistically;
	// the snapshot is restored when it fails.
	Write func(ctx context.Context) error
	// Apply runs after a successful write.
	Apply func(ctx context.Context)
	// OnFailure runs after the rollback, e.g. to log a domain-specific activity.
	OnFailure func(ctx context.Context, err error)
	// Rerender lists pages re-rendered from cache after Apply.
	Rerender []string
	// Success is toasted after Apply when set.
	Success string
	// Failure replaces the message of write errors when set.
	Failure string
}

// FlowRunner executes write flows for every feature service.
type FlowRunner struct {
	nav      *nav.Navigator
	recorder nav.Recorder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFlowRunner creates a runner. A zero timeout uses DefaultWriteTimeout.
func NewFlowRunner(navigator *nav.Navigator, recorder nav.Recorder, timeout time.Duration, logger *slog.Logger) *FlowRunner {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &FlowRunner{
		nav:      navigator,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run executes f against st. The returned error carries the message shown to
// the user and keeps the code of the underlying failure.
func (r *FlowRunner) Run(ctx context.Context, st *state.AppState, f Flow) error {
	if f.Validate != nil {
		if err := f.Validate(ctx); err != nil {
			toastError(st, userMessage(err))
			return err
		}
	}

	var err error
	st.Exclusive(func() {
		snap := st.Snapshot()

		writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err = f.Write(writeCtx)
		cancel()
		if err != nil {
			err = r.fail(ctx, st, f, snap, err)
			return
		}
		if f.Apply != nil {
			f.Apply(ctx)
		}
	})
	if err != nil {
		return err
	}
	if len(f.Rerender) > 0 {
		r.nav.Rerender(st, f.Rerender...)
	}
	if f.Success != "" {
		toastSuccess(st, f.Success)
	}
	return nil
}

func (r *FlowRunner) fail(ctx context.Context, st *state.AppState, f Flow, snap state.Snapshot, err error) error {
	st.Restore(snap)

	if errors.Is(err, context.DeadlineExceeded) {
		err = domainerrors.Wrap(err, domainerrors.CodeTimeout, "The request timed out. Please try again.")
	}

	r.logger.Warn("write flow failed",
		"flow", f.Name,
		"user_id", st.UserID(),
		"code", domainerrors.CodeOf(err),
		"error", err,
	)
	r.recorder.Record(ctx, st.UserID(), domain.ActionWriteFailed, f.Name+" failed", map[string]any{
		"flow":  f.Name,
		"code":  string(domainerrors.CodeOf(err)),
		"error": err.Error(),
	})
	if f.OnFailure != nil {
		f.OnFailure(ctx, err)
	}

	if code := domainerrors.CodeOf(err); f.Failure != "" && code != domainerrors.CodeTimeout {
		// An internal code would hide the flow's own message.
		if code == domainerrors.CodeInternal {
			code = domainerrors.CodeUnavailable
		}
		err = domainerrors.Wrap(err, code, f.Failure)
	}
	toastError(st, userMessage(err))
	return err
}

// userMessage is the text a toast shows for err.
func userMessage(err error) string {
	var de *domainerrors.Error
	if errors.As(err, &de) && de.Code != domainerrors.CodeInternal {
		return de.Message
	}
	return "Something went wrong. Please try again."
}
