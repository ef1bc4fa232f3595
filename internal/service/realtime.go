package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/sse"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

const (
	onceRealtime  = "realtime"
	resyncTimeout = 15 * time.Second
	tableUsers    = "users"
	tableOrders   = "orders"
	tableBookings = "bookings"
	tableMatches  = "matches"
	columnID      = "id"
	columnUserID  = "user_id"
	columnSportID = "sport_id"
)

// RealtimeService keeps a session in step with backend change events.
// Delivery is at-least-once, so every handler is idempotent.
type RealtimeService struct {
	backend backend.Client
	nav     *nav.Navigator
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewRealtimeService creates the resync service.
func NewRealtimeService(client backend.Client, navigator *nav.Navigator, logger *slog.Logger) *RealtimeService {
	return &RealtimeService{backend: client, nav: navigator, logger: logger}
}

type subscription struct {
	table, column, value string
	handle               func(ctx context.Context, st *state.AppState, ev domain.ChangeEvent)
}

// Start subscribes the session to its own rows. Calling it again for the
// same session does nothing. Subscriptions close with the session.
func (s *RealtimeService) Start(ctx context.Context, st *state.AppState) error {
	if !st.FireOnce(onceRealtime) {
		return nil
	}
	p, err := currentProfile(st)
	if err != nil {
		return err
	}

	subs := []subscription{
		{tableUsers, columnID, p.ID, s.onProfile},
		{tableOrders, columnUserID, p.ID, s.onOrder},
		{tableBookings, columnUserID, p.ID, s.onBooking},
	}
	if p.IsVolunteer && p.VolunteerSportID != "" {
		subs = append(subs, subscription{tableMatches, columnSportID, p.VolunteerSportID, s.onMatch})
	}

	base := context.WithoutCancel(ctx)
	for _, sub := range subs {
		live, err := s.backend.Subscribe(ctx, sub.table, sub.column, sub.value)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.table, err)
		}
		st.AddCloser(live.Close)

		s.wg.Go(func() {
			for ev := range live.C {
				evCtx, cancel := context.WithTimeout(base, resyncTimeout)
				sub.handle(evCtx, st, ev)
				cancel()
			}
		})
	}

	s.logger.Debug("realtime subscriptions started", "user_id", p.ID, "count", len(subs))
	return nil
}

// Wait blocks until every subscription loop has exited.
func (s *RealtimeService) Wait() {
	s.wg.Wait()
}

// Shutdown satisfies do.Shutdowner; sessions must be closed first.
func (s *RealtimeService) Shutdown() {
	s.Wait()
}

func (s *RealtimeService) onProfile(_ context.Context, st *state.AppState, ev domain.ChangeEvent) {
	var changed bool
	st.Exclusive(func() { changed = ApplyProfileChange(st, ev) })
	if !changed {
		return
	}
	s.logger.Debug("profile resynced", "user_id", st.UserID())
	s.nav.Rerender(st, userPages...)
}

// ApplyProfileChange merges the changed columns of a users row into st and
// reports whether anything changed. Applying the same event twice is a no-op
// the second time.
func ApplyProfileChange(st *state.AppState, ev domain.ChangeEvent) bool {
	if ev.Event != domain.ChangeUpdate || ev.New == nil {
		return false
	}
	row := ev.New
	return st.UpdateProfile(func(p *domain.Profile) {
		if id, ok := row[columnID].(string); ok && id != p.ID {
			return
		}
		if v, ok := asInt(row["current_points"]); ok {
			p.CurrentPoints = v
		}
		if v, ok := asInt(row["lifetime_points"]); ok {
			p.LifetimePoints = v
		}
		if v, ok := row["profile_img_url"].(string); ok {
			p.ProfileImgURL = v
		}
		if v, ok := row["tick_type"].(string); ok {
			p.TickType = v
		}
		if v, ok := row["full_name"].(string); ok && v != "" {
			p.FullName = v
		}
		if v, ok := row["course"].(string); ok && v != "" {
			p.Course = v
		}
		if v, ok := row["is_volunteer"].(bool); ok {
			p.IsVolunteer = v
		}
	})
}

// onOrder reloads my rewards and the balance; an admin may have approved or
// refunded the order.
func (s *RealtimeService) onOrder(ctx context.Context, st *state.AppState, _ domain.ChangeEvent) {
	s.resync(ctx, st, state.ResourceOrders, state.ResourceHistory)
}

func (s *RealtimeService) onBooking(ctx context.Context, st *state.AppState, _ domain.ChangeEvent) {
	s.resync(ctx, st, state.ResourceScreenings, state.ResourceHistory)
}

func (s *RealtimeService) onMatch(ctx context.Context, st *state.AppState, ev domain.ChangeEvent) {
	st.Notify(string(sse.EventMatch), ev.New)
	s.resync(ctx, st, state.ResourceSports)
}

// resync refetches the resources this session has loaded and refreshes the balance.
func (s *RealtimeService) resync(ctx context.Context, st *state.AppState, resources ...state.Resource) {
	for _, r := range resources {
		if !st.IsLoaded(r) {
			continue
		}
		if err := s.nav.Refresh(ctx, st, r); err != nil {
			s.logger.Warn("realtime refresh failed", "resource", r, "user_id", st.UserID(), "error", err)
		}
	}
	if err := refreshUserData(ctx, s.backend, s.nav, st); err != nil {
		s.logger.Warn("realtime balance refresh failed", "user_id", st.UserID(), "error", err)
	}
}

// asInt reads a numeric column that may have come through JSON.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
