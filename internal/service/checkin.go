package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// CheckinStatus is the check-in state of a user for the campus day.
type CheckinStatus string

// Check-in states.
const (
	StatusCheckedInToday  CheckinStatus = "checked-in-today"
	StatusStreakContinues CheckinStatus = "streak-continues"
	StatusStreakBroken    CheckinStatus = "streak-broken"
	StatusNoStreak        CheckinStatus = "no-streak"
)

// ClassifyCheckin derives the state from the stored streak facts and today's
// date in the campus timezone.
func ClassifyCheckin(sc state.Scalars, today string) CheckinStatus {
	if sc.LastCheckinDate != "" && sc.LastCheckinDate == today {
		return StatusCheckedInToday
	}
	if sc.LastCheckinDate == "" || sc.Streak <= 0 {
		return StatusNoStreak
	}
	days, err := util.DaysBetween(sc.LastCheckinDate, today)
	if err != nil {
		return StatusNoStreak
	}
	switch {
	case days == 1:
		return StatusStreakContinues
	case days > 1:
		return StatusStreakBroken
	default:
		return StatusNoStreak
	}
}

// DisplayStreak is the streak a user currently holds: a broken run shows 0.
func DisplayStreak(sc state.Scalars, today string) int {
	switch ClassifyCheckin(sc, today) {
	case StatusCheckedInToday, StatusStreakContinues:
		return sc.Streak
	default:
		return 0
	}
}

// CheckinModal is the check-in dialog view model.
type CheckinModal struct {
	Status     CheckinStatus `json:"status"`
	StreakText string        `json:"streak_text"`
	// BrokenStreak is the struck-through old value of a broken run.
	BrokenStreak int    `json:"broken_streak,omitempty"`
	Points       int    `json:"points"`
	CanRestore   bool   `json:"can_restore"`
	RestoreLabel string `json:"restore_label,omitempty"`
	RestoreHint  string `json:"restore_hint,omitempty"`
	CheckinLabel string `json:"checkin_label"`
	Disabled     bool   `json:"disabled"`
}

// BuildCheckinModal renders the dialog from the session scalars.
func BuildCheckinModal(sc state.Scalars, today string, campus config.CampusConfig) CheckinModal {
	status := ClassifyCheckin(sc, today)
	m := CheckinModal{
		Status:       status,
		Points:       sc.Points,
		StreakText:   fmt.Sprintf("%d Days", DisplayStreak(sc, today)),
		CheckinLabel: fmt.Sprintf("Check-in & Earn %d Points", campus.CheckinReward),
	}

	switch status {
	case StatusCheckedInToday:
		m.CheckinLabel = "Checked In Today"
		m.Disabled = true
	case StatusStreakBroken:
		m.BrokenStreak = sc.Streak
		m.CheckinLabel = fmt.Sprintf("Start New Streak (+%d Pts)", campus.CheckinReward)
		if sc.Points >= campus.RestoreCost {
			m.CanRestore = true
			m.RestoreLabel = fmt.Sprintf("Restore %d Day Streak (-%d Pts)", sc.Streak, campus.RestoreCost)
		} else {
			m.RestoreHint = fmt.Sprintf("Need %d Pts to restore %d day streak.", campus.RestoreCost, sc.Streak)
		}
	}
	return m
}

// CheckinService runs the daily check-in and streak restore flows.
type CheckinService struct {
	backend  backend.Client
	nav      *nav.Navigator
	flows    *FlowRunner
	recorder nav.Recorder
	clock    *util.Clock
	campus   config.CampusConfig
	logger   *slog.Logger
}

// NewCheckinService creates the check-in service.
func NewCheckinService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	clock *util.Clock,
	campus config.CampusConfig,
	logger *slog.Logger,
) *CheckinService {
	return &CheckinService{
		backend:  client,
		nav:      navigator,
		flows:    flows,
		recorder: recorder,
		clock:    clock,
		campus:   campus,
		logger:   logger,
	}
}

// Modal returns the check-in dialog, loading the streak facts if needed.
func (s *CheckinService) Modal(ctx context.Context, st *state.AppState) (*CheckinModal, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceDashboard); err != nil {
		return nil, err
	}
	m := BuildCheckinModal(st.Scalars(), s.clock.Today(), s.campus)
	return &m, nil
}

// DailyCheckin records today's check-in. The backend trigger owns the streak,
// so the new count is read back rather than computed here.
func (s *CheckinService) DailyCheckin(ctx context.Context, st *state.AppState) (*CheckinModal, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceDashboard); err != nil {
		return nil, err
	}
	today := s.clock.Today()
	reward := s.campus.CheckinReward
	uid := st.UserID()

	var streak *domain.Streak
	err := s.flows.Run(ctx, st, Flow{
		Name: "checkin",
		Validate: func(context.Context) error {
			if ClassifyCheckin(st.Scalars(), today) == StatusCheckedInToday {
				return domainerrors.ErrAlreadyCheckedIn
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			if _, err := s.backend.InsertCheckin(ctx, uid, today, reward); err != nil {
				return err
			}
			var err error
			streak, err = s.backend.GetStreak(ctx, uid)
			return err
		},
		Apply: func(ctx context.Context) {
			st.AddPoints(reward)
			st.UpdateScalars(func(sc *state.Scalars) {
				sc.Streak = streak.CurrentStreak
				sc.LastCheckinDate = today
			})
			s.recorder.Record(ctx, uid, domain.ActionCheckin, "Daily check-in",
				map[string]any{"streak": streak.CurrentStreak, "points": reward})
			s.afterPointsChange(ctx, st)
		},
		Rerender: []string{nav.PageDashboard, nav.PageEcoPoints},
		Success:  fmt.Sprintf("Check-in success! +%d pts", reward),
		Failure:  "Check-in failed. Please try again.",
	})
	if err != nil {
		return nil, err
	}
	m := BuildCheckinModal(st.Scalars(), today, s.campus)
	return &m, nil
}

// RestoreStreak revives a broken streak for the restore cost. The backend
// procedure debits the cost, records today's check-in and sets the streak to
// old+1 in one transaction, so the cost is charged exactly once.
func (s *CheckinService) RestoreStreak(ctx context.Context, st *state.AppState) (*CheckinModal, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceDashboard); err != nil {
		return nil, err
	}
	today := s.clock.Today()
	cost := s.campus.RestoreCost
	uid := st.UserID()

	var result *domain.RestoreResult
	err := s.flows.Run(ctx, st, Flow{
		Name: "streak_restore",
		Validate: func(context.Context) error {
			sc := st.Scalars()
			if ClassifyCheckin(sc, today) != StatusStreakBroken {
				return domainerrors.Validation("There is no broken streak to restore.")
			}
			if sc.Points < cost {
				return domainerrors.InsufficientPoints(cost, sc.Points)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			var err error
			result, err = s.backend.RestoreStreak(ctx, uid, today, cost)
			return err
		},
		Apply: func(ctx context.Context) {
			st.UpdateScalars(func(sc *state.Scalars) {
				sc.Points = result.CurrentPoints
				sc.Streak = result.Streak
				sc.LastCheckinDate = today
			})
			s.recorder.Record(ctx, uid, domain.ActionStreakRestore,
				fmt.Sprintf("Restored streak to %d days", result.Streak),
				map[string]any{"streak": result.Streak, "cost": result.PointsCharged})
			s.afterPointsChange(ctx, st)
		},
		Rerender: []string{nav.PageDashboard, nav.PageEcoPoints},
		Success:  "Streak restored! Keep it going.",
		Failure:  "Streak restore failed. Please try again.",
	})
	if err != nil {
		return nil, err
	}
	m := BuildCheckinModal(st.Scalars(), today, s.campus)
	return &m, nil
}

// afterPointsChange reconciles the balance with the backend and refreshes the
// ledger-backed pages the session already has.
func (s *CheckinService) afterPointsChange(ctx context.Context, st *state.AppState) {
	if err := refreshUserData(ctx, s.backend, s.nav, st); err != nil {
		s.logger.Warn("refresh user data after check-in", "user_id", st.UserID(), "error", err)
	}
	st.Invalidate(state.ResourceHistory)
	// Point order may have changed.
	if st.IsLoaded(state.ResourceLeaderboard) {
		if err := s.nav.Refresh(ctx, st, state.ResourceLeaderboard); err != nil {
			s.logger.Warn("leaderboard refresh after check-in", "user_id", st.UserID(), "error", err)
		}
	}
}
