package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ecocampus/ecocampus-server/internal/airquality"
	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// AirQuality looks up the reading for a coordinate.
type AirQuality interface {
	Lookup(ctx context.Context, lat, lon float64) (*airquality.Card, error)
}

type dashboardData struct {
	// Date is the campus day the facts were read on.
	Date        string
	Impact      domain.Impact
	IsVolunteer bool
}

// FeaturedEvent is the next upcoming event card.
type FeaturedEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartsAt    string `json:"starts_at"`
	PosterURL   string `json:"poster_url,omitempty"`
}

// DashboardView is the home page view model.
type DashboardView struct {
	Name           string             `json:"name"`
	Initials       string             `json:"initials"`
	AvatarURL      string             `json:"avatar_url"`
	TickType       string             `json:"tick_type,omitempty"`
	Points         int                `json:"points"`
	LifetimePoints int                `json:"lifetime_points"`
	Level          util.LevelProgress `json:"level"`
	Streak         int                `json:"streak"`
	CheckinStatus  CheckinStatus      `json:"checkin_status"`
	CheckinLabel   string             `json:"checkin_label"`
	Impact         ImpactView         `json:"impact"`
	Volunteer      bool               `json:"volunteer"`
	Featured       *FeaturedEvent     `json:"featured,omitempty"`
	Quiz           *QuizView          `json:"quiz,omitempty"`
}

// ImpactView formats the impact counters.
type ImpactView struct {
	Recycled       string `json:"recycled"`
	CO2Saved       string `json:"co2_saved"`
	EventsAttended int    `json:"events_attended"`
}

// DashboardService loads and renders the home page.
type DashboardService struct {
	backend backend.Client
	clock   *util.Clock
	campus  config.CampusConfig
	levels  []config.Level
	air     AirQuality
	logger  *slog.Logger
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(
	client backend.Client,
	clock *util.Clock,
	campus config.CampusConfig,
	levels []config.Level,
	air AirQuality,
	logger *slog.Logger,
) *DashboardService {
	return &DashboardService{
		backend: client,
		clock:   clock,
		campus:  campus,
		levels:  levels,
		air:     air,
		logger:  logger,
	}
}

// Loaders drops the dashboard facts once the campus day has moved on.
func (s *DashboardService) Loaders(n *nav.Navigator) error {
	return n.ExpireWhen(state.ResourceDashboard, func(st *state.AppState) bool {
		data, ok := state.Get[dashboardData](st, state.ResourceDashboard)
		return ok && data.Date != s.clock.Today()
	})
}

// Pages returns the dashboard page.
func (s *DashboardService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageDashboard,
		Resource: state.ResourceDashboard,
		Load:     s.load,
		Render:   s.render,
	}}
}

// load fetches today's check-in, the streak, impact and the volunteer flag in
// parallel.
func (s *DashboardService) load(ctx context.Context, st *state.AppState) (any, error) {
	uid := st.UserID()
	today := s.clock.Today()

	var (
		checkedIn bool
		streak    *domain.Streak
		impact    *domain.Impact
		profile   *domain.Profile
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		checkedIn, err = s.backend.HasCheckin(ctx, uid, today)
		return err
	})
	g.Go(func() (err error) {
		streak, err = s.backend.GetStreak(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		impact, err = s.backend.GetImpact(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		profile, err = s.backend.GetProfile(ctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st.UpdateScalars(func(sc *state.Scalars) {
		sc.Streak = streak.CurrentStreak
		sc.LastCheckinDate = streak.LastCheckinDate
		if checkedIn {
			sc.LastCheckinDate = today
		}
	})
	st.UpdateProfile(func(p *domain.Profile) {
		p.IsVolunteer = profile.IsVolunteer
		p.VolunteerSportID = profile.VolunteerSportID
	})

	return dashboardData{Date: today, Impact: *impact, IsVolunteer: profile.IsVolunteer}, nil
}

func (s *DashboardService) render(st *state.AppState) (any, error) {
	p, err := currentProfile(st)
	if err != nil {
		return nil, err
	}
	data, _ := state.Get[dashboardData](st, state.ResourceDashboard)
	sc := st.Scalars()
	today := s.clock.Today()
	modal := BuildCheckinModal(sc, today, s.campus)

	view := DashboardView{
		Name:           p.FullName,
		Initials:       util.Initials(p.FullName),
		AvatarURL:      avatarOrPlaceholder(p, lowData(st)),
		TickType:       p.TickType,
		Points:         sc.Points,
		LifetimePoints: sc.LifetimePoints,
		Level:          util.LevelFor(sc.LifetimePoints, s.levels),
		Streak:         DisplayStreak(sc, today),
		CheckinStatus:  modal.Status,
		CheckinLabel:   modal.CheckinLabel,
		Impact: ImpactView{
			Recycled:       fmt.Sprintf("%.1f kg", data.Impact.TotalPlasticKg),
			CO2Saved:       fmt.Sprintf("%.1f kg", data.Impact.CO2SavedKg),
			EventsAttended: data.Impact.EventsAttended,
		},
		Volunteer: data.IsVolunteer || p.IsVolunteer,
		Featured:  s.featured(st),
	}
	if q, ok := state.Get[quizData](st, state.ResourceQuiz); ok && st.IsLoaded(state.ResourceQuiz) && q.Date == today {
		qv := BuildQuizView(st)
		view.Quiz = &qv
	}
	return view, nil
}

// featured picks the first event that has not started, from the events cache.
func (s *DashboardService) featured(st *state.AppState) *FeaturedEvent {
	events, ok := state.Get[[]domain.Event](st, state.ResourceEvents)
	if !ok {
		return nil
	}
	now := s.clock.Now()
	for _, e := range events {
		if !e.StartAt.After(now) {
			continue
		}
		desc := e.Description
		if desc == "" {
			desc = "Join us!"
		}
		return &FeaturedEvent{
			ID:          e.ID,
			Title:       e.Title,
			Description: desc,
			Location:    e.Location,
			StartsAt:    displayTime(e.StartAt, s.clock.Location()),
			PosterURL:   media.OptimizeURL(e.PosterURL, 600, lowData(st)),
		}
	}
	return nil
}

// AirQuality returns the AQI card. Missing coordinates mean the browser
// denied geolocation.
func (s *DashboardService) AirQuality(ctx context.Context, lat, lon *float64) airquality.Card {
	if lat == nil || lon == nil {
		return airquality.LocationDenied()
	}
	card, err := s.air.Lookup(ctx, *lat, *lon)
	if err != nil {
		s.logger.Warn("air quality lookup failed", "error", err)
		return airquality.Unavailable()
	}
	return *card
}

func avatarOrPlaceholder(p domain.Profile, low bool) string {
	if p.ProfileImgURL != "" {
		return media.OptimizeURL(p.ProfileImgURL, 160, low)
	}
	return media.InitialsAvatar(80, util.Initials(p.FullName), p.ID, low)
}
