package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// My attendance at an event.
const (
	EventUpcoming = "upcoming"
	EventGoing    = "going"
	EventAttended = "attended"
	EventMissed   = "missed"
)

// Attendee is a user shown in an event's participant list.
type Attendee struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// EventCard is one event with its attendance summary.
type EventCard struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Location      string     `json:"location"`
	PosterURL     string     `json:"poster_url"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Points        int        `json:"points"`
	Attendees     []Attendee `json:"attendees"`
	AttendeeCount int        `json:"attendee_count"`
	MyStatus      string     `json:"my_status"`
}

// EventService lists events and takes RSVPs.
type EventService struct {
	backend  backend.Client
	nav      *nav.Navigator
	flows    *FlowRunner
	recorder nav.Recorder
	clock    *util.Clock
	logger   *slog.Logger
}

// NewEventService creates the event service.
func NewEventService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	clock *util.Clock,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		backend:  client,
		nav:      navigator,
		flows:    flows,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Pages returns the events page.
func (s *EventService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageEvents,
		Resource: state.ResourceEvents,
		Load:     s.load,
		Render:   s.render,
	}}
}

func (s *EventService) load(ctx context.Context, _ *state.AppState) (any, error) {
	events, err := s.backend.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(events, func(a, b domain.Event) int { return a.StartAt.Compare(b.StartAt) })
	return events, nil
}

func (s *EventService) render(st *state.AppState) (any, error) {
	events, _ := state.Get[[]domain.Event](st, state.ResourceEvents)
	uid := st.UserID()
	low := lowData(st)
	loc := s.clock.Location()

	cards := make([]EventCard, len(events))
	for i, e := range events {
		cards[i] = EventCard{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Location:    e.Location,
			PosterURL:   media.OptimizeURL(e.PosterURL, 600, low),
			Date:        e.StartAt.In(loc).Format("Jan 2"),
			Time:        e.StartAt.In(loc).Format("3:04 PM"),
			Points:      e.PointsReward,
			Attendees:   Attendees(e),
			MyStatus:    MyEventStatus(e, uid),
		}
		cards[i].AttendeeCount = len(cards[i].Attendees)
	}
	return cards, nil
}

// Attendees lists users registered for or confirmed at e.
func Attendees(e domain.Event) []Attendee {
	out := []Attendee{}
	for _, a := range e.Attendance {
		if a.Status != domain.AttendanceRegistered && a.Status != domain.AttendanceConfirmed {
			continue
		}
		out = append(out, Attendee{ID: a.UserID, Name: a.FullName, AvatarURL: media.Avatar(a.ProfileImgURL)})
	}
	return out
}

// MyEventStatus maps the user's attendance row to the card state.
func MyEventStatus(e domain.Event, userID string) string {
	i := slices.IndexFunc(e.Attendance, func(a domain.Attendance) bool { return a.UserID == userID })
	if i < 0 {
		return EventUpcoming
	}
	switch e.Attendance[i].Status {
	case domain.AttendanceConfirmed:
		return EventAttended
	case domain.AttendanceAbsent:
		return EventMissed
	default:
		return EventGoing
	}
}

// RSVP registers the user for an event. A second RSVP is a conflict.
func (s *EventService) RSVP(ctx context.Context, st *state.AppState, eventID string) error {
	if err := s.nav.Preload(ctx, st, state.ResourceEvents); err != nil {
		return err
	}
	events, _ := state.Get[[]domain.Event](st, state.ResourceEvents)
	uid := st.UserID()

	return s.flows.Run(ctx, st, Flow{
		Name: "event_rsvp",
		Validate: func(context.Context) error {
			i := slices.IndexFunc(events, func(e domain.Event) bool { return e.ID == eventID })
			if i < 0 {
				return domainerrors.NotFound("Event not found.")
			}
			if MyEventStatus(events[i], uid) != EventUpcoming {
				return domainerrors.Conflict("You are already registered for this event.")
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			_, err := s.backend.InsertAttendance(ctx, eventID, uid, domain.AttendanceRegistered)
			return err
		},
		Apply: func(ctx context.Context) {
			s.recorder.Record(ctx, uid, domain.ActionEventRSVP, "Registered for event",
				map[string]any{"event_id": eventID})
			if err := s.nav.Refresh(ctx, st, state.ResourceEvents); err != nil {
				s.logger.Warn("events refresh after rsvp", "user_id", uid, "error", err)
			}
		},
		Rerender: []string{nav.PageEvents, nav.PageDashboard},
		Success:  "You have successfully registered!",
		Failure:  "Failed to RSVP.",
	})
}
