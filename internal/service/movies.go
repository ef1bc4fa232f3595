package service

import (
	"cmp"
	"context"
	"fmt"
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

type cinemaData struct {
	Screenings []domain.Screening
	Bookings   []domain.Booking
}

// ScreeningCard is one upcoming show.
type ScreeningCard struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Genre     string `json:"genre,omitempty"`
	Language  string `json:"language,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
	Venue     string `json:"venue"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Price     int    `json:"price"`
	SeatsLeft int    `json:"seats_left"`
	Booked    bool   `json:"booked"`
	// ButtonLabel is "Book", "Booked", "Sold Out" or "Need N more".
	ButtonLabel string `json:"button_label"`
	Disabled    bool   `json:"disabled"`
}

// TicketCard is one of the user's bookings.
type TicketCard struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Venue   string `json:"venue"`
	When    string `json:"when"`
	Seat    int    `json:"seat"`
	Status  string `json:"status"`
	QRValue string `json:"qr_value"`
}

// MoviesView is the movies page.
type MoviesView struct {
	Screenings []ScreeningCard `json:"screenings"`
	Tickets    []TicketCard    `json:"tickets"`
}

// MovieService lists screenings and books seats with points.
type MovieService struct {
	backend  backend.Client
	nav      *nav.Navigator
	flows    *FlowRunner
	recorder nav.Recorder
	clock    *util.Clock
	logger   *slog.Logger
}

// NewMovieService creates the movie service.
func NewMovieService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	clock *util.Clock,
	logger *slog.Logger,
) *MovieService {
	return &MovieService{
		backend:  client,
		nav:      navigator,
		flows:    flows,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Pages returns the movies page.
func (s *MovieService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageMovies,
		Resource: state.ResourceScreenings,
		Load:     s.load,
		Render:   s.render,
	}}
}

func (s *MovieService) load(ctx context.Context, st *state.AppState) (any, error) {
	screenings, err := s.backend.ListScreenings(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	bookings, err := s.backend.ListBookings(ctx, st.UserID())
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(bookings, func(a, b domain.Booking) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return cinemaData{Screenings: screenings, Bookings: bookings}, nil
}

func (s *MovieService) render(st *state.AppState) (any, error) {
	data, _ := state.Get[cinemaData](st, state.ResourceScreenings)
	points := st.Scalars().Points
	low := lowData(st)
	loc := s.clock.Location()

	view := MoviesView{
		Screenings: make([]ScreeningCard, len(data.Screenings)),
		Tickets:    make([]TicketCard, len(data.Bookings)),
	}
	for i, sc := range data.Screenings {
		view.Screenings[i] = BuildScreeningCard(sc, data.Bookings, points)
		view.Screenings[i].PosterURL = media.OptimizeURL(sc.Movie.PosterURL, 400, low)
		view.Screenings[i].Date = sc.ShowTime.In(loc).Format("Mon, Jan 2")
		view.Screenings[i].Time = sc.ShowTime.In(loc).Format("3:04 PM")
	}
	for i, b := range data.Bookings {
		view.Tickets[i] = TicketCard{
			ID:      b.ID,
			Title:   b.Screening.Movie.Title,
			Venue:   b.Screening.Venue,
			When:    displayTime(b.Screening.ShowTime, loc),
			Seat:    b.SeatNumber,
			Status:  cmp.Or(b.Status, domain.BookingConfirmed),
			QRValue: b.TicketCode,
		}
	}
	return view, nil
}

// BuildScreeningCard derives the booking button for a screening.
func BuildScreeningCard(sc domain.Screening, bookings []domain.Booking, points int) ScreeningCard {
	card := ScreeningCard{
		ID:          sc.ID,
		Title:       sc.Movie.Title,
		Genre:       sc.Movie.Genre,
		Language:    sc.Movie.Language,
		Venue:       sc.Venue,
		Price:       sc.PriceBronze,
		SeatsLeft:   max(0, sc.SeatsTotal-sc.SeatsBooked),
		ButtonLabel: "Book",
	}
	card.Booked = slices.ContainsFunc(bookings, func(b domain.Booking) bool {
		return b.ScreeningID == sc.ID && b.Status != domain.BookingCancelled
	})
	switch {
	case card.Booked:
		card.ButtonLabel = "Booked"
		card.Disabled = true
	case card.SeatsLeft == 0:
		card.ButtonLabel = "Sold Out"
		card.Disabled = true
	case points < sc.PriceBronze:
		card.ButtonLabel = fmt.Sprintf("Need %d more", sc.PriceBronze-points)
		card.Disabled = true
	}
	return card
}

// Book reserves a seat and pays for it with points.
func (s *MovieService) Book(ctx context.Context, st *state.AppState, screeningID string) (*TicketCard, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceScreenings); err != nil {
		return nil, err
	}
	data, _ := state.Get[cinemaData](st, state.ResourceScreenings)
	uid := st.UserID()

	var booking *domain.Booking
	err := s.flows.Run(ctx, st, Flow{
		Name: "movie_booking",
		Validate: func(context.Context) error {
			i := slices.IndexFunc(data.Screenings, func(sc domain.Screening) bool { return sc.ID == screeningID })
			if i < 0 {
				return domainerrors.NotFound("Screening not found.")
			}
			sc := data.Screenings[i]
			card := BuildScreeningCard(sc, data.Bookings, st.Scalars().Points)
			switch {
			case card.Booked:
				return domainerrors.Conflict("You already have a ticket for this show.")
			case card.SeatsLeft == 0:
				return domainerrors.Conflict("This show is sold out.")
			case st.Scalars().Points < sc.PriceBronze:
				return domainerrors.InsufficientPoints(sc.PriceBronze, st.Scalars().Points)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			var err error
			booking, err = s.backend.CreateBooking(ctx, uid, screeningID)
			return err
		},
		Apply: func(ctx context.Context) {
			st.AddPoints(-booking.Screening.PriceBronze)
			st.Invalidate(state.ResourceHistory)
			s.recorder.Record(ctx, uid, domain.ActionMovieBooking, "Booked "+booking.Screening.Movie.Title,
				map[string]any{"screening_id": screeningID, "booking_id": booking.ID, "points": booking.Screening.PriceBronze})
			if err := s.nav.Refresh(ctx, st, state.ResourceScreenings); err != nil {
				s.logger.Warn("screenings refresh after booking", "user_id", uid, "error", err)
			}
		},
		Rerender: userPages,
		Success:  "Ticket booked! Show the QR code at the venue.",
		Failure:  "Booking failed.",
	})
	if err != nil {
		return nil, err
	}
	return &TicketCard{
		ID:      booking.ID,
		Title:   booking.Screening.Movie.Title,
		Venue:   booking.Screening.Venue,
		When:    displayTime(booking.Screening.ShowTime, s.clock.Location()),
		Seat:    booking.SeatNumber,
		Status:  booking.Status,
		QRValue: booking.TicketCode,
	}, nil
}
