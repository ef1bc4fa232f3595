package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/sse"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

func TestBuildScreeningCard(t *testing.T) {
	sc := domain.Screening{
		ID:          "scr-1",
		Movie:       domain.Movie{Title: "Kiss the Ground"},
		PriceBronze: 40,
		SeatsTotal:  10,
		SeatsBooked: 4,
	}

	tests := []struct {
		name     string
		sc       domain.Screening
		bookings []domain.Booking
		points   int
		label    string
		disabled bool
	}{
		{"bookable", sc, nil, 40, "Book", false},
		{"short on points", sc, nil, 15, "Need 25 more", true},
		{"already booked", sc, []domain.Booking{{ScreeningID: "scr-1", Status: domain.BookingConfirmed}}, 100, "Booked", true},
		{"cancelled booking can rebook", sc, []domain.Booking{{ScreeningID: "scr-1", Status: domain.BookingCancelled}}, 100, "Book", false},
		{"sold out", domain.Screening{ID: "scr-2", PriceBronze: 40, SeatsTotal: 3, SeatsBooked: 5}, nil, 100, "Sold Out", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := BuildScreeningCard(tt.sc, tt.bookings, tt.points)
			assert.Equal(t, tt.label, card.ButtonLabel)
			assert.Equal(t, tt.disabled, card.Disabled)
			assert.GreaterOrEqual(t, card.SeatsLeft, 0)
		})
	}
}

func seedMovies(t *testing.T, e *testEnv) {
	t.Helper()
	e.importCatalog(t, sqlite.Catalog{Movies: []sqlite.CatalogMovie{{
		ID: "mov-1", Title: "Kiss the Ground", Genre: "Documentary", Language: "English",
		Screenings: []sqlite.CatalogScreening{
			{ID: "scr-1", StartsIn: 3 * time.Hour, Venue: "Auditorium", Price: 30, Seats: 2},
			{ID: "scr-2", StartsIn: 5 * time.Hour, Venue: "Auditorium", Price: 500, Seats: 40},
		},
	}}})
}

func TestBook(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedMovies(t, e)
	token, p := e.signUp(t, "BMS")
	e.credit(t, p.ID, 100)
	st := e.login(t, token)

	view, err := e.nav.ShowPage(ctx, st, nav.PageMovies, true)
	require.NoError(t, err)
	mv, ok := view.Data.(MoviesView)
	require.True(t, ok)
	require.Len(t, mv.Screenings, 2)
	assert.Equal(t, "Book", mv.Screenings[0].ButtonLabel)
	assert.Equal(t, "Need 400 more", mv.Screenings[1].ButtonLabel)

	ticket, err := e.movies.Book(ctx, st, "scr-1")
	require.NoError(t, err)
	assert.Equal(t, "Kiss the Ground", ticket.Title)
	assert.NotEmpty(t, ticket.QRValue)
	assert.Equal(t, 70, st.Scalars().Points)
	assert.False(t, st.IsLoaded(state.ResourceHistory))
	assert.Contains(t, e.pusher.toasts(sse.ToastSuccess), "Ticket booked! Show the QR code at the venue.")

	saved, err := e.store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, saved.CurrentPoints)

	_, err = e.movies.Book(ctx, st, "scr-1")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	assert.Contains(t, e.pusher.toasts(sse.ToastError), "You already have a ticket for this show.")

	_, err = e.movies.Book(ctx, st, "scr-2")
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientPoints)
	assert.Equal(t, 70, st.Scalars().Points)

	view, err = e.nav.ShowPage(ctx, st, nav.PageMovies, true)
	require.NoError(t, err)
	mv = view.Data.(MoviesView)
	require.Len(t, mv.Tickets, 1)
	assert.Equal(t, ticket.QRValue, mv.Tickets[0].QRValue)
	assert.Equal(t, "Booked", mv.Screenings[0].ButtonLabel)
}

func TestBook_SoldOut(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedMovies(t, e)

	for range 2 {
		token, p := e.signUp(t, "BMS")
		e.credit(t, p.ID, 50)
		_, err := e.movies.Book(ctx, e.login(t, token), "scr-1")
		require.NoError(t, err)
	}

	token, p := e.signUp(t, "BMS")
	e.credit(t, p.ID, 50)
	_, err := e.movies.Book(ctx, e.login(t, token), "scr-1")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
}
