package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

const screeningSelect = `
	SELECT sc.id, sc.show_time, sc.venue, sc.price_bronze, sc.seats_total,
		(SELECT COUNT(*) FROM bookings b WHERE b.screening_id = sc.id),
		mv.id, mv.title, mv.genre, mv.language, mv.poster_url
	FROM screenings sc JOIN movies mv ON mv.id = sc.movie_id`

func scanScreening(sc scanner) (*domain.Screening, error) {
	var (
		s      domain.Screening
		show   string
		poster sql.NullString
	)
	if err := sc.Scan(&s.ID, &show, &s.Venue, &s.PriceBronze, &s.SeatsTotal, &s.SeatsBooked,
		&s.Movie.ID, &s.Movie.Title, &s.Movie.Genre, &s.Movie.Language, &poster); err != nil {
		return nil, err
	}
	s.Movie.PosterURL = poster.String
	var err error
	s.ShowTime, err = parseTime(show)
	return &s, err
}

// ListScreenings returns screenings at or after from, soonest first.
func (s *Store) ListScreenings(ctx context.Context, from time.Time) ([]domain.Screening, error) {
	rows, err := s.db.QueryContext(ctx, screeningSelect+`
		WHERE sc.show_time >= ? ORDER BY sc.show_time`, formatTime(from))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list screenings")
	}
	defer rows.Close()

	var out []domain.Screening
	for rows.Next() {
		sc, err := scanScreening(rows)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan screening")
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// ListBookings returns the user's bookings with screening details, newest first.
func (s *Store) ListBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, screening_id, seat_number, status, ticket_code, created_at
		FROM bookings WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list bookings")
	}

	var out []domain.Booking
	for rows.Next() {
		var (
			b       domain.Booking
			created string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.ScreeningID, &b.SeatNumber, &b.Status, &b.TicketCode, &created); err != nil {
			rows.Close()
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan booking")
		}
		if b.CreatedAt, err = parseTime(created); err != nil {
			rows.Close()
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse booking time")
		}
		out = append(out, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list bookings")
	}

	for i := range out {
		sc, err := scanScreening(s.db.QueryRowContext(ctx, screeningSelect+` WHERE sc.id = ?`, out[i].ScreeningID))
		if err != nil {
			return nil, notFoundOr(err, "screening not found")
		}
		out[i].Screening = *sc
	}
	return out, nil
}

// CreateBooking takes the next free seat and charges the ticket price.
func (s *Store) CreateBooking(ctx context.Context, userID, screeningID string) (*domain.Booking, error) {
	bookingID, err := id.Generate(id.PrefixBooking)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate booking id")
	}
	ticket, err := id.Ticket()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate ticket")
	}

	var b domain.Booking
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		sc, err := scanScreening(tx.QueryRowContext(ctx, screeningSelect+` WHERE sc.id = ?`, screeningID))
		if err != nil {
			return notFoundOr(err, "screening not found")
		}
		now := s.now()
		if !sc.ShowTime.After(now) {
			return domainerrors.Conflict("screening has already started")
		}
		if sc.SeatsBooked >= sc.SeatsTotal {
			return domainerrors.Conflict("screening is sold out")
		}

		var balance int
		if err := tx.QueryRowContext(ctx, `SELECT current_points FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
			return notFoundOr(err, "profile not found")
		}
		if balance < sc.PriceBronze {
			return domainerrors.InsufficientPoints(sc.PriceBronze, balance)
		}

		var seat int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seat_number), 0) + 1 FROM bookings WHERE screening_id = ?`, screeningID,
		).Scan(&seat); err != nil {
			return err
		}

		b = domain.Booking{
			ID:          bookingID,
			UserID:      userID,
			ScreeningID: screeningID,
			SeatNumber:  seat,
			Status:      domain.BookingConfirmed,
			TicketCode:  ticket,
			CreatedAt:   now,
			Screening:   *sc,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (id, user_id, screening_id, seat_number, status, ticket_code, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.UserID, b.ScreeningID, b.SeatNumber, b.Status, b.TicketCode, formatTime(now),
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.Conflict("already booked for this screening")
			}
			return err
		}
		if sc.PriceBronze > 0 {
			if _, err := insertLedgerTx(ctx, tx, domain.LedgerEntry{
				UserID:      userID,
				SourceType:  domain.SourceBooking,
				SourceID:    b.ID,
				Description: "Movie: " + sc.Movie.Title,
				PointsDelta: -sc.PriceBronze,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		b.Screening.SeatsBooked++
		return nil
	})
	if err != nil {
		var de *domainerrors.Error
		if domainerrors.As(err, &de) {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create booking")
	}

	s.publish(domain.ChangeInsert, "bookings", nil, map[string]any{
		"id": b.ID, "user_id": userID, "screening_id": screeningID, "status": b.Status,
	})
	s.publishUser(ctx, userID)
	return &b, nil
}
