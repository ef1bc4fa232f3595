package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

// InsertCheckin records a check-in; the schema trigger maintains the streak and
// credits the reward.
func (s *Store) InsertCheckin(ctx context.Context, userID, date string, points int) (*domain.Checkin, error) {
	chkID, err := id.Generate(id.PrefixCheckin)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate checkin id")
	}

	c := domain.Checkin{
		ID:            chkID,
		UserID:        userID,
		CheckinDate:   date,
		PointsAwarded: points,
		CreatedAt:     s.now(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_checkins (id, user_id, checkin_date, points_awarded, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.CheckinDate, c.PointsAwarded, formatTime(c.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, domainerrors.ErrAlreadyCheckedIn
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "insert checkin")
	}

	s.publishUser(ctx, userID)
	return &c, nil
}

// HasCheckin reports whether a check-in row exists for the date.
func (s *Store) HasCheckin(ctx context.Context, userID, date string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_checkins WHERE user_id = ? AND checkin_date = ?`,
		userID, date,
	).Scan(&n)
	if err != nil {
		return false, domainerrors.Wrap(err, domainerrors.CodeInternal, "check checkin")
	}
	return n > 0, nil
}

// GetStreak returns the streak row, or a zero streak when the user never checked in.
func (s *Store) GetStreak(ctx context.Context, userID string) (*domain.Streak, error) {
	st := domain.Streak{UserID: userID}
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT current_streak, last_checkin_date FROM user_streaks WHERE user_id = ?`, userID,
	).Scan(&st.CurrentStreak, &last)
	if err != nil && !domainerrors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get streak")
	}
	st.LastCheckinDate = last.String
	return &st, nil
}

// RestoreStreak charges cost, records today's check-in and sets the streak to
// old+1, all in one transaction.
func (s *Store) RestoreStreak(ctx context.Context, userID, date string, cost int) (*domain.RestoreResult, error) {
	if cost <= 0 {
		return nil, domainerrors.Validationf("restore cost must be positive, got %d", cost)
	}

	chkID, err := id.Generate(id.PrefixCheckin)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate checkin id")
	}

	var result domain.RestoreResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			old  int
			last sql.NullString
		)
		err := tx.QueryRowContext(ctx,
			`SELECT current_streak, last_checkin_date FROM user_streaks WHERE user_id = ?`, userID,
		).Scan(&old, &last)
		if err != nil {
			if domainerrors.Is(err, sql.ErrNoRows) {
				return domainerrors.Validation("no streak to restore")
			}
			return err
		}
		if old <= 0 {
			return domainerrors.Validation("no streak to restore")
		}
		if last.String == date {
			return domainerrors.ErrAlreadyCheckedIn
		}

		var balance int
		if err := tx.QueryRowContext(ctx,
			`SELECT current_points FROM users WHERE id = ?`, userID,
		).Scan(&balance); err != nil {
			return notFoundOr(err, "profile not found")
		}
		if balance < cost {
			return domainerrors.InsufficientPoints(cost, balance)
		}

		now := s.now()
		if _, err := insertLedgerTx(ctx, tx, domain.LedgerEntry{
			UserID:      userID,
			SourceType:  domain.SourceStreakRestore,
			Description: "Streak Restore",
			PointsDelta: -cost,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_checkins (id, user_id, checkin_date, points_awarded, created_at)
			VALUES (?, ?, ?, 0, ?)`,
			chkID, userID, date, formatTime(now),
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyCheckedIn
			}
			return err
		}

		// The trigger saw a gap and reset to 1; the restore keeps the run alive.
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_streaks SET current_streak = ?, last_checkin_date = ? WHERE user_id = ?`,
			old+1, date, userID,
		); err != nil {
			return err
		}

		result = domain.RestoreResult{
			Streak:        old + 1,
			PointsCharged: cost,
			CurrentPoints: balance - cost,
		}
		return nil
	})
	if err != nil {
		var de *domainerrors.Error
		if domainerrors.As(err, &de) {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "restore streak")
	}

	s.publishUser(ctx, userID)
	return &result, nil
}

// InsertLedger appends a ledger row; the schema trigger moves the balance.
func (s *Store) InsertLedger(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	var out *domain.LedgerEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := insertLedgerTx(ctx, tx, entry)
		out = e
		return err
	})
	if err != nil {
		if isBalanceViolation(err) {
			p, perr := s.GetProfile(ctx, entry.UserID)
			if perr != nil {
				return nil, perr
			}
			return nil, domainerrors.InsufficientPoints(-entry.PointsDelta, p.CurrentPoints)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "insert ledger")
	}

	s.publishUser(ctx, entry.UserID)
	return out, nil
}

func insertLedgerTx(ctx context.Context, tx *sql.Tx, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.ID == "" {
		ledgerID, err := id.Generate(id.PrefixLedger)
		if err != nil {
			return nil, err
		}
		entry.ID = ledgerID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO points_ledger (id, user_id, source_type, source_id, description, points_delta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.SourceType, nullString(entry.SourceID),
		entry.Description, entry.PointsDelta, formatTime(entry.CreatedAt),
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListLedger returns the newest ledger rows first.
func (s *Store) ListLedger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, source_type, source_id, description, points_delta, created_at
		FROM points_ledger WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list ledger")
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e        domain.LedgerEntry
			sourceID sql.NullString
			created  string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SourceType, &sourceID, &e.Description, &e.PointsDelta, &created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan ledger")
		}
		e.SourceID = sourceID.String
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse ledger time")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetImpact returns the impact aggregate, zero when none is recorded.
func (s *Store) GetImpact(ctx context.Context, userID string) (*domain.Impact, error) {
	var im domain.Impact
	err := s.db.QueryRowContext(ctx,
		`SELECT total_plastic_kg, co2_saved_kg, events_attended FROM user_impact WHERE user_id = ?`, userID,
	).Scan(&im.TotalPlasticKg, &im.CO2SavedKg, &im.EventsAttended)
	if err != nil && !domainerrors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get impact")
	}
	return &im, nil
}

// RedeemCoupon is the redeem_coupon procedure. Unknown, expired, exhausted or
// already-used codes all report not found.
func (s *Store) RedeemCoupon(ctx context.Context, userID, code string) (int, error) {
	code = strings.TrimSpace(code)
	invalid := domainerrors.NotFound("invalid or expired code")

	var awarded int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			canonical string
			points    int
			expiresAt sql.NullString
			maxUses   int
			timesUsed int
		)
		err := tx.QueryRowContext(ctx,
			`SELECT code, points, expires_at, max_uses, times_used FROM coupons WHERE code = ?`, code,
		).Scan(&canonical, &points, &expiresAt, &maxUses, &timesUsed)
		if err != nil {
			if domainerrors.Is(err, sql.ErrNoRows) {
				return invalid
			}
			return err
		}

		now := s.now()
		if expiresAt.Valid {
			exp, err := parseTime(expiresAt.String)
			if err != nil {
				return err
			}
			if !now.Before(exp) {
				return invalid
			}
		}
		if maxUses > 0 && timesUsed >= maxUses {
			return invalid
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO coupon_redemptions (code, user_id, redeemed_at) VALUES (?, ?, ?)`,
			canonical, userID, formatTime(now),
		); err != nil {
			if isUniqueViolation(err) {
				return invalid
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE coupons SET times_used = times_used + 1 WHERE code = ?`, canonical,
		); err != nil {
			return err
		}
		if _, err := insertLedgerTx(ctx, tx, domain.LedgerEntry{
			UserID:      userID,
			SourceType:  domain.SourceCoupon,
			SourceID:    canonical,
			Description: "Coupon: " + strings.ToUpper(canonical),
			PointsDelta: points,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		awarded = points
		return nil
	})
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return 0, err
		}
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "redeem coupon")
	}

	s.publishUser(ctx, userID)
	return awarded, nil
}

func ledgerPlastic(userID string, kg float64, points int, at time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		UserID:      userID,
		SourceType:  domain.SourcePlastic,
		Description: fmt.Sprintf("Plastic Recycled: %.1f kg", kg),
		PointsDelta: points,
		CreatedAt:   at,
	}
}
