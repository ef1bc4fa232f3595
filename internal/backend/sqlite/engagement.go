package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

// GetQuizForDate returns the quiz scheduled for a calendar date.
func (s *Store) GetQuizForDate(ctx context.Context, date string) (*domain.Quiz, error) {
	var (
		q       domain.Quiz
		options string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, question, options, correct_option_index, points_reward, available_date
		FROM daily_quizzes WHERE available_date = ?`, date,
	).Scan(&q.ID, &q.Question, &options, &q.CorrectOptionIndex, &q.PointsReward, &q.AvailableDate)
	if err != nil {
		return nil, notFoundOr(err, "no quiz today")
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode quiz options")
	}
	return &q, nil
}

// GetQuizSubmission returns the user's submission, or ErrNotFound.
func (s *Store) GetQuizSubmission(ctx context.Context, quizID, userID string) (*domain.QuizSubmission, error) {
	var (
		sub     domain.QuizSubmission
		correct int
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, user_id, is_correct, created_at
		FROM quiz_submissions WHERE quiz_id = ? AND user_id = ?`, quizID, userID,
	).Scan(&sub.ID, &sub.QuizID, &sub.UserID, &correct, &created)
	if err != nil {
		return nil, notFoundOr(err, "no submission")
	}
	sub.IsCorrect = correct == 1
	if sub.CreatedAt, err = parseTime(created); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse submission time")
	}
	return &sub, nil
}

// InsertQuizSubmission records an answer. A second answer returns ErrAlreadyAttempted.
func (s *Store) InsertQuizSubmission(ctx context.Context, sub domain.QuizSubmission) (*domain.QuizSubmission, error) {
	subID, err := id.Generate(id.PrefixSubmission)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate submission id")
	}
	sub.ID = subID
	sub.CreatedAt = s.now()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO quiz_submissions (id, quiz_id, user_id, is_correct, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.QuizID, sub.UserID, boolInt(sub.IsCorrect), formatTime(sub.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, domainerrors.ErrAlreadyAttempted
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "insert quiz submission")
	}
	return &sub, nil
}

// ListActiveChallenges returns challenges open for submission.
func (s *Store) ListActiveChallenges(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, points_reward, type, frequency
		FROM challenges WHERE is_active = 1
		ORDER BY points_reward DESC, title`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list challenges")
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		var c domain.Challenge
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.PointsReward, &c.Type, &c.Frequency); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan challenge")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListSubmissionsSince returns the user's challenge submissions created at or after since.
func (s *Store) ListSubmissionsSince(ctx context.Context, userID string, since time.Time) ([]domain.ChallengeSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, user_id, submission_url, status, created_at
		FROM challenge_submissions
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC`, userID, formatTime(since))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list submissions")
	}
	defer rows.Close()

	var out []domain.ChallengeSubmission
	for rows.Next() {
		sub, err := scanChallengeSubmission(rows)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan submission")
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func scanChallengeSubmission(sc scanner) (*domain.ChallengeSubmission, error) {
	var (
		sub     domain.ChallengeSubmission
		created string
	)
	if err := sc.Scan(&sub.ID, &sub.ChallengeID, &sub.UserID, &sub.SubmissionURL, &sub.Status, &created); err != nil {
		return nil, err
	}
	var err error
	sub.CreatedAt, err = parseTime(created)
	return &sub, err
}

// InsertChallengeSubmission stores a photo proof as pending.
func (s *Store) InsertChallengeSubmission(ctx context.Context, sub domain.ChallengeSubmission) (*domain.ChallengeSubmission, error) {
	subID, err := id.Generate(id.PrefixSubmission)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate submission id")
	}
	sub.ID = subID
	sub.CreatedAt = s.now()
	if sub.Status == "" {
		sub.Status = domain.SubmissionPending
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO challenge_submissions (id, challenge_id, user_id, submission_url, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ChallengeID, sub.UserID, sub.SubmissionURL, sub.Status, formatTime(sub.CreatedAt),
	); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "insert challenge submission")
	}

	s.publish(domain.ChangeInsert, "challenge_submissions", nil, submissionRow(&sub))
	return &sub, nil
}

// ReviewSubmission sets a submission's status; approval credits the challenge reward.
func (s *Store) ReviewSubmission(ctx context.Context, submissionID, status string) error {
	var sub *domain.ChallengeSubmission
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, challenge_id, user_id, submission_url, status, created_at
			FROM challenge_submissions WHERE id = ?`, submissionID)
		got, err := scanChallengeSubmission(row)
		if err != nil {
			return notFoundOr(err, "submission not found")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE challenge_submissions SET status = ? WHERE id = ?`, status, submissionID,
		); err != nil {
			return err
		}

		approved := status == domain.SubmissionApproved || status == domain.SubmissionVerified
		wasApproved := got.Status == domain.SubmissionApproved || got.Status == domain.SubmissionVerified
		if approved && !wasApproved {
			var title string
			var reward int
			if err := tx.QueryRowContext(ctx,
				`SELECT title, points_reward FROM challenges WHERE id = ?`, got.ChallengeID,
			).Scan(&title, &reward); err != nil {
				return err
			}
			if _, err := insertLedgerTx(ctx, tx, domain.LedgerEntry{
				UserID:      got.UserID,
				SourceType:  domain.SourceChallenge,
				SourceID:    got.ChallengeID,
				Description: "Challenge: " + title,
				PointsDelta: reward,
				CreatedAt:   s.now(),
			}); err != nil {
				return err
			}
		}
		got.Status = status
		sub = got
		return nil
	})
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "review submission")
	}

	s.publish(domain.ChangeUpdate, "challenge_submissions", nil, submissionRow(sub))
	s.publishUser(ctx, sub.UserID)
	return nil
}

func submissionRow(sub *domain.ChallengeSubmission) map[string]any {
	return map[string]any{
		"id":           sub.ID,
		"challenge_id": sub.ChallengeID,
		"user_id":      sub.UserID,
		"status":       sub.Status,
	}
}

// ListEvents returns events with attendance rows and attendee names embedded.
func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, location, poster_url, start_at, points_reward
		FROM events ORDER BY start_at`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list events")
	}
	defer rows.Close()

	var (
		events []domain.Event
		index  = make(map[string]int)
	)
	for rows.Next() {
		var (
			e      domain.Event
			poster sql.NullString
			start  string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &poster, &start, &e.PointsReward); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan event")
		}
		e.PosterURL = poster.String
		if e.StartAt, err = parseTime(start); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse event time")
		}
		e.Attendance = []domain.Attendance{}
		index[e.ID] = len(events)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list events")
	}

	att, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.event_id, a.user_id, a.status, u.full_name, u.profile_img_url
		FROM event_attendance a JOIN users u ON u.id = a.user_id
		ORDER BY a.rowid`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list attendance")
	}
	defer att.Close()

	for att.Next() {
		var (
			a   domain.Attendance
			img sql.NullString
		)
		if err := att.Scan(&a.ID, &a.EventID, &a.UserID, &a.Status, &a.FullName, &img); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan attendance")
		}
		a.ProfileImgURL = img.String
		if i, ok := index[a.EventID]; ok {
			events[i].Attendance = append(events[i].Attendance, a)
		}
	}
	return events, att.Err()
}

// InsertAttendance registers a user for an event.
func (s *Store) InsertAttendance(ctx context.Context, eventID, userID, status string) (*domain.Attendance, error) {
	attID, err := id.Generate(id.PrefixAttendance)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate attendance id")
	}
	a := domain.Attendance{ID: attID, EventID: eventID, UserID: userID, Status: status}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO event_attendance (id, event_id, user_id, status) VALUES (?, ?, ?, ?)`,
		a.ID, a.EventID, a.UserID, a.Status,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, domainerrors.Conflict("already registered for this event")
		}
		if isForeignKeyViolation(err) {
			return nil, domainerrors.NotFound("event not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "insert attendance")
	}

	s.publish(domain.ChangeInsert, "event_attendance", nil, map[string]any{
		"id": a.ID, "event_id": a.EventID, "user_id": a.UserID, "status": a.Status,
	})
	return &a, nil
}

// SetAttendanceStatus marks a registration confirmed or absent. Confirmation
// credits the event reward and counts toward impact.
func (s *Store) SetAttendanceStatus(ctx context.Context, eventID, userID, status string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prev string
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM event_attendance WHERE event_id = ? AND user_id = ?`, eventID, userID,
		).Scan(&prev); err != nil {
			return notFoundOr(err, "attendance not found")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE event_attendance SET status = ? WHERE event_id = ? AND user_id = ?`,
			status, eventID, userID,
		); err != nil {
			return err
		}
		if status != domain.AttendanceConfirmed || prev == domain.AttendanceConfirmed {
			return nil
		}

		var (
			title  string
			reward int
		)
		if err := tx.QueryRowContext(ctx,
			`SELECT title, points_reward FROM events WHERE id = ?`, eventID,
		).Scan(&title, &reward); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_impact (user_id, events_attended) VALUES (?, 1)
			ON CONFLICT(user_id) DO UPDATE SET events_attended = events_attended + 1`, userID,
		); err != nil {
			return err
		}
		if reward > 0 {
			_, err := insertLedgerTx(ctx, tx, domain.LedgerEntry{
				UserID:      userID,
				SourceType:  domain.SourceEvent,
				SourceID:    eventID,
				Description: "Event: " + title,
				PointsDelta: reward,
				CreatedAt:   s.now(),
			})
			return err
		}
		return nil
	})
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "set attendance")
	}

	s.publish(domain.ChangeUpdate, "event_attendance", nil, map[string]any{
		"event_id": eventID, "user_id": userID, "status": status,
	})
	s.publishUser(ctx, userID)
	return nil
}
