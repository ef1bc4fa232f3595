package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

// profileColumns must match the scan order in scanProfile.
const profileColumns = `id, auth_user_id, full_name, student_id, course, email,
	mobile, gender, current_points, lifetime_points, profile_img_url, tick_type,
	is_volunteer, volunteer_sport_id`

func scanProfile(sc scanner) (*domain.Profile, error) {
	var (
		p                                          domain.Profile
		mobile, gender, img, tick, volunteerSport sql.NullString
		volunteer                                  int
	)
	if err := sc.Scan(
		&p.ID, &p.AuthUserID, &p.FullName, &p.StudentID, &p.Course, &p.Email,
		&mobile, &gender, &p.CurrentPoints, &p.LifetimePoints, &img, &tick,
		&volunteer, &volunteerSport,
	); err != nil {
		return nil, err
	}
	p.Mobile = mobile.String
	p.Gender = gender.String
	p.ProfileImgURL = img.String
	p.TickType = tick.String
	p.IsVolunteer = volunteer == 1
	p.VolunteerSportID = volunteerSport.String
	return &p, nil
}

// GetProfileByAuthID returns the users row owned by an auth identity.
func (s *Store) GetProfileByAuthID(ctx context.Context, authUserID string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE auth_user_id = ?`, authUserID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFoundOr(err, "profile not found")
	}
	return p, nil
}

// GetProfile returns a users row by id.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = ?`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFoundOr(err, "profile not found")
	}
	return p, nil
}

// UpdateProfile applies the non-nil patch fields and returns the fresh row.
func (s *Store) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			profile_img_url = COALESCE(?, profile_img_url),
			mobile          = COALESCE(?, mobile),
			tick_type       = COALESCE(?, tick_type)
		WHERE id = ?`,
		optional(patch.ProfileImgURL), optional(patch.Mobile), optional(patch.TickType), userID,
	)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "update profile")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domainerrors.NotFound("profile not found")
	}

	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publish(domain.ChangeUpdate, "users", nil, profileRow(p))
	return p, nil
}

// LogActivity appends an analytics row.
func (s *Store) LogActivity(ctx context.Context, entry domain.Activity) error {
	if entry.ID == "" {
		actID, err := id.Generate(id.PrefixActivity)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "generate activity id")
		}
		entry.ID = actID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeValidation, "encode activity metadata")
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_activity_log (id, user_id, action_type, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, nullString(entry.UserID), entry.ActionType, entry.Description, metadata,
		formatTime(entry.CreatedAt),
	); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "log activity")
	}
	return nil
}

// ListActivity returns a user's analytics rows, newest first.
func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action_type, description, metadata, created_at
		FROM user_activity_log WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list activity")
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var (
			a         domain.Activity
			uid, meta sql.NullString
			created   string
		)
		if err := rows.Scan(&a.ID, &uid, &a.ActionType, &a.Description, &meta, &created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan activity")
		}
		a.UserID = uid.String
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
				return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode activity metadata")
			}
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse activity time")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetVolunteer flags a user as a match volunteer for one sport.
func (s *Store) SetVolunteer(ctx context.Context, userID, sportID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_volunteer = 1, volunteer_sport_id = ? WHERE id = ?`,
		nullString(sportID), userID,
	); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "set volunteer")
	}
	s.publishUser(ctx, userID)
	return nil
}

func optional(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
