package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ecocampus/ecocampus-server/internal/auth"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

// SignUp creates the auth identity and its users row, then opens a session.
func (s *Store) SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.AuthSession, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	authID, err := id.Generate(id.PrefixAuthUser)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate auth id")
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate user id")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	now := formatTime(s.now())

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO auth_users (id, email, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			authID, email, hash, now, now,
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.AlreadyExists("email already registered")
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, auth_user_id, full_name, student_id, course, email, mobile, gender, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, authID, strings.TrimSpace(req.FullName), strings.TrimSpace(req.StudentID),
			strings.TrimSpace(req.Course), email, nullString(req.Mobile), nullString(req.Gender), now,
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.AlreadyExists("student id already registered")
			}
			return err
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO user_impact (user_id) VALUES (?)`, userID)
		return err
	})
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeAlreadyExists {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "sign up")
	}

	return s.openSession(ctx, authID, email)
}

// SignIn checks the password and opens a session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var authID, hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM auth_users WHERE email = ?`, email,
	).Scan(&authID, &hash)
	if err != nil {
		if domainerrors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.InvalidCredentials("Invalid login credentials")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "sign in")
	}

	if !auth.VerifyPassword(hash, password) {
		return nil, domainerrors.InvalidCredentials("Invalid login credentials")
	}

	return s.openSession(ctx, authID, email)
}

func (s *Store) openSession(ctx context.Context, authID, email string) (*domain.AuthSession, error) {
	issued, err := s.tokens.Issue(authID, email)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "issue token")
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, auth_user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		issued.TokenID, authID, formatTime(issued.ExpiresAt), formatTime(s.now()),
	); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "store session")
	}

	return &domain.AuthSession{
		AccessToken: issued.Token,
		AuthUserID:  authID,
		Email:       email,
		ExpiresAt:   issued.ExpiresAt,
	}, nil
}

// GetSession validates the token and its server-side session row.
func (s *Store) GetSession(ctx context.Context, accessToken string) (*domain.AuthSession, error) {
	if accessToken == "" {
		return nil, domainerrors.Unauthorized("missing session")
	}

	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid session").WithCause(err)
	}

	var (
		expiresAt string
		revokedAt sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT expires_at, revoked_at FROM auth_sessions WHERE id = ? AND auth_user_id = ?`,
		claims.TokenID, claims.AuthUserID,
	).Scan(&expiresAt, &revokedAt)
	if err != nil {
		if domainerrors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.Unauthorized("session not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load session")
	}
	if revokedAt.Valid {
		return nil, domainerrors.Unauthorized("session revoked")
	}

	expires, err := parseTime(expiresAt)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse session expiry")
	}
	if !s.now().Before(expires) {
		return nil, domainerrors.Unauthorized("session expired")
	}

	return &domain.AuthSession{
		AccessToken: accessToken,
		AuthUserID:  claims.AuthUserID,
		Email:       claims.Email,
		ExpiresAt:   expires,
	}, nil
}

// SignOut revokes the session behind the token.
func (s *Store) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return domainerrors.Unauthorized("invalid session").WithCause(err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		formatTime(s.now()), claims.TokenID,
	); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "sign out")
	}
	return nil
}

// UpdatePassword replaces the password hash and revokes every other session.
func (s *Store) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	sess, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domainerrors.Validation(err.Error())
	}

	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return domainerrors.Unauthorized("invalid session").WithCause(err)
	}

	now := formatTime(s.now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE auth_users SET password_hash = ?, updated_at = ? WHERE id = ?`,
			hash, now, sess.AuthUserID,
		); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update password")
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE auth_sessions SET revoked_at = ?
			WHERE auth_user_id = ? AND id != ? AND revoked_at IS NULL`,
			now, sess.AuthUserID, claims.TokenID,
		); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "revoke sessions")
		}
		return nil
	})
}

// DeleteExpiredSessions removes revoked and expired session rows.
// Expiry is compared in Go because stored timestamps are not fixed width.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expires_at FROM auth_sessions WHERE revoked_at IS NULL`)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "list sessions")
	}
	now := s.now()
	var expired []string
	for rows.Next() {
		var id, expiresAt string
		if err := rows.Scan(&id, &expiresAt); err != nil {
			rows.Close()
			return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan session")
		}
		if t, err := parseTime(expiresAt); err != nil || !now.Before(t) {
			expired = append(expired, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "list sessions")
	}

	var deleted int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM auth_sessions WHERE revoked_at IS NOT NULL`)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete revoked sessions")
		}
		n, _ := res.RowsAffected()
		deleted += n
		for _, id := range expired {
			res, err := tx.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, id)
			if err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete expired session")
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
