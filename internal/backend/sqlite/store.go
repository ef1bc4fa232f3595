// Package sqlite implements backend.Client on an embedded SQLite database.
//
// Streak maintenance and balance bookkeeping live in schema triggers, the same
// way the hosted backend keeps them out of the client. Every write that changes
// a subscribed table publishes a change event on the store's feed.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/auth"
	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const changeSchema = "public"

// Store is the SQLite-backed campus backend.
type Store struct {
	db     *sql.DB
	tokens *auth.TokenService
	feed   *backend.Feed
	logger *slog.Logger

	now func() time.Time
}

var _ backend.Client = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
// Pragmas go through the DSN so every pooled connection gets them.
func Open(path string, tokens *auth.TokenService, logger *slog.Logger) (*Store, error) {
	if tokens == nil {
		return nil, fmt.Errorf("open sqlite: token service is required")
	}
	if err := registerFuncs(); err != nil {
		return nil, fmt.Errorf("register sql functions: %w", err)
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{
		db:     db,
		tokens: tokens,
		feed:   backend.NewFeed(logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close ends realtime subscriptions and closes the database.
func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}

// Ping verifies the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Subscribe implements backend.Realtime.
func (s *Store) Subscribe(_ context.Context, table, column, value string) (*backend.Subscription, error) {
	sub, err := s.feed.Subscribe(table, column, value)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "realtime feed unavailable")
	}
	return sub, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the fn error is what matters
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// publish sends a change event for table with the given rows.
func (s *Store) publish(event, table string, old, row map[string]any) {
	s.feed.Publish(domain.ChangeEvent{
		Event:     event,
		Schema:    changeSchema,
		Table:     table,
		Old:       old,
		New:       row,
		Timestamp: s.now().UTC(),
	})
}

// publishUser re-reads the users row so subscribers see the trigger-updated balance.
func (s *Store) publishUser(ctx context.Context, userID string) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("publish user change", "user_id", userID, "error", err)
		return
	}
	s.publish(domain.ChangeUpdate, "users", nil, profileRow(p))
}

func profileRow(p *domain.Profile) map[string]any {
	return map[string]any{
		"id":              p.ID,
		"full_name":       p.FullName,
		"course":          p.Course,
		"current_points":  p.CurrentPoints,
		"lifetime_points": p.LifetimePoints,
		"profile_img_url": p.ProfileImgURL,
		"tick_type":       p.TickType,
		"is_volunteer":    p.IsVolunteer,
	}
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBalanceViolation reports whether err came from a CHECK on current_points.
func isBalanceViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed") &&
		strings.Contains(err.Error(), "current_points")
}

func notFoundOr(err error, msg string) error {
	if domainerrors.Is(err, sql.ErrNoRows) {
		return domainerrors.NotFound(msg)
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullString returns a NULL for the empty string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY failure.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
