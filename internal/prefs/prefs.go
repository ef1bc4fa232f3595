// Package prefs persists per-user display preferences (theme, low-data mode)
// in an embedded Badger database next to the backend.
package prefs

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

const themeKey = "eco-theme"

// ErrInvalidTheme is returned for a theme outside ThemeLight and ThemeDark.
var ErrInvalidTheme = errors.New("theme must be light or dark")

// Preferences is one user's stored settings.
type Preferences struct {
	Theme   string `json:"theme"`
	LowData bool   `json:"low_data"`
	// AvatarBlurHash is the placeholder of the last uploaded avatar.
	AvatarBlurHash string    `json:"avatar_blurhash,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Defaults returns the settings of a user who never saved any.
func Defaults() Preferences {
	return Preferences{Theme: ThemeLight}
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens the store at path; an empty path keeps everything in memory.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = path != ""
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	logger.Info("preferences store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Shutdown closes the store; it satisfies do.ShutdownerWithError.
func (s *Store) Shutdown() error {
	return s.Close()
}

func userKey(userID string) []byte {
	return []byte("prefs:" + userID + ":" + themeKey)
}

// Get returns the user's preferences, or Defaults when none are stored.
func (s *Store) Get(ctx context.Context, userID string) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}

	p := Defaults()
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// Update applies fn to the stored preferences and saves the result.
func (s *Store) Update(ctx context.Context, userID string, fn func(p *Preferences) error) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}

	var out Preferences
	err := s.db.Update(func(txn *badger.Txn) error {
		p := Defaults()
		item, err := txn.Get(userKey(userID))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := fn(&p); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		out = p
		return txn.Set(userKey(userID), data)
	})
	if err != nil {
		return Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	return out, nil
}

// SetTheme stores the theme.
func (s *Store) SetTheme(ctx context.Context, userID, theme string) (Preferences, error) {
	if theme != ThemeLight && theme != ThemeDark {
		return Preferences{}, ErrInvalidTheme
	}
	return s.Update(ctx, userID, func(p *Preferences) error {
		p.Theme = theme
		return nil
	})
}

// SetLowData stores the low-data flag.
func (s *Store) SetLowData(ctx context.Context, userID string, on bool) (Preferences, error) {
	return s.Update(ctx, userID, func(p *Preferences) error {
		p.LowData = on
		return nil
	})
}

// SetAvatarBlurHash stores the placeholder shown while the avatar loads.
func (s *Store) SetAvatarBlurHash(ctx context.Context, userID, hash string) (Preferences, error) {
	return s.Update(ctx, userID, func(p *Preferences) error {
		p.AvatarBlurHash = hash
		return nil
	})
}
