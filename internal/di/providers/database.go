package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/ecocampus/ecocampus-server/internal/auth"
	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/search"
	"github.com/ecocampus/ecocampus-server/internal/sse"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the browser push manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the backend store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite campus backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	tokens := do.MustInvoke[*auth.TokenService](i)

	dbPath := filepath.Join(cfg.App.DataPath, "campus.db")
	db, err := sqlite.Open(dbPath, tokens, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ProvidePreferences provides the Badger-backed preference store.
func ProvidePreferences(i do.Injector) (*prefs.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := filepath.Join(cfg.App.DataPath, "prefs")
	store, err := prefs.Open(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Preference store opened", "path", path)
	return store, nil
}

// ProvideSearchIndex provides the Bleve store catalog index.
func ProvideSearchIndex(i do.Injector) (*search.SearchIndex, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.App.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return index, nil
}
