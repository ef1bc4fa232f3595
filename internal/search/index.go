package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// SearchIndex is the store catalog index. All methods are safe for
// concurrent use; Rebuild excludes everything else.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // empty keeps the index in memory
	Logger   *slog.Logger // nil discards
}

// mappingVersion is stored inside the index. Bump it whenever
// buildIndexMapping changes; an index with another version is recreated.
const mappingVersion = "catalog-1"

var versionKey = []byte("_mapping_version")

// NewSearchIndex opens the catalog index under DataPath, creating it when
// missing, unreadable or built with another mapping version. The catalog is
// re-indexed from the backend on first load, so dropping it loses nothing.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := createIndex("")
		if err != nil {
			return nil, err
		}
		return &SearchIndex{index: index, logger: logger}, nil
	}

	path := filepath.Join(opts.DataPath, "catalog.bleve")
	index, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		index, err = createIndex(path)
		if err != nil {
			return nil, err
		}
		logger.Info("created catalog index", "path", path, "mapping_version", mappingVersion)

	case err != nil:
		logger.Warn("catalog index unreadable, recreating", "path", path, "error", err)
		if index, err = recreateIndex(path); err != nil {
			return nil, err
		}

	default:
		got, _ := index.GetInternal(versionKey)
		if string(got) != mappingVersion {
			logger.Info("catalog index mapping changed, recreating",
				"old_version", string(got), "new_version", mappingVersion)
			_ = index.Close()
			if index, err = recreateIndex(path); err != nil {
				return nil, err
			}
		} else {
			logger.Info("opened catalog index", "path", path)
		}
	}

	return &SearchIndex{index: index, path: path, logger: logger}, nil
}

// createIndex builds an empty index stamped with mappingVersion. An empty
// path creates it in memory.
func createIndex(path string) (bleve.Index, error) {
	var (
		index bleve.Index
		err   error
	)
	if path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		index, err = bleve.New(path, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := index.SetInternal(versionKey, []byte(mappingVersion)); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("stamp index version: %w", err)
	}
	return index, nil
}

func recreateIndex(path string) (bleve.Index, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove index: %w", err)
	}
	return createIndex(path)
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Shutdown closes the index; it satisfies do.ShutdownerWithError.
func (s *SearchIndex) Shutdown() error {
	return s.Close()
}

// IndexDocuments upserts documents in batches of 500.
func (s *SearchIndex) IndexDocuments(docs []*SearchDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteDocuments removes documents from the index.
func (s *SearchIndex) DeleteDocuments(ids []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return s.index.Batch(batch)
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and recreates it empty. It blocks all other operations.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = createIndex("")
	} else {
		index, err = recreateIndex(s.path)
	}
	if err != nil {
		return err
	}

	s.index = index
	s.logger.Info("rebuilt catalog index", "path", s.path)
	return nil
}
