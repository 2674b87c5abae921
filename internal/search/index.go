package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/bookhaven/bookhaven-server/internal/domain"
)

// mappingVersion is bumped whenever the index mapping changes, forcing
// a rebuild on the next startup.
const mappingVersion = "1"

// Index wraps a Bleve index with catalogue-specific operations. All
// public methods are safe for concurrent use; the mutex keeps readers
// out while Rebuild swaps the underlying index.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr text handler if nil)
}

// NewIndex opens the index at DataPath, creating it when absent. An
// index that fails to open or was built with an older mapping version
// is discarded and recreated empty.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	index := openExisting(indexPath, versionPath, logger)
	if index == nil {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

// openExisting returns the on-disk index when it is present, openable,
// and carries the current mapping version; otherwise nil.
func openExisting(indexPath, versionPath string, logger *slog.Logger) bleve.Index {
	if _, err := os.Stat(indexPath); err != nil {
		return nil
	}

	version, err := os.ReadFile(versionPath)
	if err != nil {
		logger.Info("search index has no version file, will rebuild with current mapping",
			"new_version", mappingVersion)
		return nil
	}
	if string(version) != mappingVersion {
		logger.Info("search index mapping version changed, will rebuild",
			"old_version", string(version), "new_version", mappingVersion)
		return nil
	}

	index, err := bleve.Open(indexPath)
	if err != nil {
		logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
		return nil
	}
	return index
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook indexes a single book. Implements the store's SearchIndexer.
func (s *Index) IndexBook(_ context.Context, book *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := FromBook(book)
	// The map form keeps field names aligned with the lowercase mapping.
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteBook removes a book from the index. Implements the store's SearchIndexer.
func (s *Index) DeleteBook(_ context.Context, bookID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(bookID)
}

// IndexBooks indexes books in batches of 500, which is much faster than
// one IndexBook call per book and keeps memory bounded during the
// initial full index.
func (s *Index) IndexBooks(books []*domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500
	for i := 0; i < len(books); i += batchSize {
		end := min(i+batchSize, len(books))

		batch := s.index.NewBatch()
		for _, book := range books[i:end] {
			doc := FromBook(book)
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

// DocumentCount returns the total number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates an empty one with the current
// mapping. Holds the exclusive lock, so all other operations block
// until it returns.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
