package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/normalize"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

// Emitter receives a change event for every rating, book, and user
// write. The store depends on this interface rather than the dispatcher
// itself.
type Emitter interface {
	Emit(event trigger.Event)
}

// NoopEmitter discards events. For tests.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(_ trigger.Event) {}

// NewNoopEmitter creates an emitter that discards events.
func NewNoopEmitter() Emitter {
	return NoopEmitter{}
}

// SearchIndexer keeps the search index in sync with book writes.
// Updates run asynchronously so indexing never blocks the write path.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer discards index updates. For tests.
type NoopSearchIndexer struct{}

// IndexBook implements SearchIndexer.
func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook implements SearchIndexer.
func (NoopSearchIndexer) DeleteBook(context.Context, string) error { return nil }

// NewNoopSearchIndexer creates an indexer that discards updates.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// Store wraps a Badger database instance.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	emitter Emitter

	// Set via SetSearchIndexer after construction; the index can't
	// exist before the store it reads from.
	searchIndexer SearchIndexer

	Users    *Entity[domain.User]
	Sessions *Entity[domain.Session]
}

// New opens the database at path. The emitter is required and receives
// an event for every rating, book, and user write.
func New(path string, logger *slog.Logger, emitter Emitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true       // survive crashes without losing acked writes
	opts.CompactL0OnClose = true // faster next startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{db: db, logger: logger, emitter: emitter}

	// Email lookups are case-insensitive via normalization on both the
	// indexed value and the search value.
	store.Users = NewEntity[domain.User](store, "user:").
		WithIndexTransform("email",
			func(u *domain.User) []string { return []string{normalize.Email(u.Email)} },
			normalize.Email,
		)

	// Token hashes are unique per session; the user index is non-unique
	// so one user's sessions across devices can be listed and revoked
	// together.
	store.Sessions = NewEntity[domain.Session](store, "session:").
		WithIndex("token", func(sess *domain.Session) []string {
			return []string{sess.RefreshTokenHash}
		}).
		WithMultiIndex("user", func(sess *domain.Session) []string {
			return []string{sess.UserID}
		})

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// SetSearchIndexer wires the search index in after construction.
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.searchIndexer = indexer
}

// emit forwards an event to the emitter if one is configured.
func (s *Store) emit(event trigger.Event) {
	if s.emitter != nil {
		s.emitter.Emit(event)
	}
}

// indexBookAsync pushes a book into the search index without blocking
// the write path.
func (s *Store) indexBookAsync(book *domain.Book) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.IndexBook(context.Background(), book); err != nil && s.logger != nil {
			s.logger.Warn("search index update failed", "book_id", book.ID, "error", err)
		}
	}()
}

// removeBookFromIndexAsync removes a book from the search index without
// blocking.
func (s *Store) removeBookFromIndexAsync(bookID string) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.DeleteBook(context.Background(), bookID); err != nil && s.logger != nil {
			s.logger.Warn("search index delete failed", "book_id", bookID, "error", err)
		}
	}()
}

// Raw key helpers used by the composite-key records (ratings, saved
// books) that don't go through Entity.

func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *Store) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
