package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookhaven/bookhaven-server/internal/domain"
)

const (
	savedPrefix       = "saved:"          // saved:<userID>:<bookID>
	savedByBookPrefix = "saved:idx:book:" // saved:idx:book:<bookID>:<userID>
)

// ErrSavedBookNotFound is returned when a user has not saved the given book.
var ErrSavedBookNotFound = errors.New("saved book not found")

// SaveBook stores a saved-book projection and its reverse index entry
// atomically. Saving an already saved book overwrites the projection.
func (s *Store) SaveBook(ctx context.Context, saved *domain.SavedBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(savedPrefix + saved.UserID + ":" + saved.BookID)
	reverseKey := []byte(savedByBookPrefix + saved.BookID + ":" + saved.UserID)

	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("marshal saved book: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(reverseKey, []byte{})
	})
	if err != nil {
		return fmt.Errorf("save book: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "book saved",
			slog.String("user_id", saved.UserID),
			slog.String("book_id", saved.BookID),
		)
	}
	return nil
}

// UnsaveBook removes a saved-book projection and its reverse index entry.
// Removing a book that was never saved is a no-op.
func (s *Store) UnsaveBook(ctx context.Context, userID, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(savedPrefix + userID + ":" + bookID)
	reverseKey := []byte(savedByBookPrefix + bookID + ":" + userID)

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(reverseKey)
	})
	if err != nil {
		return fmt.Errorf("unsave book: %w", err)
	}
	return nil
}

// GetSavedBook retrieves one saved-book projection.
func (s *Store) GetSavedBook(ctx context.Context, userID, bookID string) (*domain.SavedBook, error) {
	key := buildCompositeKey(savedPrefix, userID, bookID)
	defer releaseKey(key)

	var saved domain.SavedBook
	if err := s.get(key, &saved); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrSavedBookNotFound
		}
		return nil, fmt.Errorf("get saved book: %w", err)
	}
	return &saved, nil
}

// ListSavedBooks returns every projection on a user's shelf.
func (s *Store) ListSavedBooks(ctx context.Context, userID string) ([]*domain.SavedBook, error) {
	prefix := []byte(savedPrefix + userID + ":")

	var books []*domain.SavedBook
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var saved domain.SavedBook
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &saved)
			})
			if err != nil {
				return err
			}
			books = append(books, &saved)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list saved books: %w", err)
	}
	return books, nil
}

// ListSaverIDs returns the IDs of every user who has saved the given book,
// resolved through the reverse index without scanning user shelves.
func (s *Store) ListSaverIDs(ctx context.Context, bookID string) ([]string, error) {
	prefix := []byte(savedByBookPrefix + bookID + ":")

	var userIDs []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			userIDs = append(userIDs, key[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list saver ids: %w", err)
	}
	return userIDs, nil
}

// PatchSavedBooks applies a mutation to every projection of the given book.
// The apply callback mutates a projection in place and returns whether it
// should be written back; returning false skips the write entirely.
//
// Writes are chunked into batches of at most MaxBatchOps operations. Batches
// are issued sequentially but flushed concurrently and joined before
// returning; once any batch fails, no further batches are issued.
func (s *Store) PatchSavedBooks(ctx context.Context, bookID string, apply func(*domain.SavedBook) bool) (int, error) {
	userIDs, err := s.ListSaverIDs(ctx, bookID)
	if err != nil {
		return 0, err
	}

	type pending struct {
		key  []byte
		data []byte
	}

	var writes []pending
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		saved, err := s.GetSavedBook(ctx, userID, bookID)
		if errors.Is(err, ErrSavedBookNotFound) {
			continue // Stale reverse index entry
		}
		if err != nil {
			return 0, err
		}

		if !apply(saved) {
			continue
		}

		data, err := json.Marshal(saved)
		if err != nil {
			return 0, fmt.Errorf("marshal saved book: %w", err)
		}
		writes = append(writes, pending{
			key:  []byte(savedPrefix + userID + ":" + bookID),
			data: data,
		})
	}

	if len(writes) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(writes); start += MaxBatchOps {
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		end := min(start+MaxBatchOps, len(writes))

		wb := s.db.NewWriteBatch()
		issued := true
		for _, w := range writes[start:end] {
			if err := wb.Set(w.key, w.data); err != nil {
				record(fmt.Errorf("batch set saved book: %w", err))
				wb.Cancel()
				issued = false
				break
			}
		}
		if !issued {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer wb.Cancel()

			if err := wb.Flush(); err != nil {
				record(fmt.Errorf("flush saved book batch: %w", err))
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "saved projections patched",
			slog.String("book_id", bookID),
			slog.Int("written", len(writes)),
			slog.Int("fanout", len(userIDs)),
		)
	}
	return len(writes), nil
}
