package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

const (
	bookPrefix         = "book:"
	bookByAuthorPrefix = "book:idx:author:" // book:idx:author:<authorID>:<bookID> -> bookID
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrBookExists   = errors.New("book already exists")
)

// casMaxAttempts bounds the retry loop for conflicting rating updates.
const casMaxAttempts = 10

// Book Operations

// CreateBook creates a new book
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	key := []byte(bookPrefix + book.ID)

	// Check if it already exists
	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check book exists: %w", err)
	}
	if exists {
		return ErrBookExists
	}

	// Use transaction to create book and author index atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		authorKey := []byte(bookByAuthorPrefix + book.AuthorID + ":" + book.ID)
		return txn.Set(authorKey, []byte(book.ID))
	})
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	s.indexBookAsync(book)

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "book created",
			slog.String("id", book.ID),
			slog.String("title", book.Title),
			slog.String("author_id", book.AuthorID),
		)
	}
	return nil
}

// GetBook retrieves a book by ID
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	key := buildKey(bookPrefix, id)
	defer releaseKey(key)

	var book domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &book)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// mutateBook runs mutate against the stored document inside a single
// transaction, retrying on write conflicts. The read, the mutation and the
// write all happen in one txn, so a mutation can never revert fields written
// by a concurrent update. When mutate reassigns ownership the author index
// entry moves in the same txn. Returns the before and after images of the
// attempt that committed.
func (s *Store) mutateBook(ctx context.Context, bookID string, mutate func(*domain.Book) error) (*domain.Book, *domain.Book, error) {
	key := []byte(bookPrefix + bookID)

	var before, after *domain.Book
	for attempt := range casMaxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrBookNotFound
			}
			if err != nil {
				return err
			}

			var book domain.Book
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			}); err != nil {
				return fmt.Errorf("unmarshal book: %w", err)
			}
			prev := book

			if err := mutate(&book); err != nil {
				return err
			}
			book.Touch()

			data, err := json.Marshal(&book)
			if err != nil {
				return fmt.Errorf("marshal book: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}

			if prev.AuthorID != book.AuthorID {
				oldAuthorKey := []byte(bookByAuthorPrefix + prev.AuthorID + ":" + bookID)
				if err := txn.Delete(oldAuthorKey); err != nil {
					return err
				}

				newAuthorKey := []byte(bookByAuthorPrefix + book.AuthorID + ":" + bookID)
				if err := txn.Set(newAuthorKey, []byte(bookID)); err != nil {
					return err
				}
			}

			before, after = &prev, &book
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			if s.logger != nil {
				s.logger.Debug("book write conflict, retrying",
					"book_id", bookID, "attempt", attempt+1)
			}
			time.Sleep(time.Duration(attempt+1) * time.Millisecond)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return before, after, nil
	}

	return nil, nil, fmt.Errorf("gave up after %d conflicts", casMaxAttempts)
}

// UpdateBook applies mutate to the stored book transactionally and emits a
// book.updated event carrying the before and after documents for downstream
// propagation. Errors returned by mutate abort the write and are returned
// unwrapped, so callers can surface their own ownership or validation errors.
func (s *Store) UpdateBook(ctx context.Context, bookID string, mutate func(*domain.Book) error) (*domain.Book, error) {
	before, after, err := s.mutateBook(ctx, bookID, mutate)
	if err != nil {
		return nil, err
	}

	s.indexBookAsync(after)
	s.emit(trigger.NewBookUpdatedEvent(before, after))

	if s.logger != nil {
		s.logger.Info("book updated", "id", after.ID, "title", after.Title)
	}
	return after, nil
}

// UpdateBookRating applies mutate to the book's rating summary inside a single
// transaction and retries on write conflicts, so concurrent ratings never
// overwrite each other's aggregate. The committed change is emitted as a
// book.updated event so saved projections pick up the new average through
// their own delivery, independent of the aggregate write.
func (s *Store) UpdateBookRating(ctx context.Context, bookID string, mutate func(*domain.Book) error) (*domain.Book, error) {
	before, after, err := s.mutateBook(ctx, bookID, mutate)
	if err != nil {
		return nil, fmt.Errorf("update book rating: %w", err)
	}

	s.indexBookAsync(after)
	s.emit(trigger.NewBookUpdatedEvent(before, after))
	return after, nil
}

// DeleteBook removes a book, its author index entry and its ratings.
// Saved projections are left in place so shelves keep their last known copy.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(bookPrefix + id)
		if err := txn.Delete(key); err != nil {
			return err
		}

		authorKey := []byte(bookByAuthorPrefix + book.AuthorID + ":" + id)
		return txn.Delete(authorKey)
	})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if err := s.deleteRatingsForBook(ctx, id); err != nil {
		return fmt.Errorf("delete ratings for book: %w", err)
	}

	s.removeBookFromIndexAsync(id)
	s.emit(trigger.NewBookDeletedEvent(book))

	if s.logger != nil {
		s.logger.Info("book deleted", "id", id, "title", book.Title)
	}

	return nil
}

// BookExists checks if a book exists in our db by ID
func (s *Store) BookExists(ctx context.Context, id string) (bool, error) {
	key := buildKey(bookPrefix, id)
	defer releaseKey(key)
	return s.exists(key)
}

// ListBooks returns a page of books ordered by ID.
func (s *Store) ListBooks(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Book], error) {
	params.Validate()

	var books []*domain.Book
	var lastKey string
	var hasMore bool

	prefix := []byte(bookPrefix)

	// Decode cursor to get starting key
	startKey, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = params.Limit + 1 // We fetch one extra to check if there's more items.

		it := txn.NewIterator(opts)
		defer it.Close()

		// Start from cursor or beginning
		if startKey != "" {
			it.Seek([]byte(startKey))
			// Skip the cursor key itself (we've already returned it)
			if it.Valid() && string(it.Item().Key()) == startKey {
				it.Next()
			}
		} else {
			it.Seek(prefix)
		}

		count := 0
		for ; it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Skip author index entries
			if strings.HasPrefix(key[len(bookPrefix):], "idx:") {
				continue
			}

			// If we've hit limit + 1, we know there are more items
			if count == params.Limit {
				hasMore = true
				break
			}

			var book domain.Book
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				return fmt.Errorf("unmarshal book %s: %w", key, err)
			}

			books = append(books, &book)
			lastKey = key
			count++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	result := &PaginatedResult[*domain.Book]{
		Items:   books,
		HasMore: hasMore,
	}
	if hasMore {
		result.NextCursor = EncodeCursor(lastKey)
	}
	return result, nil
}

// ListBooksByAuthor returns all books owned by the given author,
// resolved through the author index.
func (s *Store) ListBooksByAuthor(ctx context.Context, authorID string) ([]*domain.Book, error) {
	prefix := []byte(bookByAuthorPrefix + authorID + ":")

	var bookIDs []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			bookIDs = append(bookIDs, key[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books by author: %w", err)
	}

	books := make([]*domain.Book, 0, len(bookIDs))
	for _, id := range bookIDs {
		book, err := s.GetBook(ctx, id)
		if errors.Is(err, ErrBookNotFound) {
			continue // Stale index entry
		}
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// TouchBookAuthorName updates the cached author display name on every book the
// author owns. Used when a user renames themselves. Each book goes through its
// own read-modify-write transaction so a rename cannot revert fields written
// concurrently, such as a rating aggregate landing mid-pass.
func (s *Store) TouchBookAuthorName(ctx context.Context, authorID, displayName string) ([]*domain.Book, error) {
	books, err := s.ListBooksByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	var changed []*domain.Book
	for _, book := range books {
		if book.AuthorName == displayName {
			continue
		}
		_, after, err := s.mutateBook(ctx, book.ID, func(b *domain.Book) error {
			b.AuthorName = displayName
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("touch author name on %s: %w", book.ID, err)
		}
		changed = append(changed, after)
	}

	for _, book := range changed {
		s.indexBookAsync(book)
	}
	return changed, nil
}
