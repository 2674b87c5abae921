package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

const ratingPrefix = "rating:" // rating:<bookID>:<userID>

// ErrRatingNotFound is returned when no rating exists for a book/user pair.
var ErrRatingNotFound = errors.New("rating not found")

// PutRating creates or overwrites a user's rating for a book in a single
// transaction and reports the prior value so the aggregate can be corrected.
// A rating.written event is emitted on success.
func (s *Store) PutRating(ctx context.Context, rating *domain.Rating) (oldValue int, isNew bool, err error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	key := []byte(ratingPrefix + rating.BookID + ":" + rating.UserID)
	now := time.Now()

	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			isNew = true
			rating.CreatedAt = now
		case err != nil:
			return err
		default:
			var existing domain.Rating
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return fmt.Errorf("unmarshal rating: %w", err)
			}
			oldValue = existing.Value
			rating.CreatedAt = existing.CreatedAt
		}

		rating.UpdatedAt = now
		data, err := json.Marshal(rating)
		if err != nil {
			return fmt.Errorf("marshal rating: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, false, fmt.Errorf("put rating: %w", err)
	}

	s.emit(trigger.NewRatingWrittenEvent(rating.BookID, rating.UserID, rating.Value, oldValue, isNew))

	if s.logger != nil {
		s.logger.Info("rating written",
			"book_id", rating.BookID,
			"user_id", rating.UserID,
			"value", rating.Value,
			"is_new", isNew,
		)
	}
	return oldValue, isNew, nil
}

// GetRating retrieves a user's rating for a book.
func (s *Store) GetRating(ctx context.Context, bookID, userID string) (*domain.Rating, error) {
	key := buildCompositeKey(ratingPrefix, bookID, userID)
	defer releaseKey(key)

	var rating domain.Rating
	if err := s.get(key, &rating); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &rating, nil
}

// ListRatingsForBook returns every rating stored for the given book.
func (s *Store) ListRatingsForBook(ctx context.Context, bookID string) ([]*domain.Rating, error) {
	prefix := []byte(ratingPrefix + bookID + ":")

	var ratings []*domain.Rating
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var rating domain.Rating
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rating)
			})
			if err != nil {
				return err
			}
			ratings = append(ratings, &rating)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}

// deleteRatingsForBook removes all ratings for a book using batched deletes.
func (s *Store) deleteRatingsForBook(ctx context.Context, bookID string) error {
	prefix := []byte(ratingPrefix + bookID + ":")

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	writer := s.NewBatchWriter(MaxBatchOps)
	defer writer.Cancel()

	for _, key := range keys {
		if err := writer.Delete(key); err != nil {
			return err
		}
	}
	return writer.Flush()
}
