// Package denorm keeps derived data consistent with canonical writes.
// It owns the rating aggregate on books and the fan-out of book and author
// changes into per-user saved projections.
package denorm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/store"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

// Aggregator maintains each book's average rating and rating count in
// response to rating writes. It does not touch saved projections itself:
// the aggregate write emits a book.updated event, and the propagator fans
// the new average out in its own delivery. Keeping the two steps in
// separate invocations means a redelivered rating event either finds its
// aggregate already committed or applies it exactly once, never twice.
type Aggregator struct {
	store  *store.Store
	logger *slog.Logger
}

// NewAggregator creates a rating aggregator.
func NewAggregator(s *store.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  s,
		logger: logger.With("component", "rating-aggregator"),
	}
}

// Name implements trigger.Handler.
func (a *Aggregator) Name() string { return "rating-aggregator" }

// Handle implements trigger.Handler for rating.written events.
func (a *Aggregator) Handle(ctx context.Context, event trigger.Event) error {
	if event.Type != trigger.EventRatingWritten || event.Rating == nil {
		return nil
	}
	_, err := a.Apply(ctx, *event.Rating)
	return err
}

// Apply folds one rating write into the book's aggregate. The update is a
// single transactional read-modify-write, so concurrent ratings cannot lose
// increments and an error always means nothing was committed, which makes
// the whole invocation safe to retry.
//
// A rating for a book that no longer exists is dropped rather than retried;
// the write raced a deletion and there is no aggregate left to maintain.
func (a *Aggregator) Apply(ctx context.Context, ev trigger.RatingWritten) (*domain.Book, error) {
	book, err := a.store.UpdateBookRating(ctx, ev.BookID, func(b *domain.Book) error {
		b.ApplyRating(ev.Value, ev.OldValue, ev.IsNew)
		return nil
	})
	if errors.Is(err, store.ErrBookNotFound) {
		a.logger.Warn("rating for missing book dropped", "book_id", ev.BookID, "user_id", ev.UserID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate rating: %w", err)
	}

	a.logger.Info("rating aggregated",
		"book_id", book.ID,
		"avg_rating", book.AvgRating,
		"rating_count", book.RatingCount,
	)
	return book, nil
}
