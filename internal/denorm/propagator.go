package denorm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/store"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

// Propagator syncs denormalized book fields and author display names into
// saved projections whenever their source documents change.
//
// Deleted books are deliberately left alone: shelves keep the last known
// copy of the projection so a user's saved list never silently shrinks.
type Propagator struct {
	store  *store.Store
	logger *slog.Logger
}

// NewPropagator creates a denormalization propagator.
func NewPropagator(s *store.Store, logger *slog.Logger) *Propagator {
	return &Propagator{
		store:  s,
		logger: logger.With("component", "denorm-propagator"),
	}
}

// Name implements trigger.Handler.
func (p *Propagator) Name() string { return "denorm-propagator" }

// Handle implements trigger.Handler for book.updated, book.deleted and
// user.updated events.
func (p *Propagator) Handle(ctx context.Context, event trigger.Event) error {
	switch event.Type {
	case trigger.EventBookUpdated:
		if event.Book == nil {
			return nil
		}
		_, err := p.PropagateBookChange(ctx, event.Book.Before, event.Book.After)
		return err

	case trigger.EventBookDeleted:
		if event.BookDeleted != nil {
			p.logger.Debug("book deleted, projections preserved", "book_id", event.BookDeleted.Book.ID)
		}
		return nil

	case trigger.EventUserUpdated:
		if event.User == nil {
			return nil
		}
		_, err := p.PropagateAuthorRename(ctx, event.User.Before, event.User.After)
		return err
	}
	return nil
}

// PropagateBookChange pushes changed denormalized fields from a book update
// into every saved projection of that book. It covers content edits and
// rating aggregate changes; rating events arrive here as book.updated events
// emitted by the aggregate write. When none of the propagated fields changed,
// no projection is read or written, which keeps redundant saves and retried
// events idempotent.
//
// Each projection carries the timestamp of the source document it last
// reflected; a projection already stamped newer than this update skips the
// content fields so late-arriving events cannot roll fresher data back. The
// average is guarded by value instead, since the aggregate write itself is
// serialized and every event carries its committed result.
func (p *Propagator) PropagateBookChange(ctx context.Context, before, after *domain.Book) (int, error) {
	oldFields := before.CopyFields()
	newFields := after.CopyFields()
	contentChanged := !oldFields.Equal(newFields)
	ratingChanged := before.AvgRating != after.AvgRating || before.RatingCount != after.RatingCount
	if !contentChanged && !ratingChanged {
		return 0, nil
	}

	written, err := p.store.PatchSavedBooks(ctx, after.ID, func(sb *domain.SavedBook) bool {
		dirty := false
		if ratingChanged && sb.AvgRating != after.AvgRating {
			sb.AvgRating = after.AvgRating
			dirty = true
		}
		if contentChanged && !sb.SourceUpdatedAt.After(after.UpdatedAt) {
			sb.Title = newFields.Title
			sb.CoverURL = newFields.CoverURL
			sb.Genre = newFields.Genre
			sb.Tags = newFields.Tags
			sb.SourceUpdatedAt = after.UpdatedAt
			dirty = true
		}
		return dirty
	})
	if err != nil {
		return 0, fmt.Errorf("propagate book change: %w", err)
	}

	p.logger.Info("book change propagated",
		"book_id", after.ID,
		"projections_written", written,
	)
	return written, nil
}

// PropagateAuthorRename updates the cached author name on every book the
// user owns, then on every saved projection of those books. Books are
// matched through the author's stable ID, so two authors sharing a display
// name never contaminate each other's catalogues.
func (p *Propagator) PropagateAuthorRename(ctx context.Context, before, after *domain.User) (int, error) {
	if before.DisplayName == after.DisplayName {
		return 0, nil
	}

	books, err := p.store.TouchBookAuthorName(ctx, after.ID, after.DisplayName)
	if err != nil {
		return 0, fmt.Errorf("update author name on books: %w", err)
	}

	total := 0
	for _, book := range books {
		written, err := p.store.PatchSavedBooks(ctx, book.ID, func(sb *domain.SavedBook) bool {
			if sb.AuthorName == after.DisplayName {
				return false
			}
			if sb.SourceUpdatedAt.After(book.UpdatedAt) {
				return false
			}
			sb.AuthorName = after.DisplayName
			sb.SourceUpdatedAt = book.UpdatedAt
			return true
		})
		if err != nil {
			return total, fmt.Errorf("propagate author rename for book %s: %w", book.ID, err)
		}
		total += written
	}

	p.logger.Info("author rename propagated",
		"author_id", after.ID,
		"books", len(books),
		"projections_written", total,
	)
	return total, nil
}
