// Package trigger runs change-event handlers in response to canonical store
// mutations. Each emitted event becomes one independent invocation per
// registered handler, delivered at least once with bounded retry. No ordering
// guarantees are provided across invocations; handlers must tolerate
// redelivery and out-of-order application.
package trigger

import (
	"time"

	"github.com/bookhaven/bookhaven-server/internal/domain"
)

// EventType identifies the kind of canonical mutation that fired.
type EventType string

const (
	// EventRatingWritten fires when a rating is created or overwritten.
	EventRatingWritten EventType = "rating.written"
	// EventBookUpdated fires when a book document changes, whether from a
	// content edit or a committed rating aggregate.
	EventBookUpdated EventType = "book.updated"
	// EventBookDeleted fires when a book is deleted.
	EventBookDeleted EventType = "book.deleted"
	// EventUserUpdated fires when a user profile changes.
	EventUserUpdated EventType = "user.updated"
)

// Event is one canonical mutation. Exactly one payload field matching Type
// is non-nil.
type Event struct {
	Type        EventType
	At          time.Time
	Rating      *RatingWritten
	Book        *BookUpdated
	BookDeleted *BookDeletion
	User        *UserUpdated
}

// RatingWritten carries a rating create or correction.
// OldValue is only meaningful when IsNew is false.
type RatingWritten struct {
	BookID   string
	UserID   string
	Value    int
	OldValue int
	IsNew    bool
}

// BookUpdated carries the before and after images of a book update.
type BookUpdated struct {
	Before *domain.Book
	After  *domain.Book
}

// BookDeletion carries the last image of a deleted book.
type BookDeletion struct {
	Book *domain.Book
}

// UserUpdated carries the before and after images of a user update.
type UserUpdated struct {
	Before *domain.User
	After  *domain.User
}

// NewRatingWrittenEvent builds a rating-written event.
func NewRatingWrittenEvent(bookID, userID string, value, oldValue int, isNew bool) Event {
	return Event{
		Type: EventRatingWritten,
		At:   time.Now(),
		Rating: &RatingWritten{
			BookID:   bookID,
			UserID:   userID,
			Value:    value,
			OldValue: oldValue,
			IsNew:    isNew,
		},
	}
}

// NewBookUpdatedEvent builds a book-updated event from before/after images.
func NewBookUpdatedEvent(before, after *domain.Book) Event {
	return Event{
		Type: EventBookUpdated,
		At:   time.Now(),
		Book: &BookUpdated{Before: before, After: after},
	}
}

// NewBookDeletedEvent builds a book-deleted event.
func NewBookDeletedEvent(book *domain.Book) Event {
	return Event{
		Type:        EventBookDeleted,
		At:          time.Now(),
		BookDeleted: &BookDeletion{Book: book},
	}
}

// NewUserUpdatedEvent builds a user-updated event from before/after images.
func NewUserUpdatedEvent(before, after *domain.User) Event {
	return Event{
		Type: EventUserUpdated,
		At:   time.Now(),
		User: &UserUpdated{Before: before, After: after},
	}
}
