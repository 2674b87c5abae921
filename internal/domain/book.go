// Package domain contains the core business entities and domain logic for the Bookhaven catalogue.
package domain

import (
	"slices"
	"time"
)

// Book is the canonical record for a published book.
//
// AvgRating and RatingCount are derived fields: they are owned by the rating
// aggregator and must never be written by author-facing update paths. The
// cached AuthorName is kept in sync with the owning user's display name by
// the author-name propagator.
type Book struct {
	Syncable
	Title       string    `json:"title"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	PageCount   int       `json:"page_count,omitempty"`
	AvgRating   float64   `json:"avg_rating"`
	RatingCount int       `json:"rating_count"`
}

// CopyFields is the set of book fields that get denormalized into SavedBook
// projections. AvgRating travels separately through the rating aggregator.
type CopyFields struct {
	Title    string   `json:"title"`
	CoverURL string   `json:"cover_url"`
	Genre    string   `json:"genre"`
	Tags     []string `json:"tags"`
}

// CopyFields returns the denormalized field set of this book.
func (b *Book) CopyFields() CopyFields {
	return CopyFields{
		Title:    b.Title,
		CoverURL: b.CoverURL,
		Genre:    b.Genre,
		Tags:     b.Tags,
	}
}

// Equal reports whether two copyable field sets are identical.
// Used by the propagator to decide whether a book update needs fan-out at all.
func (f CopyFields) Equal(other CopyFields) bool {
	return f.Title == other.Title &&
		f.CoverURL == other.CoverURL &&
		f.Genre == other.Genre &&
		slices.Equal(f.Tags, other.Tags)
}

// OwnedBy returns true if the given user is the book's author.
func (b *Book) OwnedBy(userID string) bool {
	return b.AuthorID == userID
}

// ApplyRating folds one new or corrected rating into the running average
// using the incremental mean update. isNew distinguishes a first rating from
// a correction; oldValue is only meaningful for corrections, where the count
// is known to be non-zero.
func (b *Book) ApplyRating(value int, oldValue int, isNew bool) {
	if isNew {
		b.AvgRating = (b.AvgRating*float64(b.RatingCount) + float64(value)) / float64(b.RatingCount+1)
		b.RatingCount++
		return
	}
	b.AvgRating = (b.AvgRating*float64(b.RatingCount) - float64(oldValue) + float64(value)) / float64(b.RatingCount)
}
