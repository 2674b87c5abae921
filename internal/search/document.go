// Package search provides full-text search over the book catalogue using
// Bleve, with faceted filtering on genre and tags, fuzzy matching and
// rating/year range queries.
package search

import (
	"github.com/bookhaven/bookhaven-server/internal/domain"
)

// Document is the document structure for the Bleve index.
//
// Author names are denormalized into book documents so a single query can
// match either; the catalogue keeps the cached name fresh when authors
// rename themselves.
type Document struct {
	ID string `json:"id"`

	// Primary searchable text
	Name        string `json:"name"` // Book title
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`

	// Exact-match filter fields
	Genre string   `json:"genre,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	// Numeric fields for range queries and sorting
	AvgRating   float64 `json:"avg_rating"`
	RatingCount int     `json:"rating_count"`
	PublishYear int     `json:"publish_year,omitempty"`

	// Timestamps for sorting, Unix millis
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *Document) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":           d.ID,
		"name":         d.Name,
		"author":       d.Author,
		"avg_rating":   d.AvgRating,
		"rating_count": d.RatingCount,
		"created_at":   d.CreatedAt,
		"updated_at":   d.UpdatedAt,
	}

	// Optional fields - only add if non-empty
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Genre != "" {
		m["genre"] = d.Genre
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.PublishYear > 0 {
		m["publish_year"] = d.PublishYear
	}

	return m
}

// FromBook converts a domain Book to a search Document.
func FromBook(book *domain.Book) *Document {
	doc := &Document{
		ID:          book.ID,
		Name:        book.Title,
		Author:      book.AuthorName,
		Description: book.Description,
		Genre:       book.Genre,
		Tags:        book.Tags,
		AvgRating:   book.AvgRating,
		RatingCount: book.RatingCount,
		CreatedAt:   book.CreatedAt.UnixMilli(),
		UpdatedAt:   book.UpdatedAt.UnixMilli(),
	}

	if !book.PublishedAt.IsZero() {
		doc.PublishYear = book.PublishedAt.Year()
	}

	return doc
}
