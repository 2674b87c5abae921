package domain

import "time"

// SavedBook is a per-user denormalized projection of a Book. It carries a
// copy of the fields a saved-books list needs so reads never touch the
// canonical record.
//
// SourceUpdatedAt is the UpdatedAt of the canonical book at the time the
// denormalized fields were last written. Propagated patches carry the source
// update's timestamp and are skipped when the projection already holds a
// newer one, which makes last-write-wins explicit under out-of-order
// delivery.
type SavedBook struct {
	UserID          string    `json:"user_id"`
	BookID          string    `json:"book_id"`
	Title           string    `json:"title"`
	AuthorName      string    `json:"author_name"`
	CoverURL        string    `json:"cover_url,omitempty"`
	Genre           string    `json:"genre,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	AvgRating       float64   `json:"avg_rating"`
	SavedAt         time.Time `json:"saved_at"`
	SourceUpdatedAt time.Time `json:"source_updated_at"`
}

// NewSavedBook builds a projection of book for the given user.
func NewSavedBook(userID string, book *Book) *SavedBook {
	return &SavedBook{
		UserID:          userID,
		BookID:          book.ID,
		Title:           book.Title,
		AuthorName:      book.AuthorName,
		CoverURL:        book.CoverURL,
		Genre:           book.Genre,
		Tags:            book.Tags,
		AvgRating:       book.AvgRating,
		SavedAt:         time.Now(),
		SourceUpdatedAt: book.UpdatedAt,
	}
}
