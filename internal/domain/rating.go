package domain

import "time"

// Rating value bounds. Ratings are whole stars.
const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// Rating is a single user's rating of a book. There is at most one per
// (book, user) pair; re-rating overwrites the previous value. The UserID
// always equals the authenticated rater - ratings are not transferable.
type Rating struct {
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidValue reports whether v is within the allowed rating range.
func ValidValue(v int) bool {
	return v >= MinRatingValue && v <= MaxRatingValue
}
