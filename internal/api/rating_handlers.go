package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerRatingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "rateBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/rating",
		Summary:     "Rate a book",
		Description: "Creates or overwrites the authenticated user's rating. The response carries a provisional aggregate; the authoritative one lands asynchronously.",
		Tags:        []string{"Ratings"},
	}, s.handleRateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getOwnRating",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/rating",
		Summary:     "Get own rating",
		Description: "Returns the authenticated user's rating for a book",
		Tags:        []string{"Ratings"},
	}, s.handleGetOwnRating)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRatingSummary",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/ratings",
		Summary:     "Get rating summary",
		Description: "Returns the authoritative aggregate rating for a book",
		Tags:        []string{"Ratings"},
	}, s.handleGetRatingSummary)
}

// === DTOs ===

// RateBookRequest is the request body for rating a book.
type RateBookRequest struct {
	Value int `json:"value" validate:"required,min=1,max=5" doc:"Rating value from 1 to 5"`
}

// RateBookInput wraps a rating request for Huma.
type RateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body RateBookRequest
}

// RatingResponse contains a single rating.
type RatingResponse struct {
	BookID    string    `json:"book_id" doc:"Book ID"`
	UserID    string    `json:"user_id" doc:"Rating user ID"`
	Value     int       `json:"value" doc:"Rating value"`
	CreatedAt time.Time `json:"created_at" doc:"First rating timestamp"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last change timestamp"`
}

// RateBookResponse contains the written rating plus the provisional aggregate.
type RateBookResponse struct {
	Rating           RatingResponse `json:"rating" doc:"The stored rating"`
	IsNew            bool           `json:"is_new" doc:"Whether this was the user's first rating for the book"`
	ProvisionalAvg   float64        `json:"provisional_avg" doc:"Locally recomputed average, pending the authoritative value"`
	ProvisionalCount int            `json:"provisional_count" doc:"Locally recomputed rating count"`
}

// RateBookOutput wraps the rate response for Huma.
type RateBookOutput struct {
	Body RateBookResponse
}

// RatingOutput wraps a single rating for Huma.
type RatingOutput struct {
	Body RatingResponse
}

// RatingSummaryResponse contains a book's aggregate rating.
type RatingSummaryResponse struct {
	BookID      string  `json:"book_id" doc:"Book ID"`
	AvgRating   float64 `json:"avg_rating" doc:"Average rating across distinct raters"`
	RatingCount int     `json:"rating_count" doc:"Number of distinct raters"`
}

// RatingSummaryOutput wraps the summary for Huma.
type RatingSummaryOutput struct {
	Body RatingSummaryResponse
}

// === Handlers ===

func (s *Server) handleRateBook(ctx context.Context, input *RateBookInput) (*RateBookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Rating.Rate(ctx, userID, input.ID, input.Body.Value)
	if err != nil {
		return nil, err
	}

	return &RateBookOutput{
		Body: RateBookResponse{
			Rating: RatingResponse{
				BookID:    result.Rating.BookID,
				UserID:    result.Rating.UserID,
				Value:     result.Rating.Value,
				CreatedAt: result.Rating.CreatedAt,
				UpdatedAt: result.Rating.UpdatedAt,
			},
			IsNew:            result.IsNew,
			ProvisionalAvg:   result.ProvisionalAvg,
			ProvisionalCount: result.ProvisionalCount,
		},
	}, nil
}

func (s *Server) handleGetOwnRating(ctx context.Context, input *BookIDInput) (*RatingOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	rating, err := s.services.Rating.GetOwn(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &RatingOutput{
		Body: RatingResponse{
			BookID:    rating.BookID,
			UserID:    rating.UserID,
			Value:     rating.Value,
			CreatedAt: rating.CreatedAt,
			UpdatedAt: rating.UpdatedAt,
		},
	}, nil
}

func (s *Server) handleGetRatingSummary(ctx context.Context, input *BookIDInput) (*RatingSummaryOutput, error) {
	book, err := s.services.Book.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &RatingSummaryOutput{
		Body: RatingSummaryResponse{
			BookID:      book.ID,
			AvgRating:   book.AvgRating,
			RatingCount: book.RatingCount,
		},
	}, nil
}
