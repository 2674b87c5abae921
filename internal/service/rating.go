package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

// RatingService handles rating submission. The rater identity is always the
// authenticated user; ratings cannot be written on someone else's behalf.
type RatingService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRatingService creates a new rating service.
func NewRatingService(s *store.Store, logger *slog.Logger) *RatingService {
	return &RatingService{
		store:  s,
		logger: logger,
	}
}

// RateResult reports the outcome of a rating write, including the locally
// recomputed aggregate a client can display while the authoritative
// aggregate catches up.
type RateResult struct {
	Rating *domain.Rating `json:"rating"`
	IsNew  bool           `json:"is_new"`

	// Provisional aggregate computed from the book at submission time.
	ProvisionalAvg   float64 `json:"provisional_avg"`
	ProvisionalCount int     `json:"provisional_count"`
}

// Rate creates or overwrites the calling user's rating for a book.
func (s *RatingService) Rate(ctx context.Context, userID, bookID string, value int) (*RateResult, error) {
	if value < domain.MinRatingValue || value > domain.MaxRatingValue {
		return nil, domainerrors.Validationf("rating must be between %d and %d",
			domain.MinRatingValue, domain.MaxRatingValue)
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	rating := &domain.Rating{
		BookID: bookID,
		UserID: userID,
		Value:  value,
	}

	oldValue, isNew, err := s.store.PutRating(ctx, rating)
	if err != nil {
		return nil, fmt.Errorf("put rating: %w", err)
	}

	// Compute the same incremental mean the aggregator will apply, from the
	// book as read before the write. The authoritative value lands through
	// the trigger pipeline shortly after.
	provisional := *book
	provisional.ApplyRating(value, oldValue, isNew)

	return &RateResult{
		Rating:           rating,
		IsNew:            isNew,
		ProvisionalAvg:   provisional.AvgRating,
		ProvisionalCount: provisional.RatingCount,
	}, nil
}

// GetOwn returns the calling user's rating for a book, if any.
func (s *RatingService) GetOwn(ctx context.Context, userID, bookID string) (*domain.Rating, error) {
	rating, err := s.store.GetRating(ctx, bookID, userID)
	if err != nil {
		if errors.Is(err, store.ErrRatingNotFound) {
			return nil, domainerrors.NotFound("you have not rated this book")
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}
