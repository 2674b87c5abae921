package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
)

func TestRate_FirstRating(t *testing.T) {
	bookSvc, s := setupBookService(t)
	svc := NewRatingService(s, testLogger())

	author := testAuthor("usr-author", "Alice Moreau")
	book, err := bookSvc.Publish(context.Background(), author, PublishRequest{Title: "Rated"})
	require.NoError(t, err)

	result, err := svc.Rate(context.Background(), "usr-reader", book.ID, 4)
	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.Equal(t, 4, result.Rating.Value)
	assert.Equal(t, "usr-reader", result.Rating.UserID)
	assert.Equal(t, 4.0, result.ProvisionalAvg)
	assert.Equal(t, 1, result.ProvisionalCount)
}

func TestRate_ProvisionalAggregate(t *testing.T) {
	bookSvc, s := setupBookService(t)
	svc := NewRatingService(s, testLogger())

	author := testAuthor("usr-author", "Alice Moreau")
	book, err := bookSvc.Publish(context.Background(), author, PublishRequest{Title: "Rated"})
	require.NoError(t, err)

	// Simulate an existing authoritative aggregate of two ratings averaging 4.0
	_, err = s.UpdateBookRating(context.Background(), book.ID, func(b *domain.Book) error {
		b.AvgRating = 4.0
		b.RatingCount = 2
		return nil
	})
	require.NoError(t, err)

	result, err := svc.Rate(context.Background(), "usr-reader", book.ID, 2)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3.0, result.ProvisionalAvg, 1e-9)
	assert.Equal(t, 3, result.ProvisionalCount)
}

func TestRate_Correction(t *testing.T) {
	bookSvc, s := setupBookService(t)
	svc := NewRatingService(s, testLogger())

	author := testAuthor("usr-author", "Alice Moreau")
	book, err := bookSvc.Publish(context.Background(), author, PublishRequest{Title: "Rated"})
	require.NoError(t, err)

	_, err = svc.Rate(context.Background(), "usr-reader", book.ID, 2)
	require.NoError(t, err)

	_, err = s.UpdateBookRating(context.Background(), book.ID, func(b *domain.Book) error {
		b.AvgRating = 2.0
		b.RatingCount = 1
		return nil
	})
	require.NoError(t, err)

	result, err := svc.Rate(context.Background(), "usr-reader", book.ID, 5)
	require.NoError(t, err)
	assert.False(t, result.IsNew)
	// Corrected in place: count stays 1, mean becomes the new value
	assert.Equal(t, 1, result.ProvisionalCount)
	assert.InDelta(t, 5.0, result.ProvisionalAvg, 1e-9)
}

func TestRate_RejectsOutOfRange(t *testing.T) {
	_, s := setupBookService(t)
	svc := NewRatingService(s, testLogger())

	for _, value := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), "usr-reader", "bok-any", value)
		require.Error(t, err)

		var domainErr *domainerrors.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
	}
}

func TestRate_UnknownBook(t *testing.T) {
	_, s := setupBookService(t)
	svc := NewRatingService(s, testLogger())

	_, err := svc.Rate(context.Background(), "usr-reader", "bok-missing", 3)
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeNotFound, domainErr.Code)
}

func TestGetOwn(t *testing.T) {
	bookSvc, s := setupBookService(t)
	svc := NewRatingService(s, testLogger())

	author := testAuthor("usr-author", "Alice Moreau")
	book, err := bookSvc.Publish(context.Background(), author, PublishRequest{Title: "Rated"})
	require.NoError(t, err)

	_, err = svc.GetOwn(context.Background(), "usr-reader", book.ID)
	require.Error(t, err)

	_, err = svc.Rate(context.Background(), "usr-reader", book.ID, 5)
	require.NoError(t, err)

	rating, err := svc.GetOwn(context.Background(), "usr-reader", book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Value)
}
