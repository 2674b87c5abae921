package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

func TestPutRating_NewAndOverwrite(t *testing.T) {
	s, emitter, cleanup := setupTestStoreWithEmitter(t)
	defer cleanup()

	ctx := context.Background()

	oldValue, isNew, err := s.PutRating(ctx, &domain.Rating{BookID: "bok-1", UserID: "usr-1", Value: 2})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Zero(t, oldValue)

	// Overwrite reports the prior value
	oldValue, isNew, err = s.PutRating(ctx, &domain.Rating{BookID: "bok-1", UserID: "usr-1", Value: 5})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, 2, oldValue)

	got, err := s.GetRating(ctx, "bok-1", "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Value)
	assert.False(t, got.CreatedAt.IsZero())

	events := emitter.byType(trigger.EventRatingWritten)
	require.Len(t, events, 2)
	assert.True(t, events[0].Rating.IsNew)
	assert.False(t, events[1].Rating.IsNew)
	assert.Equal(t, 2, events[1].Rating.OldValue)
}

func TestGetRating_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetRating(context.Background(), "bok-1", "usr-none")
	assert.ErrorIs(t, err, ErrRatingNotFound)
}

func TestListRatingsForBook(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for _, userID := range []string{"usr-a", "usr-b", "usr-c"} {
		_, _, err := s.PutRating(ctx, &domain.Rating{BookID: "bok-1", UserID: userID, Value: 3})
		require.NoError(t, err)
	}
	_, _, err := s.PutRating(ctx, &domain.Rating{BookID: "bok-2", UserID: "usr-a", Value: 1})
	require.NoError(t, err)

	ratings, err := s.ListRatingsForBook(ctx, "bok-1")
	require.NoError(t, err)
	assert.Len(t, ratings, 3)
}
