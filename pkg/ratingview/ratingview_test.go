package ratingview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_FirstRating(t *testing.T) {
	v := New(4.0, 2)

	require.NoError(t, v.Begin(2))
	assert.InDelta(t, 10.0/3.0, v.AvgRating, 1e-9)
	assert.Equal(t, 3, v.RatingCount)
	assert.Equal(t, StatePending, v.State())
}

func TestBegin_Correction(t *testing.T) {
	v := NewWithOwnRating(10.0/3.0, 3, 2)

	require.NoError(t, v.Begin(5))
	assert.InDelta(t, 13.0/3.0, v.AvgRating, 1e-9)
	assert.Equal(t, 3, v.RatingCount)
}

func TestBegin_EmptyBook(t *testing.T) {
	v := New(0, 0)

	require.NoError(t, v.Begin(4))
	assert.Equal(t, 4.0, v.AvgRating)
	assert.Equal(t, 1, v.RatingCount)
}

func TestBegin_RejectsInvalidValue(t *testing.T) {
	v := New(3.0, 1)

	assert.ErrorIs(t, v.Begin(0), ErrInvalidValue)
	assert.ErrorIs(t, v.Begin(6), ErrInvalidValue)
	assert.Equal(t, StateIdle, v.State())
}

func TestBegin_RejectsSecondInFlight(t *testing.T) {
	v := New(3.0, 1)

	require.NoError(t, v.Begin(4))
	assert.ErrorIs(t, v.Begin(5), ErrUpdateInFlight)
}

func TestCommitThenReconcile(t *testing.T) {
	v := New(4.0, 2)

	require.NoError(t, v.Begin(2))
	require.NoError(t, v.Commit())
	assert.Equal(t, StateCommitted, v.State())

	// Authoritative read wins
	v.Reconcile(3.3, 3)
	assert.Equal(t, 3.3, v.AvgRating)
	assert.Equal(t, 3, v.RatingCount)
	assert.Equal(t, StateIdle, v.State())
}

func TestRollback_RestoresSnapshot(t *testing.T) {
	v := NewWithOwnRating(4.0, 2, 4)

	require.NoError(t, v.Begin(1))
	require.NoError(t, v.Rollback())

	assert.Equal(t, 4.0, v.AvgRating)
	assert.Equal(t, 2, v.RatingCount)
	assert.Equal(t, 4, v.OwnValue)
	assert.Equal(t, StateRolledBack, v.State())

	// A new attempt is allowed after rollback
	require.NoError(t, v.Begin(5))
}

func TestCommit_RequiresPending(t *testing.T) {
	v := New(4.0, 2)
	assert.ErrorIs(t, v.Commit(), ErrNoUpdate)
	assert.ErrorIs(t, v.Rollback(), ErrNoUpdate)
}

func TestBeginBlend(t *testing.T) {
	v := New(4.0, 0)

	require.NoError(t, v.BeginBlend(2))
	assert.InDelta(t, 3.0, v.AvgRating, 1e-9)

	require.NoError(t, v.Rollback())
	assert.Equal(t, 4.0, v.AvgRating)
}

func TestBeginBlend_EmptyAverage(t *testing.T) {
	v := New(0, 0)

	require.NoError(t, v.BeginBlend(5))
	assert.Equal(t, 5.0, v.AvgRating)
}

func TestReconcile_OverridesPending(t *testing.T) {
	v := New(4.0, 2)
	require.NoError(t, v.Begin(2))

	v.Reconcile(3.5, 3)
	assert.Equal(t, StateIdle, v.State())
	assert.Equal(t, 3.5, v.AvgRating)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "rolled_back", StateRolledBack.String())
}
