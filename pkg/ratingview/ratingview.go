// Package ratingview provides the client-side optimistic view of a book's
// average rating. After submitting a rating, a client can show a locally
// recomputed average immediately instead of waiting for the server's
// aggregate to land, then reconcile with the authoritative value on the
// next read.
package ratingview

import (
	"errors"
	"fmt"
)

// State describes where an optimistic update currently stands.
type State int

// View states.
const (
	// StateIdle means the view reflects the last authoritative read.
	StateIdle State = iota
	// StatePending means an optimistic value is displayed while the rating
	// submission is in flight.
	StatePending
	// StateCommitted means the submission succeeded; the optimistic value
	// remains provisional until the next authoritative read.
	StateCommitted
	// StateRolledBack means the submission failed and the view was restored
	// to its pre-optimistic values.
	StateRolledBack
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors returned by view transitions.
var (
	ErrUpdateInFlight = errors.New("an optimistic update is already in flight")
	ErrNoUpdate       = errors.New("no optimistic update in flight")
	ErrInvalidValue   = errors.New("rating value must be between 1 and 5")
)

// View holds a locally cached rating aggregate for one book.
// It is not safe for concurrent use; clients own one view per displayed book.
type View struct {
	AvgRating   float64
	RatingCount int

	// OwnValue is the viewer's prior rating, if known.
	OwnValue int
	HasOwn   bool

	state State

	// Snapshot for rollback.
	prevAvg   float64
	prevCount int
	prevOwn   int
	prevHas   bool
}

// New creates a view from an authoritative read where the viewer has not
// rated the book, or their prior rating is unknown.
func New(avgRating float64, ratingCount int) *View {
	return &View{
		AvgRating:   avgRating,
		RatingCount: ratingCount,
		state:       StateIdle,
	}
}

// NewWithOwnRating creates a view from an authoritative read that included
// the viewer's existing rating.
func NewWithOwnRating(avgRating float64, ratingCount, ownValue int) *View {
	return &View{
		AvgRating:   avgRating,
		RatingCount: ratingCount,
		OwnValue:    ownValue,
		HasOwn:      true,
		state:       StateIdle,
	}
}

// State returns the current transition state.
func (v *View) State() State { return v.state }

// Begin applies an optimistic rating locally and marks the view pending.
// The recomputation mirrors the server's incremental mean: a first rating
// extends the mean, a correction replaces the viewer's prior value. When
// the view has a rating count of zero the value simply becomes the average.
func (v *View) Begin(value int) error {
	if value < 1 || value > 5 {
		return ErrInvalidValue
	}
	if v.state == StatePending {
		return ErrUpdateInFlight
	}

	v.prevAvg = v.AvgRating
	v.prevCount = v.RatingCount
	v.prevOwn = v.OwnValue
	v.prevHas = v.HasOwn

	switch {
	case v.HasOwn && v.RatingCount > 0:
		// Correction: count unchanged
		v.AvgRating = (v.AvgRating*float64(v.RatingCount) - float64(v.OwnValue) + float64(value)) / float64(v.RatingCount)
	case v.RatingCount > 0:
		v.AvgRating = (v.AvgRating*float64(v.RatingCount) + float64(value)) / float64(v.RatingCount+1)
		v.RatingCount++
	default:
		v.AvgRating = float64(value)
		v.RatingCount = 1
	}

	v.OwnValue = value
	v.HasOwn = true
	v.state = StatePending
	return nil
}

// BeginBlend applies a simplified two-point blend for views where the rating
// count is unknown (e.g., a summary card that only carries the average).
// The blended value is provisional display data only.
func (v *View) BeginBlend(value int) error {
	if value < 1 || value > 5 {
		return ErrInvalidValue
	}
	if v.state == StatePending {
		return ErrUpdateInFlight
	}

	v.prevAvg = v.AvgRating
	v.prevCount = v.RatingCount
	v.prevOwn = v.OwnValue
	v.prevHas = v.HasOwn

	if v.AvgRating == 0 {
		v.AvgRating = float64(value)
	} else {
		v.AvgRating = (v.AvgRating + float64(value)) / 2
	}
	v.OwnValue = value
	v.HasOwn = true
	v.state = StatePending
	return nil
}

// Commit marks the in-flight submission as accepted. The optimistic values
// stay on display but remain provisional until Reconcile.
func (v *View) Commit() error {
	if v.state != StatePending {
		return ErrNoUpdate
	}
	v.state = StateCommitted
	return nil
}

// Rollback restores the pre-optimistic values after a failed submission.
func (v *View) Rollback() error {
	if v.state != StatePending {
		return ErrNoUpdate
	}
	v.AvgRating = v.prevAvg
	v.RatingCount = v.prevCount
	v.OwnValue = v.prevOwn
	v.HasOwn = v.prevHas
	v.state = StateRolledBack
	return nil
}

// Reconcile overwrites the view with an authoritative read. It is valid in
// every state: authoritative data always wins, including over a pending
// optimistic value.
func (v *View) Reconcile(avgRating float64, ratingCount int) {
	v.AvgRating = avgRating
	v.RatingCount = ratingCount
	v.state = StateIdle
}
