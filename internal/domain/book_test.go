package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBook_ApplyRating_New(t *testing.T) {
	b := &Book{AvgRating: 4.0, RatingCount: 2}

	b.ApplyRating(2, 0, true)

	assert.InDelta(t, 10.0/3.0, b.AvgRating, 1e-9)
	assert.Equal(t, 3, b.RatingCount)
}

func TestBook_ApplyRating_Correction(t *testing.T) {
	b := &Book{AvgRating: 10.0 / 3.0, RatingCount: 3}

	b.ApplyRating(5, 2, false)

	assert.InDelta(t, 13.0/3.0, b.AvgRating, 1e-9)
	assert.Equal(t, 3, b.RatingCount)
}

func TestBook_ApplyRating_FirstEver(t *testing.T) {
	b := &Book{}

	b.ApplyRating(5, 0, true)

	assert.InDelta(t, 5.0, b.AvgRating, 1e-9)
	assert.Equal(t, 1, b.RatingCount)
}

func TestCopyFields_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b CopyFields
		want bool
	}{
		{
			name: "identical",
			a:    CopyFields{Title: "Dune", Genre: "SciFi", Tags: []string{"space"}},
			b:    CopyFields{Title: "Dune", Genre: "SciFi", Tags: []string{"space"}},
			want: true,
		},
		{
			name: "different genre",
			a:    CopyFields{Title: "Dune", Genre: "Fiction"},
			b:    CopyFields{Title: "Dune", Genre: "Mystery"},
			want: false,
		},
		{
			name: "different tag order",
			a:    CopyFields{Tags: []string{"a", "b"}},
			b:    CopyFields{Tags: []string{"b", "a"}},
			want: false,
		},
		{
			name: "nil vs empty tags",
			a:    CopyFields{},
			b:    CopyFields{Tags: []string{}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestBook_OwnedBy(t *testing.T) {
	b := &Book{AuthorID: "user-1"}
	assert.True(t, b.OwnedBy("user-1"))
	assert.False(t, b.OwnedBy("user-2"))
}
