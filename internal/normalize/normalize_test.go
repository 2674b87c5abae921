package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Reader@Example.COM", "reader@example.com"},
		{"  reader@example.com  ", "reader@example.com"},
		{"STRASSE@example.de", "strasse@example.de"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Email(tt.in), "Email(%q)", tt.in)
	}
}

func TestTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Science Fiction", "science fiction"},
		{"  space   opera  ", "space opera"},
		{"NOIR", "noir"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tag(tt.in), "Tag(%q)", tt.in)
	}
}

func TestTags_DedupAndOrder(t *testing.T) {
	got := Tags([]string{"Mystery", "mystery", "", "  Thriller "})
	assert.Equal(t, []string{"mystery", "thriller"}, got)
}

func TestTags_Empty(t *testing.T) {
	assert.Nil(t, Tags(nil))
	assert.Nil(t, Tags([]string{"", "   "}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", DisplayName("  Ada   Lovelace "))
	// Case is preserved for display names.
	assert.Equal(t, "N. K. Jemisin", DisplayName("N. K. Jemisin"))
}
