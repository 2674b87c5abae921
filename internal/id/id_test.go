package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixBook, PrefixUser, PrefixSession, PrefixToken, PrefixInvocation} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, prefix+"-"))

			// Default NanoID is 21 URL-safe characters after the prefix.
			random := strings.TrimPrefix(id, prefix+"-")
			assert.Len(t, random, 21)
			for _, c := range random {
				assert.True(t,
					(c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
						(c >= '0' && c <= '9') || c == '_' || c == '-',
					"character %c should be URL-safe", c)
			}
		})
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id, err := Generate(PrefixBook)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate ID %s", id)
		seen[id] = true
	}
}

func TestMustGenerate(t *testing.T) {
	id := MustGenerate(PrefixInvocation)
	assert.True(t, strings.HasPrefix(id, "inv-"))
	assert.Len(t, id, len(PrefixInvocation)+1+21)
}
