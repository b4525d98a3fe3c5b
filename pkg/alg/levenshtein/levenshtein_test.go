package levenshtein_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/aether/pkg/alg/levenshtein"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		first  string
		second string
		want   int
	}{
		{"a", "a", 0},
		{"ab", "aa", 1},
		{"ab", "aaa", 2},
		{"bbb", "a", 3},
		{"kitten", "sitting", 3},
		{"a", "", 1},
		{"", "a", 1},
		{"aa", "aü", 1},
		{"Fön", "Föm", 1},
		{"strip-comment", "strip-comments", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein.Distance(tt.first, tt.second), "%q vs %q", tt.first, tt.second)
		assert.Equal(t, tt.want, levenshtein.Distance(tt.second, tt.first), "%q vs %q", tt.second, tt.first)
	}
}

func TestClosest(t *testing.T) {
	t.Parallel()

	candidates := []string{"oid", "source-location", "strip-test-ids", "strip-comments"}

	got, ok := levenshtein.Closest("strip-testids", candidates, 3)
	assert.True(t, ok)
	assert.Equal(t, "strip-test-ids", got)

	got, ok = levenshtein.Closest("uid", candidates, 3)
	assert.True(t, ok)
	assert.Equal(t, "oid", got)

	_, ok = levenshtein.Closest("minify", candidates, 3)
	assert.False(t, ok)

	_, ok = levenshtein.Closest("x", nil, 3)
	assert.False(t, ok)
}
