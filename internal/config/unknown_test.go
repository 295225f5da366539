package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"url", "url", 0},
		{"uri", "url", 1},
		{"ignore_cach", "ignore_cache", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}

func TestClosestMatch(t *testing.T) {
	known := []string{"jenkins.url", "jenkins.user", "jenkins.token"}

	assert.Equal(t, "jenkins.url", closestMatch("jenkins.uri", known))
	assert.Equal(t, "", closestMatch("completely.unrelated", known))
}
