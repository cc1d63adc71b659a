package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{" Patio  2 ", "Patio 2"},
		{"a\t\nb", "a b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrimAndNormalize(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeTableIDs(t *testing.T) {
	assert.Equal(t, []string{"T1", "T2", "bar 3"}, NormalizeTableIDs([]string{" T1", "T2", "", "T1 ", "bar  3"}))
	assert.Equal(t, []string{}, NormalizeTableIDs(nil))
}
