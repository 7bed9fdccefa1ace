package sanitize

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIDStripsDisallowedCharacters(t *testing.T) {
	cases := map[string]string{
		"abc$123-def":      "abc123-def",
		"  abc ":           "abc",
		"'; DROP TABLE --": "DABE--",
		"ABCDEF-abcdef":    "ABCDEF-abcdef",
		"ghijkl":           "",
		"":                 "",
	}

	for input, want := range cases {
		assert.Equal(t, want, ID(input), "input %q", input)
	}
}

func TestIDKeepsValidUUIDIntact(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, ID(id))
}
