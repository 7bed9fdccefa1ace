package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	table := Table{
		Headers: []string{"Day", "Start", "End", "Activity"},
		Rows: []map[string]string{
			{"Day": "Monday", "Start": "09:00", "End": "09:30", "Activity": "Math"},
			{"Day": "Monday", "Start": "09:30", "End": "10:00", "Activity": "Reading"},
		},
	}

	out, err := RenderCSV(table)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Start,End,Activity", lines[0])
	assert.Contains(t, lines[1], "Math")
}

func TestRenderCSVRequiresHeaders(t *testing.T) {
	_, err := RenderCSV(Table{})
	require.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	table := Table{
		Title:   "Weekly Schedule",
		Headers: []string{"Day", "Activity"},
		Rows:    []map[string]string{{"Day": "Monday", "Activity": "Math"}},
	}

	out, err := RenderPDF(table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
