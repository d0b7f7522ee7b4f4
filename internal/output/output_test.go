package output_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/perfjit/internal/output"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		filled  int
	}{
		{"empty", 0, 0},
		{"half", 50, 5},
		{"full", 100, 10},
		{"clamped", 150, 10},
		{"negative", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := output.ProgressBar(tt.percent, 10)
			require.Equal(t, tt.filled, strings.Count(bar, "█"))
			require.Equal(t, 10, len([]rune(bar)))
		})
	}
}

func TestPrintRight(t *testing.T) {
	var buf bytes.Buffer
	output.PrintRight(&buf, "status")

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\r"))
	require.True(t, strings.HasSuffix(out, "status"))
	require.Equal(t, 81, len(out))
}

func TestPrettyLoadStatus(t *testing.T) {
	s := output.PrettyLoadStatus(25, 12)
	require.Contains(t, s, "25.00%")
	require.Contains(t, s, "Functions/s:   12")
}
