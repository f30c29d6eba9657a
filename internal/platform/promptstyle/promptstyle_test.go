package promptstyle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplySystem(t *testing.T) {
	out := ApplySystem("  List the competencies.  ", "json")
	require.True(t, strings.HasPrefix(out, marker))
	require.True(t, strings.HasSuffix(out, "---\nList the competencies."))
	require.Contains(t, out, "no extra keys")

	require.Equal(t, out, ApplySystem(out, "json"))
	require.NotContains(t, ApplySystem("Rate the pair.", "text"), "no extra keys")
	require.Equal(t, "", ApplySystem("   ", "json"))
}
