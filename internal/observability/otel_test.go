package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	require.Equal(t, map[string]string{"authorization": "Bearer x", "team": "edu"},
		ParseHeaders(" authorization=Bearer x, team=edu ,broken,=v,k="))
	require.Nil(t, ParseHeaders(""))
}

func TestClampRatio(t *testing.T) {
	require.Equal(t, 0.0, clampRatio(-1))
	require.Equal(t, 1.0, clampRatio(3))
	require.Equal(t, 0.25, clampRatio(0.25))
}
