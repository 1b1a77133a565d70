package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKindAcceptsAllSixKinds(t *testing.T) {
	for _, name := range []string{"fitacf", "despeck", "combine", "combine_grid", "make_grid", "map_grd"} {
		k, err := ParseKind(name)
		require.NoError(t, err)
		require.Equal(t, name, k.String())
	}
}

func TestParseKindRejectsUnknown(t *testing.T) {
	_, err := ParseKind("not_a_real_task")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKindRejectsEmpty(t *testing.T) {
	_, err := ParseKind("")
	require.ErrorIs(t, err, ErrUnknownKind)
}
