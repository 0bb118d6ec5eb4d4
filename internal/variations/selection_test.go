package variations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanko-field/variants/internal/domain"
)

func TestSelectionSetOperations(t *testing.T) {
	t.Parallel()

	var sel SelectionSet
	require.Zero(t, sel.Len())
	require.False(t, sel.Has("a"))

	sel.Toggle("a")
	sel.Toggle("b")
	require.Equal(t, []string{"a", "b"}, sel.IDs())

	sel.Toggle("a")
	require.Equal(t, []string{"b"}, sel.IDs())

	sel.ReplaceAll([]string{"c", "", "d", "c"})
	require.Equal(t, []string{"c", "d"}, sel.IDs())

	sel.Clear()
	require.Zero(t, sel.Len())
	require.Empty(t, sel.IDs())
}

func TestSelectionSetNilSafe(t *testing.T) {
	t.Parallel()

	var sel *SelectionSet
	require.False(t, sel.Has("a"))
	require.Zero(t, sel.Len())
	require.Empty(t, sel.IDs())
}

func TestSelectionSetPrune(t *testing.T) {
	t.Parallel()

	sel := NewSelectionSet("a", "b", "gone")
	removed := sel.Prune([]domain.Variation{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	require.Equal(t, 1, removed)
	require.Equal(t, []string{"a", "b"}, sel.IDs())

	removed = sel.Prune(nil)
	require.Equal(t, 2, removed)
	require.Zero(t, sel.Len())
}
