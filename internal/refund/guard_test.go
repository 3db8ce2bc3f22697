package refund

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := Open(filepath.Join(t.TempDir(), "refunds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGuard_BeginOnlyOnce(t *testing.T) {
	g := newTestGuard(t)

	first, err := g.Begin("ref-1")
	require.NoError(t, err)
	assert.True(t, first)

	// A second claim on the same purchase must be refused, done or not.
	again, err := g.Begin("ref-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, g.MarkDone("ref-1"))
	again, err = g.Begin("ref-1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestGuard_Pending(t *testing.T) {
	g := newTestGuard(t)

	refs, err := g.Pending()
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = g.Begin("ref-1")
	require.NoError(t, err)
	_, err = g.Begin("ref-2")
	require.NoError(t, err)
	require.NoError(t, g.MarkDone("ref-2"))

	refs, err = g.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"ref-1"}, refs)
}

func TestGuard_MarkDoneUnknown(t *testing.T) {
	g := newTestGuard(t)
	assert.ErrorIs(t, g.MarkDone("ghost"), ErrUnknownReference)
}
