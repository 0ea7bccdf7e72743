package pebblesnap

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharedref/domain/ownership"
	"sharedref/infra/memory"
)

func openTestStore(t *testing.T, heap *memory.Heap) *Store {
	t.Helper()
	s, err := Open("", &pebble.Options{FS: vfs.NewMem()}, logr.Discard(), ownership.WithAllocator(heap))
	require.NoError(t, err)
	return s
}

func TestStore_SharesSnapshotUntilWrite(t *testing.T) {
	heap := memory.NewHeap()
	s := openTestStore(t, heap)
	require.NoError(t, s.Set([]byte("k"), []byte("v1")))

	a, err := s.Snapshot()
	require.NoError(t, err)
	b, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, ownership.Equal(a, b))
	assert.Equal(t, 2, a.UseCount())
	assert.Equal(t, 1, s.OpenSnapshots())

	require.NoError(t, s.Set([]byte("k"), []byte("v2")))
	c, err := s.Snapshot()
	require.NoError(t, err)
	assert.False(t, ownership.Equal(a, c))
	assert.Equal(t, 2, s.OpenSnapshots())

	old, err := Get(a, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), old)
	fresh, err := Get(c, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), fresh)

	s.Release(&a)
	s.Release(&b)
	assert.Equal(t, 1, s.OpenSnapshots())
	s.Release(&c)
	assert.Equal(t, 0, s.OpenSnapshots())

	require.NoError(t, s.Close())
	assert.Equal(t, uint64(0), heap.Stats().Live())
}

func TestStore_NewSnapshotAfterAllReleased(t *testing.T) {
	s := openTestStore(t, memory.NewHeap())

	a, err := s.Snapshot()
	require.NoError(t, err)
	first := a.Get()
	s.Release(&a)

	b, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotSame(t, first, b.Get())
	s.Release(&b)
	require.NoError(t, s.Close())
}

func TestStore_CloseWithOpenSnapshot(t *testing.T) {
	s := openTestStore(t, memory.NewHeap())
	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	snap, err := s.Snapshot()
	require.NoError(t, err)

	require.NoError(t, s.Delete([]byte("k")))
	assert.ErrorIs(t, s.Close(), ErrSnapshotsOpen)

	v, err := Get(snap, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	s.Release(&snap)
	require.NoError(t, s.Close())
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t, memory.NewHeap())
	snap, err := s.Snapshot()
	require.NoError(t, err)

	_, err = Get(snap, []byte("missing"))
	assert.ErrorIs(t, err, pebble.ErrNotFound)

	s.Release(&snap)
	_, err = Get(snap, []byte("missing"))
	assert.Error(t, err)
	require.NoError(t, s.Close())
}

func TestStore_WritesAfterClose(t *testing.T) {
	s := openTestStore(t, memory.NewHeap())
	require.NoError(t, s.Close())

	require.NotPanics(t, func() {
		assert.ErrorIs(t, s.Set([]byte("k"), []byte("v")), ErrClosed)
		assert.ErrorIs(t, s.Delete([]byte("k")), ErrClosed)
	})
	require.NoError(t, s.Close(), "closing twice is harmless")
}
