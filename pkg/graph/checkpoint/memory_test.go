package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("a")))

	data, err := store.Load("thread-1", "router")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}

func TestMemoryStore_LoadNotFound(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	_, err := store.Load("missing", "router")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestMemoryStore_Latest(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("first")))
	require.NoError(t, store.Save("thread-1", "retrieval", []byte("second")))
	require.NoError(t, store.Save("thread-1", "answer", []byte("third")))

	data, err := store.Latest("thread-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), data)
}

func TestMemoryStore_LatestAfterOverwrite(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "answer", []byte("old")))
	require.NoError(t, store.Save("thread-1", "tools", []byte("mid")))
	// Overwriting "answer" must advance the sequence past "tools".
	require.NoError(t, store.Save("thread-1", "answer", []byte("new")))

	data, err := store.Latest("thread-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestMemoryStore_LatestEmpty(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	_, err := store.Latest("thread-1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestMemoryStore_ListOrdered(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("1")))
	require.NoError(t, store.Save("thread-1", "retrieval", []byte("2")))
	require.NoError(t, store.Save("thread-1", "answer", []byte("3")))

	infos, err := store.List("thread-1")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "router", infos[0].Step)
	assert.Equal(t, "retrieval", infos[1].Step)
	assert.Equal(t, "answer", infos[2].Step)
	assert.Less(t, infos[0].Sequence, infos[2].Sequence)
}

func TestMemoryStore_ListEmpty(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	infos, err := store.List("missing")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestMemoryStore_ThreadIsolation(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("thread-a", "router", []byte("a")))
	require.NoError(t, store.Save("thread-b", "router", []byte("b")))

	a, err := store.Latest("thread-a")
	require.NoError(t, err)
	b, err := store.Latest("thread-b")
	require.NoError(t, err)

	assert.Equal(t, []byte("a"), a)
	assert.Equal(t, []byte("b"), b)
}

func TestMemoryStore_DeleteThread(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("a")))
	require.NoError(t, store.DeleteThread("thread-1"))

	_, err := store.Latest("thread-1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ClosedOperations(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Save("t", "s", nil), checkpoint.ErrStoreClosed)
	_, err := store.Load("t", "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	_, err = store.Latest("t")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	_, err = store.List("t")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}

func TestMemoryStore_DataCopied(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	src := []byte("original")
	require.NoError(t, store.Save("thread-1", "router", src))
	src[0] = 'X'

	data, err := store.Load("thread-1", "router")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}
