package checkpoint_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
)

func newSQLiteStore(t *testing.T) (*checkpoint.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	store, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	return store, path
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("a")))

	data, err := store.Load("thread-1", "router")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}

func TestSQLiteStore_LoadNotFound(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	_, err := store.Load("missing", "router")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestSQLiteStore_Overwrite(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("old")))
	require.NoError(t, store.Save("thread-1", "router", []byte("new")))

	data, err := store.Load("thread-1", "router")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)

	infos, err := store.List("thread-1")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestSQLiteStore_Latest(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("first")))
	require.NoError(t, store.Save("thread-1", "retrieval", []byte("second")))
	require.NoError(t, store.Save("thread-1", "answer", []byte("third")))

	data, err := store.Latest("thread-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), data)
}

func TestSQLiteStore_LatestAfterOverwrite(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "answer", []byte("old")))
	require.NoError(t, store.Save("thread-1", "tools", []byte("mid")))
	require.NoError(t, store.Save("thread-1", "answer", []byte("new")))

	data, err := store.Latest("thread-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestSQLiteStore_LatestEmpty(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	_, err := store.Latest("thread-1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	store, path := newSQLiteStore(t)

	require.NoError(t, store.Save("thread-1", "router", []byte("durable")))
	require.NoError(t, store.Save("thread-1", "answer", []byte("latest")))
	require.NoError(t, store.Close())

	reopened, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load("thread-1", "router")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), data)

	latest, err := reopened.Latest("thread-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("latest"), latest)
}

func TestSQLiteStore_ListOrdered(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("1")))
	require.NoError(t, store.Save("thread-1", "retrieval", []byte("22")))
	require.NoError(t, store.Save("thread-1", "answer", []byte("333")))

	infos, err := store.List("thread-1")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "router", infos[0].Step)
	assert.Equal(t, "answer", infos[2].Step)
	assert.Equal(t, int64(3), infos[2].Size)
	assert.False(t, infos[0].Timestamp.IsZero())
}

func TestSQLiteStore_DeleteThread(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("a")))
	require.NoError(t, store.Save("thread-2", "router", []byte("b")))
	require.NoError(t, store.DeleteThread("thread-1"))

	_, err := store.Latest("thread-1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	data, err := store.Latest("thread-2")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	require.NoError(t, store.Save("thread-1", "router", []byte("a")))
	require.NoError(t, store.Delete("thread-1", "router"))

	_, err := store.Load("thread-1", "router")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestSQLiteStore_ClosedOperations(t *testing.T) {
	store, _ := newSQLiteStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	assert.ErrorIs(t, store.Save("t", "s", nil), checkpoint.ErrStoreClosed)
	_, err := store.Load("t", "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	_, err = store.Latest("t")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}

func TestSQLiteStore_ConcurrentSaves(t *testing.T) {
	store, _ := newSQLiteStore(t)
	defer store.Close()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			threadID := fmt.Sprintf("thread-%d", n)
			for j := 0; j < 10; j++ {
				step := fmt.Sprintf("step-%d", j)
				assert.NoError(t, store.Save(threadID, step, []byte(step)))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		infos, err := store.List(fmt.Sprintf("thread-%d", i))
		require.NoError(t, err)
		assert.Len(t, infos, 10)
	}
}
