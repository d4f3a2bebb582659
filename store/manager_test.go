package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerPutGetAcrossEntries(t *testing.T) {
	m := NewMemoryDBManager()
	defer m.Close()

	require.NoError(t, m.Put(HeaderDB, []byte("h1"), []byte("header-one")))
	require.NoError(t, m.Put(CellDataDB, []byte("c1"), []byte("cell-one")))

	v, err := m.Get(HeaderDB, []byte("h1"))
	require.NoError(t, err)
	require.Equal(t, []byte("header-one"), v)

	v, err = m.Get(CellDataDB, []byte("c1"))
	require.NoError(t, err)
	require.Equal(t, []byte("cell-one"), v)

	ok, err := m.Has(HeaderDB, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerBatchIsAtomicOnWrite(t *testing.T) {
	m := NewMemoryDBManager()
	defer m.Close()

	b := m.NewBatch(BodyDB)
	require.NoError(t, b.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, b.Put([]byte("k2"), []byte("v2")))

	_, err := m.Get(BodyDB, []byte("k1"))
	require.Error(t, err, "writes must not be visible before Write()")

	require.NoError(t, b.Write())

	v, err := m.Get(BodyDB, []byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)
}

func TestManagerSnapshotIsIsolatedFromLaterWrites(t *testing.T) {
	m := NewMemoryDBManager()
	defer m.Close()

	require.NoError(t, m.Put(MiscDB, []byte("tip"), []byte("block-1")))

	snap, release, err := m.Snapshot()
	require.NoError(t, err)
	defer release()

	require.NoError(t, m.Put(MiscDB, []byte("tip"), []byte("block-2")))

	v, err := snap.Get(MiscDB, []byte("tip"))
	require.NoError(t, err)
	require.Equal(t, []byte("block-1"), v, "snapshot must not observe writes made after it was taken")

	v, err = m.Get(MiscDB, []byte("tip"))
	require.NoError(t, err)
	require.Equal(t, []byte("block-2"), v)
}

func TestManagerIteratorWithPrefix(t *testing.T) {
	m := NewMemoryDBManager()
	defer m.Close()

	require.NoError(t, m.Put(HeaderDB, []byte("h:0001"), []byte("a")))
	require.NoError(t, m.Put(HeaderDB, []byte("h:0002"), []byte("b")))
	require.NoError(t, m.Put(HeaderDB, []byte("x:0001"), []byte("c")))

	it := m.NewIteratorWithPrefix(HeaderDB, []byte("h:"))
	defer it.Release()

	count := 0
	for it.Next() {
		count++
	}
	require.Equal(t, 2, count)
}
