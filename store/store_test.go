package store

import (
	"os"
	"testing"

	"github.com/badu/formbody/ferr"
	"github.com/stretchr/testify/require"
)

func TestMemorySetAndGetBytes(t *testing.T) {
	m := NewMemory(-1, 0)
	require.NoError(t, m.SetContent([]byte("hello")))
	b, err := m.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
	require.True(t, m.Completed())
}

func TestMemoryAddContentSegmentsNoCopyView(t *testing.T) {
	m := NewMemory(-1, 0)
	require.NoError(t, m.AddContent([]byte("abc"), false))
	require.NoError(t, m.AddContent([]byte("def"), true))
	require.Equal(t, int64(6), m.Size())

	chunk, err := m.GetChunk(3)
	require.NoError(t, err)
	require.Equal(t, "abc", string(chunk))

	chunk, err = m.GetChunk(10)
	require.NoError(t, err)
	require.Equal(t, "def", string(chunk))

	// drained
	chunk, err = m.GetChunk(1)
	require.NoError(t, err)
	require.Empty(t, chunk)
}

func TestMemoryMaxSizeRejectsOverflow(t *testing.T) {
	m := NewMemory(8, 0)
	require.NoError(t, m.AddContent([]byte("12345678"), false))
	err := m.AddContent([]byte("9"), false)
	require.Error(t, err)
	require.True(t, ferr.IsKind(err, ferr.SizeExceeded))
	require.Equal(t, int64(8), m.Size())
}

func TestMemoryOversizedAcrossTwoChunks(t *testing.T) {
	// S6: max_size=8, 9 bytes across two chunks on the second.
	m := NewMemory(8, 0)
	require.NoError(t, m.AddContent([]byte("1234"), false))
	err := m.AddContent([]byte("56789"), false)
	require.Error(t, err)
	require.True(t, ferr.IsKind(err, ferr.SizeExceeded))
	require.Equal(t, int64(4), m.Size()) // unaffected by the failed write
}

func TestMemoryDefinedSizeRejectsOnTerminalWriteWithoutMutation(t *testing.T) {
	// definedSize=3: a terminal AddContent that would push size past it
	// must be rejected before the segment append or the completed flag
	// are committed, per spec.md §7's "not mutated" guarantee.
	m := NewMemory(-1, 3)
	require.NoError(t, m.AddContent([]byte("ab"), false))
	err := m.AddContent([]byte("cd"), true)
	require.Error(t, err)
	require.True(t, ferr.IsKind(err, ferr.SizeExceeded))
	require.Equal(t, int64(2), m.Size())
	require.False(t, m.Completed())

	b, berr := m.GetBytes()
	require.NoError(t, berr)
	require.Equal(t, "ab", string(b))
}

func TestMemorySetContentDefinedSizeRejectionLeavesStoreEmpty(t *testing.T) {
	m := NewMemory(-1, 4)
	err := m.SetContent([]byte("12345"))
	require.Error(t, err)
	require.True(t, ferr.IsKind(err, ferr.SizeExceeded))
	require.Equal(t, int64(0), m.Size())
	require.False(t, m.Completed())
}

func TestDiskRoundTrip(t *testing.T) {
	d := NewDisk(FileUpload, -1, 0)
	require.NoError(t, d.AddContent([]byte("chunk-one-"), false))
	require.NoError(t, d.AddContent([]byte("chunk-two"), true))
	b, err := d.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "chunk-one-chunk-two", string(b))
	require.NoError(t, d.Close())
}

func TestDiskDefinedSizeRejectsOnTerminalWriteWithoutMutation(t *testing.T) {
	d := NewDisk(FileUpload, -1, 3)
	require.NoError(t, d.AddContent([]byte("ab"), false))
	err := d.AddContent([]byte("cd"), true)
	require.Error(t, err)
	require.True(t, ferr.IsKind(err, ferr.SizeExceeded))
	require.Equal(t, int64(2), d.Size())
	require.False(t, d.Completed())

	b, berr := d.GetBytes()
	require.NoError(t, berr)
	require.Equal(t, "ab", string(b))
	require.NoError(t, d.Close())
}

func TestDiskCleanupUnlinksFile(t *testing.T) {
	d := NewDisk(FileUpload, -1, 0)
	require.NoError(t, d.AddContent([]byte("data"), true))
	name := d.file.Name()
	_, err := os.Stat(name)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	_, err = os.Stat(name)
	require.True(t, os.IsNotExist(err))
}

func TestMixedSpillsToDiskAtLimit(t *testing.T) {
	// S4: mixed(limit_size=4), 10 bytes across three chunks.
	mx := NewMixed(FileUpload, 4, -1, 0)
	require.NoError(t, mx.AddContent([]byte("abc"), false))
	require.False(t, mx.OnDisk())
	require.NoError(t, mx.AddContent([]byte("de"), false))
	require.True(t, mx.OnDisk())
	require.NoError(t, mx.AddContent([]byte("fghij"), true))

	b, err := mx.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "abcdefghij", string(b))
	require.Equal(t, int64(10), mx.Size())
	require.NoError(t, mx.Close())
}

func TestMixedPromotionIdempotentBytes(t *testing.T) {
	// invariant 4: migrating then writing the same sequence yields the
	// same bytes as a pure Disk store fed the same writes.
	writes := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}

	mx := NewMixed(FileUpload, 2, -1, 0)
	for i, w := range writes {
		require.NoError(t, mx.AddContent(w, i == len(writes)-1))
	}
	mxBytes, err := mx.GetBytes()
	require.NoError(t, err)

	d := NewDisk(FileUpload, -1, 0)
	for i, w := range writes {
		require.NoError(t, d.AddContent(w, i == len(writes)-1))
	}
	dBytes, err := d.GetBytes()
	require.NoError(t, err)

	require.Equal(t, dBytes, mxBytes)
	require.NoError(t, mx.Close())
	require.NoError(t, d.Close())
}

func TestCountedReleaseToZeroDeletesOnce(t *testing.T) {
	d := NewDisk(FileUpload, -1, 0)
	require.NoError(t, d.AddContent([]byte("x"), true))
	name := d.file.Name()

	c := NewCounted(d)
	c.Retain(1) // refCount now 2
	rem, err := c.Release(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), rem)
	_, err = os.Stat(name)
	require.NoError(t, err) // still alive

	rem, err = c.Release(1)
	require.NoError(t, err)
	require.Equal(t, int64(0), rem)
	_, err = os.Stat(name)
	require.True(t, os.IsNotExist(err))

	// a second release to an already-deleted store must not error
	rem, err = c.Release(1)
	require.NoError(t, err)
	require.Equal(t, int64(-1), rem)
}
