package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendReadByte(t *testing.T) {
	a := New()
	a.Append([]byte("hello"))
	for _, want := range []byte("hello") {
		got, err := a.ReadByte()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := a.ReadByte()
	require.ErrorIs(t, err, ErrNotEnoughData)
}

func TestSnapshotRestore(t *testing.T) {
	a := New()
	a.Append([]byte("abcdef"))
	snap := a.Snapshot()
	_, _ = a.ReadByte()
	_, _ = a.ReadByte()
	a.Restore(snap)
	b, err := a.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('a'), b)
}

func TestPeekDoesNotAdvance(t *testing.T) {
	a := New()
	a.Append([]byte("xyz"))
	p, err := a.PeekByte()
	require.NoError(t, err)
	require.Equal(t, byte('x'), p)
	b, err := a.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('x'), b)
}

func TestSliceAndFastPathAgreeWithGenericPath(t *testing.T) {
	a := New()
	a.Append([]byte("the quick brown fox"))

	start, end := 4, 9 // "quick"
	fast, err := a.Slice(start, end)
	require.NoError(t, err)
	require.True(t, a.HasContiguousArray(start, end))

	var generic []byte
	for i := start; i < end; i++ {
		b, err := a.PeekAt(i)
		require.NoError(t, err)
		generic = append(generic, b)
	}
	require.Equal(t, generic, fast)
	require.Equal(t, "quick", string(fast))
}

func TestIndex(t *testing.T) {
	a := New()
	a.Append([]byte("abc--BOUND--def"))
	idx := a.Index([]byte("--BOUND"))
	require.Equal(t, 3, idx)
}

func TestDiscardAboveThreshold(t *testing.T) {
	a := NewWithThreshold(4)
	a.Append([]byte("abcdefgh"))
	_, _ = a.ReadByte()
	_, _ = a.ReadByte()
	_, _ = a.ReadByte()
	before := a.Cursor()
	a.Discard()
	// cursor (absolute) must be unaffected by discard
	require.Equal(t, before, a.Cursor())
	b, err := a.PeekByte()
	require.NoError(t, err)
	require.Equal(t, byte('d'), b)
}

func TestDiscardNoopUnderThreshold(t *testing.T) {
	a := NewWithThreshold(1000)
	a.Append([]byte("abcdefgh"))
	_, _ = a.ReadByte()
	a.Discard()
	// nothing should be discarded; PeekAt(0) should still resolve
	_, err := a.PeekAt(0)
	require.NoError(t, err)
}
