package part

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "foobar", NormalizeName("  foo\tbar\r\n  "))
	require.Equal(t, "plain", NormalizeName("plain"))
}

func TestAttributeEqualityCaseInsensitive(t *testing.T) {
	f := NewFactory(DefaultPolicy(), nil)
	a, err := f.CreateAttributeWithValue("req-1", "Email", "a@b.com")
	require.NoError(t, err)
	b, err := f.CreateAttributeWithValue("req-1", "EMAIL", "x@y.com")
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.Equal(t, a.HashCode(), b.HashCode())
}

func TestAttributeValueRoundTrip(t *testing.T) {
	f := NewFactory(DefaultPolicy(), nil)
	a, err := f.CreateAttributeWithValue("req-1", "name", "hello world")
	require.NoError(t, err)
	v, err := a.Value()
	require.NoError(t, err)
	require.Equal(t, "hello world", v)
	require.True(t, a.Completed())
}

func TestFileUploadMetadata(t *testing.T) {
	f := NewFactory(DefaultPolicy(), nil)
	fu := f.CreateFileUpload("req-1", "avatar", "pic.png", "image/png", Binary, "", 1024)
	require.NoError(t, fu.AddContent([]byte("PNGDATA"), true))
	b, err := fu.GetBytes()
	require.NoError(t, err)
	require.Equal(t, "PNGDATA", string(b))
	require.Equal(t, "pic.png", fu.FileName())
	require.Equal(t, Binary, fu.ContentTransferEncoding())
}

func TestRegistryCreationOrderAndCleanRequest(t *testing.T) {
	reg := NewRegistry()
	f := NewFactory(DefaultPolicy(), reg)

	a1, _ := f.CreateAttributeWithValue("req-1", "a", "1")
	a2, _ := f.CreateAttributeWithValue("req-1", "b", "2")
	_, _ = f.CreateAttributeWithValue("req-2", "c", "3")

	parts := reg.Parts("req-1")
	require.Len(t, parts, 2)
	require.Same(t, a1, parts[0].(*Attribute))
	require.Same(t, a2, parts[1].(*Attribute))

	require.NoError(t, f.CleanRequest("req-1"))
	require.Empty(t, reg.Parts("req-1"))
	require.Len(t, reg.Parts("req-2"), 1)
}

func TestRegistryRemoveFromCleanup(t *testing.T) {
	reg := NewRegistry()
	f := NewFactory(DefaultPolicy(), reg)

	a, _ := f.CreateAttributeWithValue("req-1", "a", "1")
	f.RemoveFromCleanup("req-1", a)
	require.Empty(t, reg.Parts("req-1"))

	// detached part is still independently usable and releasable.
	require.Equal(t, int64(1), a.counted.RefCount())
}

func TestRegistryCleanAllDrainsEveryPart(t *testing.T) {
	reg := NewRegistry()
	f := NewFactory(DefaultPolicy(), reg)
	for i := 0; i < 5; i++ {
		_, _ = f.CreateAttributeWithValue("req-1", "a", "v")
	}
	require.NoError(t, f.CleanAll())
	require.Empty(t, reg.Parts("req-1"))
}
