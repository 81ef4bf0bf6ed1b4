package urlencoded

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/badu/formbody/buf"
	"github.com/badu/formbody/part"
)

func values(t *testing.T, parts []part.Part) map[string]string {
	t.Helper()
	out := make(map[string]string, len(parts))
	for _, p := range parts {
		a, ok := p.(*part.Attribute)
		require.True(t, ok)
		v, err := a.Value()
		require.NoError(t, err)
		out[a.Name()] = v
	}
	return out
}

func drain(d *Decoder) []part.Part {
	var out []part.Part
	for d.HasNext() {
		p, _ := d.Next()
		out = append(out, p)
	}
	return out
}

func TestSimpleFormSingleChunk(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	require.NoError(t, d.Offer([]byte("a=1&b=hello+world&c=%E4%B8%AD"), true))

	got := values(t, drain(d))
	require.Equal(t, "1", got["a"])
	require.Equal(t, "hello world", got["b"])
	require.Equal(t, "中", got["c"])
}

func TestSplitAcrossChunksMidField(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")

	require.NoError(t, d.Offer([]byte("name=fo"), false))
	require.False(t, d.HasNext())
	require.NoError(t, d.Offer([]byte("obar&x=1"), true))

	got := values(t, drain(d))
	require.Equal(t, "foobar", got["name"])
	require.Equal(t, "1", got["x"])
}

func TestSplitExactlyAtDelimiter(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")

	require.NoError(t, d.Offer([]byte("name=foo"), false))
	require.False(t, d.HasNext())
	require.NoError(t, d.Offer([]byte("&"), false))
	require.True(t, d.HasNext())
	require.NoError(t, d.Offer(nil, true))

	got := values(t, drain(d))
	require.Equal(t, "foo", got["name"])
}

func TestEmptyFieldBetweenAmpersands(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	require.NoError(t, d.Offer([]byte("a=1&&b=2"), true))

	got := values(t, drain(d))
	require.Equal(t, "1", got["a"])
	require.Equal(t, "2", got["b"])
	require.Equal(t, "", got[""])
}

func TestTrailingValueWithNoAmpersand(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	require.NoError(t, d.Offer([]byte("a=1&b=2"), true))

	got := values(t, drain(d))
	require.Equal(t, "1", got["a"])
	require.Equal(t, "2", got["b"])
}

func TestFieldWithNoValueAtEnd(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	require.NoError(t, d.Offer([]byte("justname"), true))

	got := values(t, drain(d))
	_, ok := got["justname"]
	require.True(t, ok)
	require.Equal(t, "", got["justname"])
}

func TestMalformedPercentEscapeIsRecoverable(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	err := d.Offer([]byte("a=%zz"), true)
	require.Error(t, err)
}

func TestDestroyRejectsFurtherOffer(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	d.Destroy()
	err := d.Offer([]byte("a=1"), true)
	require.Error(t, err)
}

// TestDiscardFiresBetweenCompletedFields exercises invariant #6: once a
// field is committed, the bytes behind it must not be retained forever
// across a long, many-chunk body.
func TestDiscardFiresBetweenCompletedFields(t *testing.T) {
	f := part.NewFactory(part.DefaultPolicy(), nil)
	d := New(f, "req-1", "")
	d.acc = buf.NewWithThreshold(16)

	for i := 0; i < 10; i++ {
		chunk := fmt.Sprintf("a%d=v%d&", i, i)
		require.NoError(t, d.Offer([]byte(chunk), false))
		require.LessOrEqual(t, d.acc.Retained(), 16+8,
			"accumulator must discard committed fields during an in-progress decode")
	}
	require.NoError(t, d.Offer([]byte("a10=v10"), true))

	got := values(t, drain(d))
	require.Equal(t, "v0", got["a0"])
	require.Equal(t, "v9", got["a9"])
	require.Equal(t, "v10", got["a10"])
}
