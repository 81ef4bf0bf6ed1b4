package urlcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeRFC3986(t *testing.T) {
	got := Escape("a*b+c~d e", ModeRFC3986)
	require.Equal(t, "a%2Ab%20c%7Ed+e", got)
}

func TestEscapeRFC1738(t *testing.T) {
	got := Escape("a*b+c~d e", ModeRFC1738)
	require.Equal(t, "a*b%2Bc~d+e", got)
}

func TestUnescapeRoundTrip(t *testing.T) {
	s := "hello world & more=100%"
	enc := Escape(s, ModeRFC1738)
	got, err := Unescape(enc, "utf-8")
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestUnescapeMalformed(t *testing.T) {
	_, err := Unescape("100%2", "utf-8")
	require.Error(t, err)
	var escErr EscapeError
	require.ErrorAs(t, err, &escErr)
}

func TestUnescapePlus(t *testing.T) {
	got, err := Unescape("a+b", "")
	require.NoError(t, err)
	require.Equal(t, "a b", got)
}
