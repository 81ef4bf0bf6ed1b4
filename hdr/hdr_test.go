package hdr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitParametersQuoted(t *testing.T) {
	token, params := SplitParameters(`form-data; name="a;b"; filename="f,x.txt"`, true)
	require.Equal(t, "form-data", token)
	require.Equal(t, []string{`name="a;b"`, `filename="f,x.txt"`}, params)
}

func TestSplitParametersComma(t *testing.T) {
	token, params := SplitParameters(`multipart/mixed, boundary=xyz`, false)
	require.Equal(t, "multipart/mixed", token)
	require.Equal(t, []string{"boundary=xyz"}, params)
}

func TestParseParameter(t *testing.T) {
	key, value, ok := ParseParameter(`name="field1"`)
	require.True(t, ok)
	require.Equal(t, "name", key)
	require.Equal(t, "field1", value)
}

func TestParseParameterCleaning(t *testing.T) {
	key, value, ok := ParseParameter("name=f:o,o=b;a\tr")
	require.True(t, ok)
	require.Equal(t, "name", key)
	require.Equal(t, "f o o b a r", value)
}

func TestParseExtendedValueUTF8(t *testing.T) {
	ev, err := ParseExtendedValue("utf-8''%E4%B8%AD%E6%96%87")
	require.NoError(t, err)
	require.Equal(t, "utf-8", ev.Charset)
	require.Equal(t, "", ev.Lang)
	require.Equal(t, "中文", ev.Value)
}

func TestCanonicalHeaderKey(t *testing.T) {
	require.Equal(t, ContentDisposition, CanonicalHeaderKey("content-disposition"))
	require.Equal(t, "Content-Type", CanonicalHeaderKey("CONTENT-TYPE"))
}

func TestHeaderGetSetDel(t *testing.T) {
	h := Header{}
	h.Set(ContentType, "text/plain")
	require.Equal(t, "text/plain", h.Get("content-type"))
	h.Add(ContentType, "charset=utf-8")
	require.Len(t, h[ContentType], 2)
	h.Del(ContentType)
	require.Equal(t, "", h.Get(ContentType))
}
