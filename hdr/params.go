package hdr

import (
	"strings"

	"github.com/badu/formbody/urlcodec"
)

// SplitParameters splits a header value into its leading token and its
// parameters, respecting double-quoted spans (with backslash escapes).
// multiParam selects the separator: Content-Disposition-style headers
// split on ';', everything else (per spec) splits on ','.
func SplitParameters(value string, multiParam bool) (token string, params []string) {
	sep := byte(',')
	if multiParam {
		sep = ';'
	}

	var parts []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\' && inQuotes:
			cur.WriteByte(c)
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == sep && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())

	for i, p := range parts {
		p = TrimString(p)
		if i == 0 {
			token = p
			continue
		}
		params = append(params, p)
	}
	return token, params
}

// ParseParameter splits one "key=value" parameter (as produced by
// SplitParameters) into its key and a cleaned value: each of
// ": , = ; \t" is replaced by a single space, surrounding double quotes
// are stripped, and the result is trimmed.
func ParseParameter(param string) (key, value string, ok bool) {
	i := strings.IndexByte(param, '=')
	if i < 0 {
		return "", "", false
	}
	key = TrimString(param[:i])
	value = cleanParamValue(param[i+1:])
	return key, value, key != ""
}

var paramValueReplacer = strings.NewReplacer(
	":", " ",
	",", " ",
	"=", " ",
	";", " ",
	"\t", " ",
)

func cleanParamValue(v string) string {
	v = TrimString(v)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	v = paramValueReplacer.Replace(v)
	v = strings.Trim(v, `"`)
	return TrimString(v)
}

// ExtendedValue is a decoded RFC 5987/8187 extended parameter value, as
// used by filename* = charset'lang'pct-encoded-value.
type ExtendedValue struct {
	Charset string
	Lang    string
	Value   string
}

// ParseExtendedValue parses a "charset'lang'pct-encoded" triplet and
// percent-decodes the value using the named charset.
func ParseExtendedValue(raw string) (ExtendedValue, error) {
	first := strings.IndexByte(raw, '\'')
	if first < 0 {
		return ExtendedValue{}, errMalformedExtended(raw)
	}
	rest := raw[first+1:]
	second := strings.IndexByte(rest, '\'')
	if second < 0 {
		return ExtendedValue{}, errMalformedExtended(raw)
	}
	charset := raw[:first]
	lang := rest[:second]
	encoded := rest[second+1:]

	decoded, err := urlcodec.UnescapePath(encoded, charset)
	if err != nil {
		return ExtendedValue{}, err
	}
	return ExtendedValue{Charset: charset, Lang: lang, Value: decoded}, nil
}

type extendedValueError string

func (e extendedValueError) Error() string {
	return "hdr: malformed RFC 5987 extended value " + string(e)
}

func errMalformedExtended(raw string) error {
	return extendedValueError(raw)
}
