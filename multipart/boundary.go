package multipart

import (
	"strings"

	"github.com/badu/formbody/hdr"
)

// ContentTypeInfo is the result of inspecting a Content-Type header
// value, per spec.md §4.E's boundary-extraction step and §4.G's
// dispatcher routing decision.
type ContentTypeInfo struct {
	MediaType string
	Boundary  string
	Charset   string
}

// ParseContentType extracts the media type, boundary (for
// multipart/form-data), and charset parameters from a Content-Type
// header value. Quoted parameter values are unquoted.
func ParseContentType(contentType string) ContentTypeInfo {
	token, params := hdr.SplitParameters(contentType, true)
	info := ContentTypeInfo{MediaType: strings.ToLower(strings.TrimSpace(token))}
	for _, p := range params {
		k, v, ok := hdr.ParseParameter(p)
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "boundary":
			info.Boundary = v
		case "charset":
			info.Charset = v
		}
	}
	return info
}

// IsMultipartFormData reports whether info names multipart/form-data
// with a usable boundary.
func (info ContentTypeInfo) IsMultipartFormData() bool {
	return info.MediaType == "multipart/form-data" && info.Boundary != ""
}
