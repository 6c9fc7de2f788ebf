// Package dataurl converts binary content to and from base64 data URLs
// (RFC 2397) so images can be embedded directly in JSON responses.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	scheme       = "data:"
	base64Suffix = ";base64"
)

// ErrMalformed is returned when a string is not a base64 data URL.
var ErrMalformed = errors.New("dataurl: malformed data URL")

// Encode returns data as a base64 data URL tagged with its detected media type.
// Media type parameters such as charset are dropped.
func Encode(data []byte) string {
	return EncodeWithType(DetectType(data), data)
}

// DetectType returns the bare media type of data, without parameters.
func DetectType(data []byte) string {
	mediaType := mimetype.Detect(data).String()
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}

// EncodeWithType returns data as a base64 data URL tagged with mediaType.
func EncodeWithType(mediaType string, data []byte) string {
	var b strings.Builder
	b.Grow(len(scheme) + len(mediaType) + len(base64Suffix) + 1 + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(scheme)
	b.WriteString(mediaType)
	b.WriteString(base64Suffix)
	b.WriteByte(',')
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Decode parses a base64 data URL and returns its media type and payload.
func Decode(s string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, scheme)
	if !ok {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrMalformed, scheme)
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}

	mediaType, ok = strings.CutSuffix(header, base64Suffix)
	if !ok {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrMalformed)
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return mediaType, data, nil
}
