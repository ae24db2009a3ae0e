// Package codec implements the transferable encoding used on the wire:
// a data URL carrying base64 payload, the same representation the web
// clients produce with FileReader.readAsDataURL. Encode and Decode are a
// lossless round trip for any byte buffer.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is wrapped by every decode failure so callers can drop a bad
// chunk and keep the stream going.
var ErrDecode = errors.New("codec: malformed transferable data")

const scheme = "data:"

// Encode turns a raw captured buffer into its self-describing transferable
// form. It never fails for valid buffers.
func Encode(mime string, raw []byte) string {
	var b strings.Builder
	b.Grow(len(scheme) + len(mime) + len(";base64,") + base64.StdEncoding.EncodedLen(len(raw)))
	b.WriteString(scheme)
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(raw))
	return b.String()
}

// Decode reverses Encode. Decode(Encode(x)) == x for all valid inputs.
func Decode(s string) (mime string, raw []byte, err error) {
	rest, ok := strings.CutPrefix(s, scheme)
	if !ok {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrDecode, scheme)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: no payload separator", ErrDecode)
	}
	mime, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: not base64 encoded", ErrDecode)
	}
	raw, derr := base64.StdEncoding.DecodeString(payload)
	if derr != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDecode, derr)
	}
	return mime, raw, nil
}
