// Package codec handles large-payload compression and opaque pagination
// tokens for the moderation store.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/MadlinksCoding/modstore/internal/moderr"
)

// Envelope field names for compressed content.
const (
	envCompressed = "_compressed"
	envFormat     = "_format"
	envData       = "data"

	formatGzip = "gzip"
)

// Compress returns v unchanged when its serialized form is at or below
// threshold bytes; otherwise it returns a gzip envelope:
//
//	{ "_compressed": true, "_format": "gzip", "data": "<base64>" }
//
// Values that cannot be serialized are returned unchanged rather than
// failing the write.
func Compress(v any, threshold int) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	if len(raw) <= threshold {
		return v
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return v
	}
	if err := zw.Close(); err != nil {
		return v
	}
	return map[string]any{
		envCompressed: true,
		envFormat:     formatGzip,
		envData:       base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
}

// IsEnvelope reports whether v is a compressed-content envelope.
func IsEnvelope(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	c, ok := m[envCompressed].(bool)
	return ok && c
}

// Decompress reverses Compress. Non-envelope values pass through
// unchanged. A malformed or undecodable envelope fails with
// ContentCorrupted.
func Decompress(v any) (any, error) {
	if !IsEnvelope(v) {
		return v, nil
	}
	m := v.(map[string]any)
	format, _ := m[envFormat].(string)
	if format != formatGzip {
		return nil, moderr.New(moderr.KindContentCorrupted, "decompress",
			fmt.Sprintf("unknown compression format %q", format))
	}
	b64, ok := m[envData].(string)
	if !ok {
		return nil, moderr.New(moderr.KindContentCorrupted, "decompress",
			"compressed envelope has no data field")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, moderr.Wrap(moderr.KindContentCorrupted, "decompress",
			"compressed envelope data is not valid base64", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, moderr.Wrap(moderr.KindContentCorrupted, "decompress",
			"compressed envelope data is not valid gzip", err)
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, moderr.Wrap(moderr.KindContentCorrupted, "decompress",
			"gunzip failed", err)
	}
	var out any
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, moderr.Wrap(moderr.KindContentCorrupted, "decompress",
			"decompressed payload is not valid JSON", err)
	}
	return out, nil
}
