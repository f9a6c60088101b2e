package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/MadlinksCoding/modstore/internal/moderr"
)

// tokenVersion is the one-byte format prefix on every encoded token, so
// the wire format can evolve without breaking live paginators.
const tokenVersion byte = 0x01

// tokenPayload is the serialized token body.
type tokenPayload struct {
	LastKey   map[string]any `json:"lastKey"`
	Timestamp int64          `json:"timestamp,omitempty"` // epoch ms at encode time
}

// EncodeToken packs a LastEvaluatedKey into an opaque token. Returns ""
// (no token) when lastKey is empty or cannot be serialized; pagination
// simply ends in that case rather than erroring.
func EncodeToken(lastKey map[string]any, now time.Time) string {
	if len(lastKey) == 0 {
		return ""
	}
	raw, err := json.Marshal(tokenPayload{
		LastKey:   lastKey,
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteByte(tokenVersion)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return ""
	}
	if err := zw.Close(); err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes())
}

// DecodeToken unpacks a pagination token into its ExclusiveStartKey.
//
// Size is checked before any decompression (maxSize bytes of encoded
// input). Tokens older than ttl fail with PaginationTokenExpired; legacy
// tokens that carry no timestamp are accepted.
func DecodeToken(token string, maxSize int, ttl time.Duration, now time.Time) (map[string]any, error) {
	if token == "" {
		return nil, nil
	}
	if len(token) > maxSize {
		return nil, moderr.New(moderr.KindPaginationTokenTooLarge, "decodeToken",
			"pagination token exceeds the size limit").
			WithData(map[string]any{"size": len(token), "max": maxSize})
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, moderr.Wrap(moderr.KindPaginationTokenInvalid, "decodeToken",
			"pagination token is not valid base64", err)
	}
	if len(raw) < 2 || raw[0] != tokenVersion {
		return nil, moderr.New(moderr.KindPaginationTokenInvalid, "decodeToken",
			"pagination token has an unknown format version")
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw[1:]))
	if err != nil {
		return nil, moderr.Wrap(moderr.KindPaginationTokenInvalid, "decodeToken",
			"pagination token is not valid gzip", err)
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, moderr.Wrap(moderr.KindPaginationTokenInvalid, "decodeToken",
			"pagination token failed to decompress", err)
	}
	var p tokenPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, moderr.Wrap(moderr.KindPaginationTokenInvalid, "decodeToken",
			"pagination token payload is malformed", err)
	}
	if p.Timestamp > 0 && now.UnixMilli()-p.Timestamp > ttl.Milliseconds() {
		return nil, moderr.New(moderr.KindPaginationTokenExpired, "decodeToken",
			"pagination token has expired").
			WithData(map[string]any{"ageMs": now.UnixMilli() - p.Timestamp})
	}
	if len(p.LastKey) == 0 {
		return nil, moderr.New(moderr.KindPaginationTokenInvalid, "decodeToken",
			"pagination token carries no last key")
	}
	return p.LastKey, nil
}
