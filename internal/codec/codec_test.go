package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadlinksCoding/modstore/internal/moderr"
)

func TestCompressSmallPayloadPassesThrough(t *testing.T) {
	v := map[string]any{"text": "short"}
	got := Compress(v, 1024)
	assert.False(t, IsEnvelope(got))
	assert.Equal(t, v, got)
}

func TestCompressRoundTrip(t *testing.T) {
	big := map[string]any{"text": strings.Repeat("moderate this ", 200)}
	enveloped := Compress(big, 1024)
	require.True(t, IsEnvelope(enveloped))

	env := enveloped.(map[string]any)
	assert.Equal(t, true, env["_compressed"])
	assert.Equal(t, "gzip", env["_format"])
	assert.NotEmpty(t, env["data"])

	back, err := Decompress(enveloped)
	require.NoError(t, err)
	assert.Equal(t, big["text"], back.(map[string]any)["text"])
}

func TestDecompressPassesThroughPlainValues(t *testing.T) {
	for _, v := range []any{nil, "plain", map[string]any{"a": 1}, []any{1, 2}} {
		got, err := Decompress(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecompressCorruptEnvelope(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]any
	}{
		{"unknown format", map[string]any{"_compressed": true, "_format": "zstd", "data": "x"}},
		{"missing data", map[string]any{"_compressed": true, "_format": "gzip"}},
		{"bad base64", map[string]any{"_compressed": true, "_format": "gzip", "data": "!!!"}},
		{"not gzip", map[string]any{"_compressed": true, "_format": "gzip", "data": "aGVsbG8="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompress(tt.env)
			assert.True(t, moderr.IsKind(err, moderr.KindContentCorrupted), "got %v", err)
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	lastKey := map[string]any{"pk": "moderation#u1", "sk": "media#1#x"}

	tok := EncodeToken(lastKey, now)
	require.NotEmpty(t, tok)

	got, err := DecodeToken(tok, 100*1024, 15*time.Minute, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "moderation#u1", got["pk"])
	assert.Equal(t, "media#1#x", got["sk"])
}

func TestTokenEmpty(t *testing.T) {
	assert.Empty(t, EncodeToken(nil, time.Now()))
	assert.Empty(t, EncodeToken(map[string]any{}, time.Now()))

	got, err := DecodeToken("", 100*1024, 15*time.Minute, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenExpiry(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tok := EncodeToken(map[string]any{"pk": "p"}, now)

	// 14 minutes is inside the TTL, 16 minutes past it.
	_, err := DecodeToken(tok, 100*1024, 15*time.Minute, now.Add(14*time.Minute))
	require.NoError(t, err)

	_, err = DecodeToken(tok, 100*1024, 15*time.Minute, now.Add(16*time.Minute))
	assert.True(t, moderr.IsKind(err, moderr.KindPaginationTokenExpired), "got %v", err)
}

func TestTokenTooLarge(t *testing.T) {
	now := time.Now()
	tok := EncodeToken(map[string]any{"pk": strings.Repeat("x", 4096)}, now)
	_, err := DecodeToken(tok, 64, 15*time.Minute, now)
	assert.True(t, moderr.IsKind(err, moderr.KindPaginationTokenTooLarge), "got %v", err)
}

func TestTokenInvalid(t *testing.T) {
	now := time.Now()
	for name, tok := range map[string]string{
		"not base64":      "%%%",
		"wrong version":   "AgEC", // leading byte != 0x01
		"truncated":       "AQ==",
		"garbage payload": EncodeToken(map[string]any{"pk": "p"}, now)[:20],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeToken(tok, 100*1024, 15*time.Minute, now)
			assert.True(t, moderr.IsKind(err, moderr.KindPaginationTokenInvalid), "got %v", err)
		})
	}
}

func TestLegacyTokenWithoutTimestamp(t *testing.T) {
	// Tokens from before timestamps were added never expire.
	tok := encodeRaw(t, `{"lastKey":{"pk":"p"}}`)
	got, err := DecodeToken(tok, 100*1024, time.Nanosecond, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "p", got["pk"])
}

// encodeRaw mirrors the wire format: version byte + gzip(payload),
// base64-url. Used to fabricate legacy tokens.
func encodeRaw(t *testing.T, payload string) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(tokenVersion)
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.URLEncoding.EncodeToString(buf.Bytes())
}
