// Package config holds the tunable limits for the moderation store.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for every limit. These are deliberate product decisions; change
// them through Config, not by editing call sites.
const (
	DefaultTableName = "moderations"

	DefaultMaxNoteLength    = 5000
	DefaultMaxNotesPerItem  = 50
	DefaultMaxHistory       = 100
	DefaultMaxReasonLength  = 10000
	DefaultMaxPublicNoteLen = 5000

	DefaultMaxQueryResultSize      = 1000
	DefaultQueryLimit              = 20
	DefaultMaxPaginationIterations = 100
	DefaultMaxTokenSize            = 100 * 1024
	DefaultTokenTTL                = 15 * time.Minute

	DefaultRetryMaxAttempts   = 3
	DefaultLockMaxRetries     = 5
	DefaultLockRetryBaseDelay = 50 * time.Millisecond

	DefaultCompressionThreshold = 1024

	// Timestamp window: submittedAt must fall within
	// [now - PastWindow, now + FutureGrace].
	DefaultPastWindow  = 5 * 365 * 24 * time.Hour
	DefaultFutureGrace = 5 * time.Minute
)

// Config carries every tunable for the engine. Zero fields are replaced
// with defaults by Normalize.
type Config struct {
	TableName string

	MaxNoteLength      int
	MaxNotesPerItem    int
	MaxHistoryEntries  int
	MaxReasonLength    int
	MaxPublicNoteLen   int
	MaxQueryResultSize int
	DefaultQueryLimit  int

	MaxPaginationIterations int
	MaxTokenSize            int
	TokenTTL                time.Duration

	RetryMaxAttempts   int
	LockMaxRetries     int
	LockRetryBaseDelay time.Duration

	CompressionThreshold int

	PastWindow  time.Duration
	FutureGrace time.Duration
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		TableName:               DefaultTableName,
		MaxNoteLength:           DefaultMaxNoteLength,
		MaxNotesPerItem:         DefaultMaxNotesPerItem,
		MaxHistoryEntries:       DefaultMaxHistory,
		MaxReasonLength:         DefaultMaxReasonLength,
		MaxPublicNoteLen:        DefaultMaxPublicNoteLen,
		MaxQueryResultSize:      DefaultMaxQueryResultSize,
		DefaultQueryLimit:       DefaultQueryLimit,
		MaxPaginationIterations: DefaultMaxPaginationIterations,
		MaxTokenSize:            DefaultMaxTokenSize,
		TokenTTL:                DefaultTokenTTL,
		RetryMaxAttempts:        DefaultRetryMaxAttempts,
		LockMaxRetries:          DefaultLockMaxRetries,
		LockRetryBaseDelay:      DefaultLockRetryBaseDelay,
		CompressionThreshold:    DefaultCompressionThreshold,
		PastWindow:              DefaultPastWindow,
		FutureGrace:             DefaultFutureGrace,
	}
}

// Normalize fills zero fields with their defaults and returns the result.
func (c Config) Normalize() Config {
	d := Default()
	if c.TableName == "" {
		c.TableName = d.TableName
	}
	if c.MaxNoteLength <= 0 {
		c.MaxNoteLength = d.MaxNoteLength
	}
	if c.MaxNotesPerItem <= 0 {
		c.MaxNotesPerItem = d.MaxNotesPerItem
	}
	if c.MaxHistoryEntries <= 0 {
		c.MaxHistoryEntries = d.MaxHistoryEntries
	}
	if c.MaxReasonLength <= 0 {
		c.MaxReasonLength = d.MaxReasonLength
	}
	if c.MaxPublicNoteLen <= 0 {
		c.MaxPublicNoteLen = d.MaxPublicNoteLen
	}
	if c.MaxQueryResultSize <= 0 {
		c.MaxQueryResultSize = d.MaxQueryResultSize
	}
	if c.DefaultQueryLimit <= 0 {
		c.DefaultQueryLimit = d.DefaultQueryLimit
	}
	if c.MaxPaginationIterations <= 0 {
		c.MaxPaginationIterations = d.MaxPaginationIterations
	}
	if c.MaxTokenSize <= 0 {
		c.MaxTokenSize = d.MaxTokenSize
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = d.TokenTTL
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = d.RetryMaxAttempts
	}
	if c.LockMaxRetries <= 0 {
		c.LockMaxRetries = d.LockMaxRetries
	}
	if c.LockRetryBaseDelay <= 0 {
		c.LockRetryBaseDelay = d.LockRetryBaseDelay
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = d.CompressionThreshold
	}
	if c.PastWindow <= 0 {
		c.PastWindow = d.PastWindow
	}
	if c.FutureGrace <= 0 {
		c.FutureGrace = d.FutureGrace
	}
	return c
}

// FromEnv returns the default config overridden by MODSTORE_* environment
// variables (e.g. MODSTORE_TABLE_NAME, MODSTORE_TOKEN_TTL).
func FromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("MODSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := Default()
	if s := v.GetString("TABLE_NAME"); s != "" {
		c.TableName = s
	}
	if n := v.GetInt("MAX_NOTE_LENGTH"); n > 0 {
		c.MaxNoteLength = n
	}
	if n := v.GetInt("MAX_NOTES_PER_ITEM"); n > 0 {
		c.MaxNotesPerItem = n
	}
	if n := v.GetInt("MAX_HISTORY_ENTRIES"); n > 0 {
		c.MaxHistoryEntries = n
	}
	if n := v.GetInt("MAX_QUERY_RESULT_SIZE"); n > 0 {
		c.MaxQueryResultSize = n
	}
	if n := v.GetInt("COMPRESSION_THRESHOLD"); n > 0 {
		c.CompressionThreshold = n
	}
	if d := v.GetDuration("TOKEN_TTL"); d > 0 {
		c.TokenTTL = d
	}
	if n := v.GetInt("RETRY_MAX_ATTEMPTS"); n > 0 {
		c.RetryMaxAttempts = n
	}
	if n := v.GetInt("LOCK_MAX_RETRIES"); n > 0 {
		c.LockMaxRetries = n
	}
	return c
}
