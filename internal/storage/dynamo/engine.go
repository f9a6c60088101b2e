package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/MadlinksCoding/modstore/internal/config"
	"github.com/MadlinksCoding/modstore/internal/logging"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/validation"
)

// Engine is the moderation persistence engine. It holds no mutable state;
// all coordination happens through the driver's conditional writes, so a
// single Engine is safe for any number of concurrent callers.
type Engine struct {
	drv  storage.Driver
	cfg  config.Config
	val  *validation.Validator
	log  logging.Logger
	sink moderr.Sink

	now   func() time.Time
	newID func() string

	// validateOnRead re-checks cross-field invariants on records returned
	// by GetModerationRecordByID.
	validateOnRead bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the audit logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSink sets the error sink.
func WithSink(s moderr.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock overrides the wall-clock source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides moderation id generation (tests).
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithValidateOnRead enables invariant re-checking on single-record reads.
func WithValidateOnRead() Option {
	return func(e *Engine) { e.validateOnRead = true }
}

// New builds an Engine over a driver.
func New(drv storage.Driver, cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		drv:   drv,
		cfg:   cfg.Normalize(),
		log:   logging.Nop{},
		now:   time.Now,
		newID: GenerateModerationID,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.val = validation.New(e.cfg, e.sink)
	return e
}

// GenerateModerationID returns a fresh canonical v4 UUID.
func GenerateModerationID() string {
	return uuid.NewString()
}

// withRetry runs one driver call with the transient-error retry policy:
// up to RetryMaxAttempts total attempts with exponential backoff, but only
// for throttling errors. Everything else is permanent. The transient loop
// is never nested inside the optimistic-lock loop's sleep.
func (e *Engine) withRetry(ctx context.Context, origin string, fn func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.cfg.RetryMaxAttempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		if cerr := ctx.Err(); cerr != nil {
			return backoff.Permanent(cerr)
		}
		callErr := fn()
		if callErr == nil {
			return nil
		}
		if errors.Is(callErr, storage.ErrThrottled) {
			return callErr
		}
		return backoff.Permanent(callErr)
	}, bo)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return moderr.Wrap(moderr.KindCancelled, origin, "operation cancelled", err)
	}
	if errors.Is(err, storage.ErrThrottled) {
		return moderr.Report(e.sink, moderr.Wrap(moderr.KindStorageTransient, origin,
			"storage throttled after retries", err))
	}
	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
