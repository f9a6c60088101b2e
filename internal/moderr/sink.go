package moderr

import (
	"github.com/rs/zerolog"
)

// Sink receives every validation and consistency failure before it is
// surfaced to the caller. Sink failures must never mask the original error,
// so implementations are expected not to panic and Report ignores panics.
type Sink interface {
	AddError(msg string, meta ErrorMeta)
}

// ErrorMeta carries the structured context for a sink entry.
type ErrorMeta struct {
	Code   string
	Origin string
	Data   map[string]any
}

// Report sends e to the sink and returns e unchanged, so call sites can
// `return moderr.Report(sink, err)`. A nil sink or a panicking sink is
// tolerated; the named return keeps e intact when recover fires.
func Report(sink Sink, e *Error) (out *Error) {
	out = e
	if sink == nil || e == nil {
		return out
	}
	defer func() { _ = recover() }()
	sink.AddError(e.Msg, ErrorMeta{
		Code:   e.Kind.Code(),
		Origin: e.Origin,
		Data:   e.Data,
	})
	return out
}

// ZerologSink writes sink entries through a zerolog logger.
type ZerologSink struct {
	log zerolog.Logger
}

// NewZerologSink wraps a zerolog logger as an error sink.
func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return &ZerologSink{log: log}
}

// AddError implements Sink.
func (s *ZerologSink) AddError(msg string, meta ErrorMeta) {
	ev := s.log.Error().
		Str("code", meta.Code).
		Str("origin", meta.Origin)
	if len(meta.Data) > 0 {
		ev = ev.Interface("data", meta.Data)
	}
	ev.Msg(msg)
}

// CollectingSink accumulates entries in memory for tests.
type CollectingSink struct {
	Entries []CollectedError
}

// CollectedError is one captured sink entry.
type CollectedError struct {
	Msg  string
	Meta ErrorMeta
}

// AddError implements Sink.
func (s *CollectingSink) AddError(msg string, meta ErrorMeta) {
	s.Entries = append(s.Entries, CollectedError{Msg: msg, Meta: meta})
}

// Codes returns the captured codes in order.
func (s *CollectingSink) Codes() []string {
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Meta.Code)
	}
	return out
}
