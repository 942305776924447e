// Package asrtest provides an in-memory asr.Engine for tests.
package asrtest

import (
	"context"
	"sync"

	"localscribe/internal/asr"
)

// Engine replays fixed segments. Err, when set, is yielded after the segments.
type Engine struct {
	Segments []asr.Segment
	Info     *asr.Info
	Err      error

	mu    sync.Mutex
	calls []Call
	// Closed is set by Close
	Closed bool
}

// Call records one Transcribe invocation
type Call struct {
	AudioPath string
	Options   asr.DecodeOptions
}

var _ asr.Engine = (*Engine)(nil)

func (e *Engine) Transcribe(ctx context.Context, audioPath string, opts asr.DecodeOptions) (*asr.Transcription, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{AudioPath: audioPath, Options: opts})
	e.mu.Unlock()

	source := func(yield func(asr.Segment, error) bool) {
		for _, seg := range e.Segments {
			if err := ctx.Err(); err != nil {
				yield(asr.Segment{}, err)
				return
			}
			if !yield(seg, nil) {
				return
			}
		}
		if e.Err != nil {
			yield(asr.Segment{}, e.Err)
		}
	}
	return asr.NewTranscription(source, e.Info), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// Calls returns the recorded Transcribe invocations
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Demo returns the two-segment English transcript used across tests
func Demo() *Engine {
	return &Engine{
		Segments: []asr.Segment{
			{Start: 0.00, End: 1.50, Text: "hello", Words: []asr.Word{{Text: "hello", Start: 0.00, End: 1.50}}},
			{Start: 1.50, End: 3.00, Text: "world", Words: []asr.Word{{Text: "world", Start: 1.50, End: 3.00}}},
		},
		Info: &asr.Info{Language: "en", LanguageProbability: 0.97},
	}
}
