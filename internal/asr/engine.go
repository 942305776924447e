package asr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrEngineUnavailable means the inference capability is missing from the
// runtime environment. It is not transient.
var ErrEngineUnavailable = errors.New("speech recognition engine is not available")

// Engine transcribes audio files
type Engine interface {
	// Transcribe returns immediately. No audio is processed until the
	// returned segments are iterated.
	Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (*Transcription, error)
	// Close releases the loaded model
	Close() error
}

// CheckFFmpeg reports whether ffmpeg is available for audio decoding
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("%w: ffmpeg not found: please install ffmpeg to decode audio files", ErrEngineUnavailable)
	}
	return nil
}
