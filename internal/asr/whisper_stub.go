//go:build nosherpa

package asr

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// WhisperEngine is unavailable in builds without sherpa-onnx.
type WhisperEngine struct{}

var _ Engine = (*WhisperEngine)(nil)

// NewWhisperEngine always fails so the driver can exit with a clear diagnostic.
func NewWhisperEngine(config *EngineConfig, logger *zap.Logger) (*WhisperEngine, error) {
	return nil, fmt.Errorf("%w: built with the nosherpa tag, rebuild without it to enable sherpa-onnx", ErrEngineUnavailable)
}

func (e *WhisperEngine) Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (*Transcription, error) {
	return nil, ErrEngineUnavailable
}

func (e *WhisperEngine) Close() error { return nil }
