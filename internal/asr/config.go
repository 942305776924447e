package asr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Devices passed through to the engine as the execution provider
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Numeric precision modes
const (
	PrecisionFloat16 = "float16"
	PrecisionInt8    = "int8"
)

// DefaultModel is the model identifier used when none is given
const DefaultModel = "large-v3"

// EngineConfig holds the configuration for the Whisper engine
type EngineConfig struct {
	Model      string // Model identifier (large-v3, medium, small, ...) or a model directory
	Device     string // cuda or cpu
	Precision  string // float16 or int8
	ModelsDir  string // Directory holding sherpa-onnx-whisper-<model> directories
	VADModel   string // Path to silero_vad.onnx
	Language   string // ja, en, th, ... or empty for auto-detect
	NumThreads int    // Number of threads for inference
	SampleRate int    // Audio sample rate (typically 16000)
}

// NewEngineConfig returns the configuration for a model on GPU or CPU.
// GPU runs reduced-precision floats, CPU runs int8 quantized weights.
func NewEngineConfig(model string, useGPU bool) *EngineConfig {
	if model == "" {
		model = DefaultModel
	}

	config := &EngineConfig{
		Model:      model,
		Device:     DeviceCPU,
		Precision:  PrecisionInt8,
		ModelsDir:  "models",
		VADModel:   filepath.Join("models", "silero_vad.onnx"),
		NumThreads: 4,
		SampleRate: 16000,
	}
	if useGPU {
		config.Device = DeviceCUDA
		config.Precision = PrecisionFloat16
	}
	return config
}

// ModelDir returns the directory holding the model files
func (c *EngineConfig) ModelDir() string {
	if info, err := os.Stat(c.Model); err == nil && info.IsDir() {
		return c.Model
	}
	return filepath.Join(c.ModelsDir, "sherpa-onnx-whisper-"+c.Model)
}

// CheckVADModel reports a missing silero VAD model as ErrEngineUnavailable
func (c *EngineConfig) CheckVADModel() error {
	if c.VADModel == "" {
		return fmt.Errorf("%w: VAD model path is not set", ErrEngineUnavailable)
	}
	info, err := os.Stat(c.VADModel)
	if err != nil {
		return fmt.Errorf("%w: VAD model not found: %s", ErrEngineUnavailable, c.VADModel)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: VAD model is a directory: %s", ErrEngineUnavailable, c.VADModel)
	}
	return nil
}

// ModelFiles are the resolved paths of a Whisper model
type ModelFiles struct {
	Encoder string
	Decoder string
	Tokens  string
}

// ResolveModelFiles finds the encoder, decoder and tokens files for the
// configured model, preferring int8 weights for int8 precision and full
// weights otherwise.
func (c *EngineConfig) ResolveModelFiles() (*ModelFiles, error) {
	dir := c.ModelDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("model directory not found: %s", dir)
	}

	prefix := strings.TrimPrefix(filepath.Base(dir), "sherpa-onnx-whisper-")

	encoderPath := findModelFile(dir, weightCandidates(prefix, "encoder", c.Precision))
	if encoderPath == "" {
		return nil, fmt.Errorf("encoder model not found in %s", dir)
	}
	decoderPath := findModelFile(dir, weightCandidates(prefix, "decoder", c.Precision))
	if decoderPath == "" {
		return nil, fmt.Errorf("decoder model not found in %s", dir)
	}
	tokensPath := findModelFile(dir, []string{prefix + "-tokens.txt", "tokens.txt"})
	if tokensPath == "" {
		return nil, fmt.Errorf("tokens file not found in %s", dir)
	}

	return &ModelFiles{
		Encoder: encoderPath,
		Decoder: decoderPath,
		Tokens:  tokensPath,
	}, nil
}

// weightCandidates lists file names for one model part in preference order
func weightCandidates(prefix, part, precision string) []string {
	int8Files := []string{
		prefix + "-" + part + ".int8.onnx",
		part + ".int8.onnx",
	}
	fullFiles := []string{
		prefix + "-" + part + ".onnx",
		part + ".onnx",
	}
	if precision == PrecisionInt8 {
		return append(int8Files, fullFiles...)
	}
	return append(fullFiles, int8Files...)
}

// findModelFile searches for a model file in the given directory
// Returns the first matching file path or empty string if not found
func findModelFile(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DecodeOptions are the per-call decoding parameters
type DecodeOptions struct {
	BeamSize       int  // Number of hypotheses kept during search
	WordTimestamps bool // Attach word timing to segments
	VADFilter      bool // Skip non-speech regions with silero VAD
	ChunkSec       int  // Window size when VADFilter is off
}

// DefaultDecodeOptions returns beam 5 with word timestamps and VAD enabled
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		BeamSize:       5,
		WordTimestamps: true,
		VADFilter:      true,
		ChunkSec:       30, // Whisper supports up to 30 seconds natively
	}
}
