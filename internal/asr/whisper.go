//go:build !nosherpa

package asr

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strings"
	"sync"
	"time"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
	"go.uber.org/zap"
)

// WhisperEngine runs Whisper through sherpa-onnx
type WhisperEngine struct {
	recognizer *sherpa.OfflineRecognizer
	config     *EngineConfig
	logger     *zap.Logger
	mu         sync.Mutex
}

var _ Engine = (*WhisperEngine)(nil)

// NewWhisperEngine loads the model once. It fails with ErrEngineUnavailable
// when the VAD model, ffmpeg or the Whisper model files are missing.
func NewWhisperEngine(config *EngineConfig, logger *zap.Logger) (*WhisperEngine, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Checked before the expensive load so the run fails before any output
	if err := config.CheckVADModel(); err != nil {
		return nil, err
	}
	if err := CheckFFmpeg(); err != nil {
		return nil, err
	}

	files, err := config.ResolveModelFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	// sherpa-onnx decodes Whisper with greedy search only; the beam size is
	// kept for transducer models sharing this config.
	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: config.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  files.Encoder,
				Decoder:  files.Decoder,
				Language: config.Language,
				Task:     "transcribe",
			},
			Tokens:     files.Tokens,
			NumThreads: config.NumThreads,
			Provider:   config.Device,
			Debug:      0,
		},
		DecodingMethod: "greedy_search",
		MaxActivePaths: DefaultDecodeOptions().BeamSize,
	}

	started := time.Now()
	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("%w: failed to create Whisper recognizer for %s", ErrEngineUnavailable, config.Model)
	}

	logger.Debug("whisper model loaded",
		zap.String("model", config.Model),
		zap.String("device", config.Device),
		zap.String("precision", config.Precision),
		zap.String("encoder", files.Encoder),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &WhisperEngine{
		recognizer: recognizer,
		config:     config,
		logger:     logger,
	}, nil
}

// Close releases the recognizer resources
func (e *WhisperEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(e.recognizer)
		e.recognizer = nil
	}
	return nil
}

// Transcribe prepares a lazy transcription of audioPath. ffmpeg is started
// and audio decoded only when the segments are iterated.
func (e *WhisperEngine) Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (*Transcription, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio file: %w", err)
	}
	if opts.ChunkSec <= 0 {
		opts.ChunkSec = 30
	}
	if opts.BeamSize > 1 {
		e.logger.Debug("beam search is not supported for Whisper, decoding greedily",
			zap.Int("beam_size", opts.BeamSize),
			zap.String("file", audioPath),
		)
	}

	source := func(yield func(Segment, error) bool) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.recognizer == nil {
			yield(Segment{}, fmt.Errorf("engine is closed"))
			return
		}

		pcm, err := OpenPCMStream(ctx, audioPath, e.config.SampleRate)
		if err != nil {
			yield(Segment{}, err)
			return
		}
		defer pcm.Close()

		var regions iter.Seq2[speechRegion, error]
		if opts.VADFilter {
			regions = speechRegions(pcm, DefaultVADConfig(e.config.VADModel), e.config.SampleRate)
		} else {
			regions = fixedRegions(pcm, opts.ChunkSec, e.config.SampleRate)
		}

		for region, err := range regions {
			if err != nil {
				yield(Segment{}, err)
				return
			}
			seg, ok := e.decodeRegion(region, opts)
			if !ok {
				continue
			}
			if !yield(seg, nil) {
				return
			}
		}

		// A decode failure in ffmpeg only shows up in its exit status
		if err := pcm.Close(); err != nil {
			yield(Segment{}, err)
		}
	}

	return NewTranscription(source, nil), nil
}

// decodeRegion recognizes one region. ok is false when nothing was recognized.
func (e *WhisperEngine) decodeRegion(region speechRegion, opts DecodeOptions) (Segment, bool) {
	if len(region.Samples) == 0 {
		return Segment{}, false
	}

	started := time.Now()

	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(e.config.SampleRate, region.Samples)
	e.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return Segment{}, false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return Segment{}, false
	}

	end := region.Start + float64(len(region.Samples))/float64(e.config.SampleRate)
	seg := Segment{
		Start:    region.Start,
		End:      end,
		Text:     text,
		Language: normalizeLanguage(result.Lang),
	}
	if opts.WordTimestamps {
		seg.Words = wordsFromTokens(result.Tokens, seg.Start, seg.End)
	}

	e.logger.Debug("segment decoded",
		zap.Float64("start", seg.Start),
		zap.Float64("end", seg.End),
		zap.String("language", seg.Language),
		zap.Int("words", len(seg.Words)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return seg, true
}
