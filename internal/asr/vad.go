//go:build !nosherpa

package asr

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	ModelPath          string  // Path to silero_vad.onnx
	Threshold          float32 // Speech detection threshold (0-1, default 0.5)
	MinSpeechDuration  float32 // Minimum speech duration in seconds (default 0.25)
	MinSilenceDuration float32 // Minimum silence duration to split (default 0.5)
	MaxRegionDuration  float64 // Regions longer than this are split (default 30)
}

// DefaultVADConfig returns default VAD configuration
func DefaultVADConfig(modelPath string) *VADConfig {
	return &VADConfig{
		ModelPath:          modelPath,
		Threshold:          0.5,
		MinSpeechDuration:  0.25,
		MinSilenceDuration: 0.5,
		MaxRegionDuration:  30,
	}
}

// speechRegions runs the PCM stream through silero VAD and yields detected speech
func speechRegions(pcm *PCMStream, config *VADConfig, sampleRate int) iter.Seq2[speechRegion, error] {
	return func(yield func(speechRegion, error) bool) {
		if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
			yield(speechRegion{}, fmt.Errorf("%w: VAD model not found: %s", ErrEngineUnavailable, config.ModelPath))
			return
		}

		vadModelConfig := sherpa.VadModelConfig{
			SileroVad: sherpa.SileroVadModelConfig{
				Model:              config.ModelPath,
				Threshold:          config.Threshold,
				MinSilenceDuration: config.MinSilenceDuration,
				MinSpeechDuration:  config.MinSpeechDuration,
				WindowSize:         512,
			},
			SampleRate: sampleRate,
			NumThreads: 1,
			Debug:      0,
		}

		vad := sherpa.NewVoiceActivityDetector(&vadModelConfig, 30) // 30 seconds buffer
		if vad == nil {
			yield(speechRegion{}, fmt.Errorf("failed to create VAD"))
			return
		}
		defer sherpa.DeleteVoiceActivityDetector(vad)

		maxSamples := int(config.MaxRegionDuration * float64(sampleRate))

		// emit drains detected segments; false means the consumer stopped
		emit := func() bool {
			for !vad.IsEmpty() {
				segment := vad.Front()
				vad.Pop()

				start := float64(segment.Start) / float64(sampleRate)
				for _, region := range splitRegion(start, segment.Samples, maxSamples, sampleRate) {
					if !yield(region, nil) {
						return false
					}
				}
			}
			return true
		}

		for {
			samples, err := pcm.ReadSamples(512)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(speechRegion{}, fmt.Errorf("failed to read audio: %w", err))
				return
			}

			vad.AcceptWaveform(samples)
			if !emit() {
				return
			}
		}

		// Flush remaining
		vad.Flush()
		emit()
	}
}
