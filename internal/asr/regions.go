package asr

import (
	"errors"
	"fmt"
	"io"
	"iter"
)

// speechRegion is a span of audio handed to the recognizer
type speechRegion struct {
	Start   float64 // in seconds
	Samples []float32
}

// fixedRegions yields consecutive windows of chunkSec seconds
func fixedRegions(pcm *PCMStream, chunkSec int, sampleRate int) iter.Seq2[speechRegion, error] {
	return func(yield func(speechRegion, error) bool) {
		for {
			start := pcm.Offset()
			samples, err := pcm.ReadSamples(chunkSec * sampleRate)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(speechRegion{}, fmt.Errorf("failed to read audio: %w", err))
				return
			}
			if !yield(speechRegion{Start: start, Samples: samples}, nil) {
				return
			}
		}
	}
}

// splitRegion cuts a region into pieces no longer than maxSamples
func splitRegion(start float64, samples []float32, maxSamples int, sampleRate int) []speechRegion {
	if maxSamples <= 0 || len(samples) <= maxSamples {
		return []speechRegion{{Start: start, Samples: samples}}
	}

	var regions []speechRegion
	for offset := 0; offset < len(samples); offset += maxSamples {
		end := offset + maxSamples
		if end > len(samples) {
			end = len(samples)
		}
		regions = append(regions, speechRegion{
			Start:   start + float64(offset)/float64(sampleRate),
			Samples: samples[offset:end],
		})
	}
	return regions
}
