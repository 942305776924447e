package asr

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// SupportedFormats lists audio formats ffmpeg is expected to decode
var SupportedFormats = []string{".mp3", ".m4a", ".aac", ".ogg", ".flac", ".wav", ".webm", ".opus", ".mp4"}

// IsSupportedFormat checks if the file extension is a supported audio format
func IsSupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// PCMStream reads 16-bit mono PCM decoded by an ffmpeg subprocess
type PCMStream struct {
	cmd        *exec.Cmd
	reader     *bufio.Reader
	stderr     bytes.Buffer
	sampleRate int
	offset     int64 // samples read so far
	eof        bool
	closed     bool
	waitErr    error
}

// OpenPCMStream starts ffmpeg converting inputPath to raw PCM at sampleRate
func OpenPCMStream(ctx context.Context, inputPath string, sampleRate int) (*PCMStream, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-f", "s16le", // 16-bit signed little-endian PCM
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1", // mono
		"-loglevel", "error",
		"pipe:1", // output to stdout
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	s := &PCMStream{
		cmd:        cmd,
		reader:     bufio.NewReader(stdout),
		sampleRate: sampleRate,
	}
	cmd.Stderr = &s.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return s, nil
}

// Offset returns the position of the next sample in seconds
func (s *PCMStream) Offset() float64 {
	return float64(s.offset) / float64(s.sampleRate)
}

// ReadSamples reads up to n samples. It returns io.EOF once the stream is exhausted.
func (s *PCMStream) ReadSamples(n int) ([]float32, error) {
	buffer := make([]byte, n*2)
	read, err := io.ReadFull(s.reader, buffer)
	if read == 0 {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			s.eof = true
			return nil, io.EOF
		}
		return nil, err
	}

	samples := bytesToFloat32(buffer[:read-read%2])
	s.offset += int64(len(samples))
	return samples, nil
}

// Close waits for ffmpeg and reports a decode failure with its stderr output.
// A stream closed before EOF kills ffmpeg instead.
func (s *PCMStream) Close() error {
	if s.closed {
		return s.waitErr
	}
	s.closed = true

	// Consumer stopped early, the rest of the audio is not wanted
	if !s.eof {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
		return nil
	}

	if err := s.cmd.Wait(); err != nil {
		msg := strings.TrimSpace(s.stderr.String())
		if msg != "" {
			s.waitErr = fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		} else {
			s.waitErr = fmt.Errorf("ffmpeg failed: %w", err)
		}
	}
	return s.waitErr
}

// bytesToFloat32 converts 16-bit PCM bytes to float32 samples
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := 0; i < len(samples); i++ {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
