//go:build !nosherpa

package asr

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Local test only: needs ffmpeg and models/sherpa-onnx-whisper-tiny
func TestWhisperEngine_Transcribe(t *testing.T) {
	audioPath := "testdata/hello.wav"
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		t.Skip("Test audio not found: " + audioPath + " (local test only)")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found")
	}

	config := NewEngineConfig("tiny", false)
	config.ModelsDir = "../../models"
	config.VADModel = "../../models/silero_vad.onnx"
	if _, err := os.Stat(config.ModelDir()); os.IsNotExist(err) {
		t.Skip("Model not found: " + config.ModelDir())
	}
	if _, err := os.Stat(config.VADModel); os.IsNotExist(err) {
		t.Skip("VAD model not found: " + config.VADModel)
	}

	engine, err := NewWhisperEngine(config, nil)
	if err != nil {
		t.Fatalf("NewWhisperEngine: %v", err)
	}
	defer engine.Close()

	tr, err := engine.Transcribe(context.Background(), audioPath, DefaultDecodeOptions())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	segments, err := Collect(tr, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("no segments")
	}

	var prevEnd float64
	for i, seg := range segments {
		if seg.Start < prevEnd || seg.End < seg.Start {
			t.Errorf("segment %d out of order: %+v", i, seg)
		}
		prevEnd = seg.End
		t.Logf("[%.2fs -> %.2fs] %s", seg.Start, seg.End, seg.Text)
	}

	info := tr.Info()
	if info.Language == "" || info.LanguageProbability <= 0 {
		t.Errorf("info = %+v", info)
	}
}

// Runs without ffmpeg or models: the VAD model is checked first
func TestNewWhisperEngine_MissingVADModel(t *testing.T) {
	config := NewEngineConfig("large-v3", false)
	config.ModelsDir = filepath.Join(t.TempDir(), "models")
	config.VADModel = filepath.Join(config.ModelsDir, "silero_vad.onnx")

	engine, err := NewWhisperEngine(config, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("error = %v, want ErrEngineUnavailable", err)
	}
	if engine != nil {
		t.Error("engine returned with a missing VAD model")
	}
	if !strings.Contains(err.Error(), "VAD model not found") {
		t.Errorf("error does not name the cause: %v", err)
	}
}

func TestNewWhisperEngine_MissingModel(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found")
	}

	dir := t.TempDir()
	config := NewEngineConfig("large-v3", false)
	config.ModelsDir = filepath.Join(dir, "models")
	config.VADModel = filepath.Join(dir, "silero_vad.onnx")
	if err := os.WriteFile(config.VADModel, []byte("onnx"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewWhisperEngine(config, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("error = %v, want ErrEngineUnavailable", err)
	}
}
