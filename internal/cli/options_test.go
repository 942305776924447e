package cli

import (
	"io"
	"testing"

	"localscribe/internal/config"
)

func TestParseArgs(t *testing.T) {
	defaults := &config.Config{ModelsDir: "m", VADModel: "m/vad.onnx", Threads: 3, AssumedDuration: 21.8}

	tests := []struct {
		name string
		mode Mode
		args []string
		want Options
	}{
		{
			name: "defaults",
			mode: ModeTranscribe,
			args: nil,
			want: Options{AudioFile: "test.mp3", Model: "large-v3", ModelsDir: "m", VADModel: "m/vad.onnx", Threads: 3, AssumedDuration: 21.8},
		},
		{
			name: "flags after path",
			mode: ModeTranscribe,
			args: []string{"talk.wav", "--model", "small", "--language", "ja", "--no-gpu", "--debug"},
			want: Options{AudioFile: "talk.wav", Model: "small", Language: "ja", NoGPU: true, Debug: true, ModelsDir: "m", VADModel: "m/vad.onnx", Threads: 3, AssumedDuration: 21.8},
		},
		{
			name: "flags around path",
			mode: ModeProgress,
			args: []string{"--debug", "talk.wav", "--assumed-duration=60"},
			want: Options{AudioFile: "talk.wav", Model: "large-v3", Debug: true, ModelsDir: "m", VADModel: "m/vad.onnx", Threads: 3, AssumedDuration: 60},
		},
		{
			name: "youtube without path",
			mode: ModeTranscribe,
			args: []string{"--youtube", "https://youtu.be/x"},
			want: Options{YouTubeURL: "https://youtu.be/x", Model: "large-v3", ModelsDir: "m", VADModel: "m/vad.onnx", Threads: 3, AssumedDuration: 21.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.mode, tt.args, defaults, io.Discard)
			if err != nil {
				t.Fatalf("ParseArgs: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v\nwant %+v", *got, tt.want)
			}
		})
	}
}

func TestParseArgs_AssumedDurationOnlyForProgress(t *testing.T) {
	if _, err := ParseArgs(ModeTranscribe, []string{"--assumed-duration", "5"}, &config.Config{}, io.Discard); err == nil {
		t.Error("transcribe driver accepted --assumed-duration")
	}
}

func TestOptions_EngineConfig(t *testing.T) {
	opts := Options{Model: "medium", Language: "th", NoGPU: true, ModelsDir: "/models", VADModel: "/models/vad.onnx", Threads: 6}
	cfg := opts.EngineConfig()

	if cfg.Model != "medium" || cfg.Device != "cpu" || cfg.Precision != "int8" || cfg.Language != "th" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ModelsDir != "/models" || cfg.VADModel != "/models/vad.onnx" || cfg.NumThreads != 6 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}
