package config

import (
	"path/filepath"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"LOCALSCRIBE_MODELS_DIR", "LOCALSCRIBE_VAD_MODEL", "LOCALSCRIBE_THREADS",
		"LOCALSCRIBE_ASSUMED_DURATION", "LOCALSCRIBE_DB", "PORT",
	} {
		t.Setenv(key, "")
	}

	c := FromEnv()
	if c.ModelsDir != DefaultModelsDir {
		t.Errorf("ModelsDir = %q", c.ModelsDir)
	}
	if c.VADModel != filepath.Join(DefaultModelsDir, "silero_vad.onnx") {
		t.Errorf("VADModel = %q", c.VADModel)
	}
	if c.Threads != DefaultThreads {
		t.Errorf("Threads = %d", c.Threads)
	}
	if c.AssumedDuration != DefaultAssumedDuration {
		t.Errorf("AssumedDuration = %v", c.AssumedDuration)
	}
	if c.DBPath != "" {
		t.Errorf("DBPath = %q, want empty", c.DBPath)
	}
	if c.Port != DefaultPort {
		t.Errorf("Port = %q", c.Port)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LOCALSCRIBE_MODELS_DIR", "/opt/models")
	t.Setenv("LOCALSCRIBE_VAD_MODEL", "")
	t.Setenv("LOCALSCRIBE_THREADS", "8")
	t.Setenv("LOCALSCRIBE_ASSUMED_DURATION", "60.5")
	t.Setenv("LOCALSCRIBE_DB", "/tmp/x.db")
	t.Setenv("PORT", "9090")

	c := FromEnv()
	if c.ModelsDir != "/opt/models" {
		t.Errorf("ModelsDir = %q", c.ModelsDir)
	}
	if c.VADModel != filepath.Join("/opt/models", "silero_vad.onnx") {
		t.Errorf("VADModel should follow the models dir, got %q", c.VADModel)
	}
	if c.Threads != 8 {
		t.Errorf("Threads = %d", c.Threads)
	}
	if c.AssumedDuration != 60.5 {
		t.Errorf("AssumedDuration = %v", c.AssumedDuration)
	}
	if c.DBPath != "/tmp/x.db" || c.Port != "9090" {
		t.Errorf("DBPath/Port = %q/%q", c.DBPath, c.Port)
	}
}

func TestFromEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("LOCALSCRIBE_THREADS", "-2")
	t.Setenv("LOCALSCRIBE_ASSUMED_DURATION", "soon")

	c := FromEnv()
	if c.Threads != DefaultThreads {
		t.Errorf("Threads = %d", c.Threads)
	}
	if c.AssumedDuration != DefaultAssumedDuration {
		t.Errorf("AssumedDuration = %v", c.AssumedDuration)
	}
}
