// Package config reads process settings from the environment and an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds settings shared by the commands. Flags override these values.
type Config struct {
	ModelsDir       string  // LOCALSCRIBE_MODELS_DIR
	VADModel        string  // LOCALSCRIBE_VAD_MODEL
	Threads         int     // LOCALSCRIBE_THREADS
	AssumedDuration float64 // LOCALSCRIBE_ASSUMED_DURATION
	DBPath          string  // LOCALSCRIBE_DB
	Port            string  // PORT
}

// Default values
const (
	DefaultModelsDir       = "models"
	DefaultThreads         = 4
	DefaultAssumedDuration = 21.80
	DefaultServerDB        = "data/localscribe.db"
	DefaultPort            = "8080"
)

// Load reads .env (skipped when missing) and then the environment
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only
func FromEnv() *Config {
	modelsDir := getEnv("LOCALSCRIBE_MODELS_DIR", DefaultModelsDir)
	return &Config{
		ModelsDir:       modelsDir,
		VADModel:        getEnv("LOCALSCRIBE_VAD_MODEL", filepath.Join(modelsDir, "silero_vad.onnx")),
		Threads:         getEnvInt("LOCALSCRIBE_THREADS", DefaultThreads),
		AssumedDuration: getEnvFloat("LOCALSCRIBE_ASSUMED_DURATION", DefaultAssumedDuration),
		DBPath:          os.Getenv("LOCALSCRIBE_DB"),
		Port:            getEnv("PORT", DefaultPort),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}
