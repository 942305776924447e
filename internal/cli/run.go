// Package cli is the driver shared by the transcribe commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"localscribe/internal/asr"
	"localscribe/internal/config"
	"localscribe/internal/models"
	"localscribe/internal/storage"
	"localscribe/internal/transcript"
	"localscribe/internal/youtube"
)

// ErrInputNotFound means the audio file does not exist
var ErrInputNotFound = errors.New("input file not found")

// Exit codes
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// EngineFactory loads an engine for a configuration
type EngineFactory func(cfg *asr.EngineConfig, logger *zap.Logger) (asr.Engine, error)

// Downloader fetches remote audio and returns a local path
type Downloader func(ctx context.Context, url string) (string, error)

// NewWhisperEngine is the EngineFactory backed by sherpa-onnx
func NewWhisperEngine(cfg *asr.EngineConfig, logger *zap.Logger) (asr.Engine, error) {
	engine, err := asr.NewWhisperEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// DownloadYouTube returns the Downloader backed by the youtube client. It
// draws a download line on progress.
func DownloadYouTube(progress io.Writer) Downloader {
	return func(ctx context.Context, url string) (string, error) {
		path, err := youtube.NewClient().DownloadAudio(ctx, url, youtube.DownloadAudioOptions{
			Progress: downloadProgress(progress),
		})
		fmt.Fprintln(progress)
		return path, err
	}
}

// downloadProgress redraws the download line when the percentage changes.
// Streams without a known size report kilobytes instead.
func downloadProgress(w io.Writer) func(current, total int64) {
	last := -1
	return func(current, total int64) {
		if total <= 0 {
			fmt.Fprintf(w, "\rDownloading: %d KB", current/1024)
			return
		}
		percent := int(current * 100 / total)
		if percent > 100 {
			percent = 100
		}
		if percent == last {
			return
		}
		last = percent
		fmt.Fprintf(w, "\rDownloading: %3d%%", percent)
	}
}

// Runner runs one transcription per invocation
type Runner struct {
	Mode      Mode
	Stdout    io.Writer
	Stderr    io.Writer
	Config    *config.Config
	NewEngine EngineFactory
	Download  Downloader
}

// NewRunner returns a Runner writing to the process stdout and stderr
func NewRunner(mode Mode, cfg *config.Config) *Runner {
	return &Runner{
		Mode:      mode,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Config:    cfg,
		NewEngine: NewWhisperEngine,
		Download:  DownloadYouTube(os.Stderr),
	}
}

// Run parses args, transcribes and prints. It returns the process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	opts, err := ParseArgs(r.Mode, args, r.Config, r.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "Error: %v\n", err)
		return ExitUsage
	}

	logger := zap.NewNop()
	if opts.Verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	if err := r.execute(ctx, opts, logger); err != nil {
		r.report(err, opts)
		return ExitError
	}
	return ExitOK
}

// report prints a diagnostic for each error class
func (r *Runner) report(err error, opts *Options) {
	switch {
	case errors.Is(err, ErrInputNotFound):
		fmt.Fprintf(r.Stderr, "Please place an audio file at %s\n", opts.AudioFile)
	case errors.Is(err, asr.ErrEngineUnavailable):
		fmt.Fprintf(r.Stderr, "\nError: %v\n", err)
		fmt.Fprintf(r.Stderr, "\nHint: install ffmpeg and download the model first:\n")
		fmt.Fprintf(r.Stderr, "  curl -SL -O https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/sherpa-onnx-whisper-%s.tar.bz2\n", opts.Model)
		fmt.Fprintf(r.Stderr, "  tar xvf sherpa-onnx-whisper-%s.tar.bz2 -C %s/\n", opts.Model, opts.ModelsDir)
	default:
		fmt.Fprintf(r.Stderr, "\nError: %v\n", err)
	}
}

func (r *Runner) execute(ctx context.Context, opts *Options, logger *zap.Logger) error {
	audioPath := opts.AudioFile
	if opts.YouTubeURL != "" {
		fmt.Fprintf(r.Stdout, "Downloading audio from %s...\n", opts.YouTubeURL)
		path, err := r.Download(ctx, opts.YouTubeURL)
		if err != nil {
			return fmt.Errorf("failed to download audio: %w", err)
		}
		defer os.Remove(path)
		audioPath = path
		opts.AudioFile = path
	}

	// Check the input before paying for the model load
	if _, err := os.Stat(audioPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, audioPath)
		}
		return fmt.Errorf("failed to read input: %w", err)
	}

	cfg := opts.EngineConfig()

	fmt.Fprintf(r.Stdout, "Loading model %s (device=%s, compute_type=%s)...", cfg.Model, cfg.Device, cfg.Precision)
	engine, err := r.NewEngine(cfg, logger)
	if err != nil {
		fmt.Fprintln(r.Stdout)
		return err
	}
	defer engine.Close()
	fmt.Fprintln(r.Stdout, " Done!")

	if r.Mode == ModeTranscribe {
		fmt.Fprintf(r.Stdout, "Transcribing %s...\n", audioPath)
	}

	tr, err := engine.Transcribe(ctx, audioPath, asr.DefaultDecodeOptions())
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	// Draining runs the recognition
	var segments []asr.Segment
	style := transcript.Spaced
	if r.Mode == ModeProgress {
		style = transcript.Compact
		progress := transcript.NewProgress(r.Stdout, opts.AssumedDuration)
		progress.Start()
		segments, err = asr.Collect(tr, func(seg asr.Segment) {
			progress.Observe(seg.End)
		})
		if err != nil {
			fmt.Fprintln(r.Stdout)
			return fmt.Errorf("transcription failed: %w", err)
		}
		progress.Finish()
	} else {
		segments, err = asr.Collect(tr, nil)
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}
	}

	info := tr.Info()
	logger.Info("transcription finished",
		zap.String("file", audioPath),
		zap.Int("segments", len(segments)),
		zap.String("language", info.Language),
	)

	formatter := transcript.Formatter{Debug: opts.Debug, Style: style}
	if err := formatter.Write(r.Stdout, info, segments); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	if opts.DBPath != "" {
		id, err := save(ctx, opts.DBPath, &models.Transcript{
			SourcePath:          audioPath,
			Model:               cfg.Model,
			Device:              cfg.Device,
			Precision:           cfg.Precision,
			Language:            info.Language,
			LanguageProbability: info.LanguageProbability,
			Segments:            segments,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Stderr, "Saved transcript %s to %s\n", id, opts.DBPath)
	}

	return nil
}

// save stores a finished transcript and returns its ID
func save(ctx context.Context, dbPath string, t *models.Transcript) (string, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if err := storage.NewTranscriptRepository(db).Create(ctx, t); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}
	return t.ID, nil
}
