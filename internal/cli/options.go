package cli

import (
	"flag"
	"fmt"
	"io"

	"localscribe/internal/asr"
	"localscribe/internal/config"
	"localscribe/internal/youtube"
)

// DefaultAudioFile is transcribed when no path is given
const DefaultAudioFile = "test.mp3"

// Mode selects the driver output style
type Mode int

const (
	// ModeTranscribe prints the transcript after draining
	ModeTranscribe Mode = iota
	// ModeProgress also draws a progress line while draining
	ModeProgress
)

func (m Mode) command() string {
	if m == ModeProgress {
		return "transcribe-progress"
	}
	return "transcribe"
}

// Options are the parsed command-line settings
type Options struct {
	AudioFile       string
	Model           string
	Language        string
	NoGPU           bool
	Debug           bool
	ModelsDir       string
	VADModel        string
	Threads         int
	AssumedDuration float64
	DBPath          string
	YouTubeURL      string
	Verbose         bool
}

// ParseArgs parses flags and the optional audio path. Flags may appear before
// or after the path.
func ParseArgs(mode Mode, args []string, defaults *config.Config, stderr io.Writer) (*Options, error) {
	if defaults == nil {
		defaults = config.FromEnv()
	}

	opts := &Options{}
	fs := flag.NewFlagSet(mode.command(), flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.Model, "model", asr.DefaultModel, "Model size to use")
	fs.StringVar(&opts.Language, "language", "", "Spoken language code such as en or ja (default: auto-detect)")
	fs.BoolVar(&opts.NoGPU, "no-gpu", false, "Disable GPU even if available (CPU with int8 weights)")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug mode to show word timestamps")
	fs.StringVar(&opts.ModelsDir, "models-dir", defaults.ModelsDir, "Directory holding sherpa-onnx-whisper-<model> directories")
	fs.StringVar(&opts.VADModel, "vad-model", defaults.VADModel, "Path to silero_vad.onnx")
	fs.IntVar(&opts.Threads, "threads", defaults.Threads, "Number of threads for inference")
	fs.StringVar(&opts.DBPath, "db", defaults.DBPath, "Save the transcript to this SQLite database")
	fs.StringVar(&opts.YouTubeURL, "youtube", "", "Download and transcribe the audio of a YouTube video")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Log engine diagnostics to stderr")
	opts.AssumedDuration = defaults.AssumedDuration
	if mode == ModeProgress {
		fs.Float64Var(&opts.AssumedDuration, "assumed-duration", defaults.AssumedDuration, "Audio length in seconds the progress line measures against")
	}

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [options] [audio_file]\n\n", mode.command())
		fmt.Fprintf(stderr, "Transcribe audio with Whisper (default file: %s)\n\n", DefaultAudioFile)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	var positionals []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positionals = append(positionals, args[0])
		args = args[1:]
	}

	switch len(positionals) {
	case 0:
	case 1:
		opts.AudioFile = positionals[0]
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", positionals[1:])
	}

	if opts.AudioFile != "" && opts.YouTubeURL != "" {
		return nil, fmt.Errorf("give either an audio file or --youtube, not both")
	}
	if opts.YouTubeURL != "" && !youtube.IsVideoURL(opts.YouTubeURL) {
		return nil, fmt.Errorf("not a YouTube video URL: %s", opts.YouTubeURL)
	}
	if opts.AudioFile == "" && opts.YouTubeURL == "" {
		opts.AudioFile = DefaultAudioFile
	}

	return opts, nil
}

// EngineConfig builds the engine configuration for these options
func (o *Options) EngineConfig() *asr.EngineConfig {
	cfg := asr.NewEngineConfig(o.Model, !o.NoGPU)
	if o.ModelsDir != "" {
		cfg.ModelsDir = o.ModelsDir
	}
	if o.VADModel != "" {
		cfg.VADModel = o.VADModel
	}
	if o.Threads > 0 {
		cfg.NumThreads = o.Threads
	}
	cfg.Language = o.Language
	return cfg
}
