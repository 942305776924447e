package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"localscribe/internal/asr"
	"localscribe/internal/models"
	"localscribe/internal/storage"
)

// ErrStopped is returned for jobs submitted after Stop
var ErrStopped = errors.New("worker stopped")

// Job is one queued transcription
type Job struct {
	AudioPath  string
	SourceName string // Stored as the transcript source; AudioPath when empty
	Options    asr.DecodeOptions
	// OnSegment is called from the worker goroutine as segments are drained
	OnSegment func(asr.Segment)

	ctx  context.Context
	done chan result
}

type result struct {
	transcript *models.Transcript
	err        error
}

// Worker owns the engine and decodes queued jobs one at a time
type Worker struct {
	engine asr.Engine
	config *asr.EngineConfig
	repo   *storage.TranscriptRepository
	logger *zap.Logger

	jobs chan *Job
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewWorker creates a new worker. repo may be nil to skip persistence.
func NewWorker(engine asr.Engine, config *asr.EngineConfig, repo *storage.TranscriptRepository, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		engine: engine,
		config: config,
		repo:   repo,
		logger: logger,
		jobs:   make(chan *Job),
		stop:   make(chan struct{}),
	}
}

// Start begins processing jobs
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("Worker started")
}

// Stop waits for the running job and stops the worker
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// Submit queues a job and waits for it. A failed run is still stored and
// returned together with the error.
func (w *Worker) Submit(ctx context.Context, job *Job) (*models.Transcript, error) {
	job.ctx = ctx
	job.done = make(chan result, 1)

	select {
	case w.jobs <- job:
	case <-w.stop:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Once accepted, wait for the engine to notice a cancelled ctx
	r := <-job.done
	return r.transcript, r.err
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.once.Do(func() { close(w.stop) })
			return
		case <-w.stop:
			return
		case job := <-w.jobs:
			t, err := w.process(job.ctx, job)
			job.done <- result{transcript: t, err: err}
		}
	}
}

func (w *Worker) process(ctx context.Context, job *Job) (*models.Transcript, error) {
	source := job.SourceName
	if source == "" {
		source = job.AudioPath
	}
	w.logger.Info("Processing job", zap.String("source", source))

	t := &models.Transcript{
		SourcePath: source,
		Model:      w.config.Model,
		Device:     w.config.Device,
		Precision:  w.config.Precision,
	}

	runErr := w.transcribe(ctx, job, t)
	if runErr != nil {
		w.logger.Warn("Job failed", zap.String("source", source), zap.Error(runErr))
		t.Status = models.TranscriptStatusFailed
		t.Error = runErr.Error()
		t.Segments = nil
	} else {
		t.Status = models.TranscriptStatusCompleted
	}

	if w.repo != nil {
		// Store even when the request was cancelled
		if err := w.repo.Create(context.WithoutCancel(ctx), t); err != nil {
			w.logger.Error("Failed to save transcript", zap.Error(err))
			if runErr == nil {
				return nil, fmt.Errorf("failed to save transcript: %w", err)
			}
		}
	}

	if runErr == nil {
		w.logger.Info("Job completed",
			zap.String("id", t.ID),
			zap.Int("segments", len(t.Segments)),
			zap.String("language", t.Language),
		)
	}
	return t, runErr
}

func (w *Worker) transcribe(ctx context.Context, job *Job, t *models.Transcript) error {
	tr, err := w.engine.Transcribe(ctx, job.AudioPath, job.Options)
	if err != nil {
		return err
	}

	segments, err := asr.Collect(tr, job.OnSegment)
	if err != nil {
		return err
	}

	info := tr.Info()
	t.Language = info.Language
	t.LanguageProbability = info.LanguageProbability
	t.Segments = segments
	return nil
}
