package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ah-its-andy/img2webp/internal/config"
	"github.com/ah-its-andy/img2webp/internal/converter"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/ah-its-andy/img2webp/internal/livelog"
	"github.com/ah-its-andy/img2webp/internal/naming"
	"github.com/ah-its-andy/img2webp/internal/utils"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrDeletion marks a failure to remove a verified original.
var ErrDeletion = errors.New("deletion failed")

// Worker drives files through convert, verify and delete, one at a time.
type Worker struct {
	conv         converter.Converter
	resolver     *naming.Resolver
	quality      int
	autoOrient   bool
	md5ChunkSize int64

	verify  func(path string) error
	remove  func(path string) error
	history History
	live    *livelog.Manager

	mu       sync.Mutex
	produced map[string]struct{}
}

// Option customizes a Worker.
type Option func(*Worker)

// WithHistory records runs and task outcomes to h.
func WithHistory(h History) Option {
	return func(w *Worker) { w.history = h }
}

// WithLiveLog publishes in-flight job states to m.
func WithLiveLog(m *livelog.Manager) Option {
	return func(w *Worker) { w.live = m }
}

// WithVerifier replaces converter.VerifyFile.
func WithVerifier(fn func(path string) error) Option {
	return func(w *Worker) { w.verify = fn }
}

// WithRemover replaces os.Remove for deleting originals.
func WithRemover(fn func(path string) error) Option {
	return func(w *Worker) { w.remove = fn }
}

// New creates a Worker using cfg's quality level and orientation setting.
func New(cfg *config.Config, conv converter.Converter, opts ...Option) *Worker {
	w := &Worker{
		conv:         conv,
		resolver:     naming.NewResolver(conv.TargetFormat()),
		quality:      cfg.QualityLevel,
		autoOrient:   cfg.AutoOrient,
		md5ChunkSize: cfg.MD5ChunkSize,
		verify:       converter.VerifyFile,
		remove:       os.Remove,
		produced:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run discovers every supported image under root and processes them in
// order. Per-file failures are reported in the summary; the returned error
// is non-nil only when root cannot be walked. A cancelled ctx stops the run
// between files.
func (w *Worker) Run(ctx context.Context, root string) (RunSummary, error) {
	files, err := Discover(root)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{RunID: uuid.NewString(), TotalFound: len(files)}
	run := w.startRun(summary.RunID, root, "convert")
	log.Info().Str("run_id", summary.RunID).Str("root", root).Int("total", len(files)).Msg("Starting conversion")

	for _, path := range files {
		if ctx.Err() != nil {
			summary.Interrupted = true
			log.Warn().Int("processed", summary.Processed).Int("total", summary.TotalFound).Msg("Run interrupted")
			break
		}
		w.ProcessFile(ctx, summary.RunID, path, &summary)
	}

	w.finishRun(run, &summary)
	log.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int("deleted", summary.Deleted).
		Msg("Conversion finished")
	return summary, nil
}

// ProcessFile runs one file through the job lifecycle and folds the outcome
// into s. It returns the terminal state. A conversion abandoned because ctx
// was cancelled is not counted and returns StateDiscovered.
func (w *Worker) ProcessFile(ctx context.Context, runID, path string, s *RunSummary) JobState {
	start := time.Now()
	state := StateDiscovered
	task := &db.TaskHistory{RunID: runID, SourcePath: path}
	if w.live != nil {
		w.live.Start(path, string(state))
		defer w.live.End(path)
	}

	// The ledger keeps the source hash, so take it while the source exists.
	if w.history != nil {
		sum, err := utils.MD5File(path, w.md5ChunkSize)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Failed to hash source")
		}
		task.SourceMD5 = sum
	}

	outPath := w.resolver.ResolvePath(path)
	task.OutputPath = outPath
	w.markProduced(outPath)

	state = StateConverting
	w.trace(path, state, "output "+outPath)
	log.Debug().Str("src", path).Str("dst", outPath).Msg("Converting")
	result, err := w.conv.Convert(ctx, path, outPath, converter.ConvertOptions{
		QualityLevel: w.quality,
		AutoOrient:   w.autoOrient,
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Stopped, not failed: the file stays untouched for the next run.
		log.Debug().Str("path", path).Msg("Conversion cancelled")
		return StateDiscovered
	}
	switch {
	case err != nil:
		state = StateFailedConversion
		s.recordFailure(fmt.Sprintf("conversion failed: %s: %v", path, err))
		task.ErrorKind = converter.KindOf(err)
		task.ErrorMessage = err.Error()
		log.Error().Err(err).Str("path", path).Msg("Conversion failed")
	default:
		state = StateVerifying
		w.trace(path, state, "")
		if verr := w.verify(outPath); verr != nil {
			state = StateFailedVerification
			s.recordFailure(fmt.Sprintf("invalid output: %s: %v", outPath, verr))
			task.ErrorKind = converter.KindOf(verr)
			task.ErrorMessage = verr.Error()
			log.Error().Err(verr).Str("output", outPath).Msg("Output failed verification, keeping original")
			break
		}

		state = StateSucceeded
		w.trace(path, state, "")
		s.Converted++
		s.InputBytes += result.InputBytes
		s.OutputBytes += result.OutputBytes
		task.InputBytes = result.InputBytes
		task.OutputBytes = result.OutputBytes

		if rerr := w.remove(path); rerr != nil {
			derr := errors.Mark(errors.Wrapf(rerr, "failed to delete original %s", path), ErrDeletion)
			s.recordWarning(derr.Error())
			task.DeleteError = derr.Error()
			log.Warn().Err(rerr).Str("path", path).Msg("Failed to delete original")
			break
		}
		state = StateOriginalDeleted
		s.Deleted++
		task.SourceDeleted = true
	}

	s.Processed++
	log.Info().Msgf("Processed %d/%d: %s", s.Processed, s.TotalFound, path)

	task.Status = taskStatus(state)
	task.DurationMs = time.Since(start).Milliseconds()
	if w.history != nil {
		if herr := w.history.RecordTask(task); herr != nil {
			log.Warn().Err(herr).Str("path", path).Msg("Failed to record task history")
		}
	}
	return state
}

// Produced reports whether path is an output written by this worker.
func (w *Worker) Produced(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.produced[path]
	return ok
}

func (w *Worker) trace(path string, state JobState, line string) {
	if w.live != nil {
		w.live.Append(path, string(state), line)
	}
}

func (w *Worker) markProduced(path string) {
	w.mu.Lock()
	w.produced[path] = struct{}{}
	w.mu.Unlock()
}

func (w *Worker) startRun(id, root, mode string) *db.Run {
	run := &db.Run{ID: id, Root: root, Mode: mode, QualityLevel: w.quality}
	if w.history == nil {
		return run
	}
	if err := w.history.StartRun(run); err != nil {
		log.Warn().Err(err).Msg("Failed to record run start")
	}
	return run
}

func (w *Worker) finishRun(run *db.Run, s *RunSummary) {
	if w.history == nil {
		return
	}
	run.Status = db.RunCompleted
	if s.Interrupted {
		run.Status = db.RunInterrupted
	}
	run.TotalFound = s.TotalFound
	run.Processed = s.Processed
	run.Failed = s.Failed
	run.Deleted = s.Deleted
	if err := w.history.FinishRun(run); err != nil {
		log.Warn().Err(err).Msg("Failed to record run result")
	}
}

func taskStatus(state JobState) string {
	switch state {
	case StateFailedConversion:
		return db.StatusFailedConversion
	case StateFailedVerification:
		return db.StatusFailedVerification
	default:
		return db.StatusSucceeded
	}
}
