package worker

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Serve consumes q until ctx is done, processing each path with the same
// lifecycle as Run. Paths the worker wrote itself, unsupported files and
// files that disappeared before their turn are skipped. The summary covers
// every file processed during the session.
func (w *Worker) Serve(ctx context.Context, root string, q *Queue) RunSummary {
	s := &RunSummary{RunID: uuid.NewString()}
	run := w.startRun(s.RunID, root, "watch")
	log.Info().Str("run_id", s.RunID).Str("root", root).Msg("Watching for new images")

	for {
		select {
		case <-ctx.Done():
			s.Interrupted = true
			w.finishRun(run, s)
			return *s
		case path := <-q.Chan():
			w.handle(ctx, path, q, s)
		}
	}
}

func (w *Worker) handle(ctx context.Context, path string, q *Queue, s *RunSummary) {
	defer q.Dequeued(path)
	if ctx.Err() != nil {
		return
	}
	if w.Produced(path) || !w.conv.CanConvert(path) {
		return
	}
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		log.Debug().Str("path", path).Msg("Skipping vanished or non-regular file")
		return
	}
	s.TotalFound++
	w.ProcessFile(ctx, s.RunID, path, s)
}
