package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ah-its-andy/img2webp/internal/converter"
	"github.com/ah-its-andy/img2webp/internal/utils"
	"github.com/ah-its-andy/img2webp/internal/worker"
	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher feeds newly written images under a root into a worker queue.
type Watcher struct {
	root   string
	delay  time.Duration
	queue  *worker.Queue
	w      *fsnotify.Watcher
	mu     sync.Mutex
	paused bool

	pending map[string]struct{} // paths waiting to settle
}

func NewRecursiveWatcher(root string, stabilityDelay time.Duration, q *worker.Queue) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}
	wr := &Watcher{
		root:    root,
		delay:   stabilityDelay,
		queue:   q,
		w:       w,
		pending: make(map[string]struct{}),
	}
	if err := wr.addTree(root); err != nil {
		w.Close()
		return nil, err
	}
	return wr, nil
}

// Start dispatches events until ctx is done or the watcher is closed.
func (wr *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wr.w.Events:
			if !ok {
				return nil
			}
			wr.handleEvent(ctx, ev)
		case err, ok := <-wr.w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (wr *Watcher) Close() error { return wr.w.Close() }

func (wr *Watcher) Pause()       { wr.mu.Lock(); wr.paused = true; wr.mu.Unlock() }
func (wr *Watcher) Resume()      { wr.mu.Lock(); wr.paused = false; wr.mu.Unlock() }
func (wr *Watcher) Paused() bool { wr.mu.Lock(); defer wr.mu.Unlock(); return wr.paused }

func (wr *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return errors.Wrapf(err, "failed to watch %s", root)
			}
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable directory")
			return nil
		}
		if d.IsDir() {
			if err := wr.w.Add(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		}
		return nil
	})
}

func (wr *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ev.Has(fsnotify.Create) {
		fi, err := os.Stat(ev.Name)
		if err == nil && fi.IsDir() {
			_ = wr.addTree(ev.Name)
			wr.enqueueExisting(ctx, ev.Name)
			return
		}
	}
	wr.consider(ctx, ev.Name)
}

// enqueueExisting picks up files that landed in a new directory before it
// was registered.
func (wr *Watcher) enqueueExisting(ctx context.Context, dir string) {
	files, err := worker.Discover(dir)
	if err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to scan new directory")
		return
	}
	for _, path := range files {
		wr.consider(ctx, path)
	}
}

func (wr *Watcher) consider(ctx context.Context, path string) {
	if wr.Paused() {
		return
	}
	if utils.IsTempFile(filepath.Base(path)) || !converter.Supported(path) {
		return
	}

	wr.mu.Lock()
	if _, ok := wr.pending[path]; ok {
		wr.mu.Unlock()
		return
	}
	wr.pending[path] = struct{}{}
	wr.mu.Unlock()

	go func() {
		defer func() {
			wr.mu.Lock()
			delete(wr.pending, path)
			wr.mu.Unlock()
		}()
		if err := utils.WaitFileStable(ctx, path, wr.delay); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("File did not settle")
			return
		}
		if wr.queue.Enqueue(path) {
			log.Debug().Str("path", path).Msg("Queued")
		}
	}()
}
