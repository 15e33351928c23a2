package worker

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/ah-its-andy/img2webp/internal/config"
	"github.com/ah-its-andy/img2webp/internal/converter"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/ah-its-andy/img2webp/internal/livelog"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(level int) *config.Config {
	return &config.Config{Root: ".", QualityLevel: level, AutoOrient: true, MD5ChunkSize: 1024}
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 15), 90, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func newWorker(level int, opts ...Option) *Worker {
	return New(testConfig(level), converter.NewWebPConverter(), opts...)
}

func TestRunConvertsAndDeletes(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0o644))

	s, err := newWorker(1).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalFound)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Converted)
	assert.Equal(t, 1, s.Deleted)
	require.Len(t, s.Failures, 1)
	assert.Contains(t, s.Failures[0], "bad.png")
	assert.Empty(t, s.Warnings)
	assert.NotEmpty(t, s.RunID)
	assert.Positive(t, s.InputBytes)
	assert.Positive(t, s.OutputBytes)

	assert.Equal(t, []string{"bad.png", "new_photo.webp"}, names(t, dir))
	assert.True(t, converter.Verify(filepath.Join(dir, "new_photo.webp")))
}

func TestRunRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeJPEG(t, filepath.Join(sub, "deep.JPG"))

	s, err := newWorker(3).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, []string{"new_deep.webp"}, names(t, sub))
}

func TestRunAvoidsExistingOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_photo.webp"), []byte("earlier"), 0o644))
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))

	s, err := newWorker(1).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Failed)

	assert.Equal(t, []string{"new_photo.webp", "new_photo_1.webp"}, names(t, dir))
	b, err := os.ReadFile(filepath.Join(dir, "new_photo.webp"))
	require.NoError(t, err)
	assert.Equal(t, "earlier", string(b))
}

func TestRunVerificationFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))

	w := newWorker(1, WithVerifier(func(string) error { return errors.New("broken output") }))
	s, err := w.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0, s.Deleted)
	require.Len(t, s.Failures, 1)
	assert.Contains(t, s.Failures[0], "new_photo.webp")
	assert.FileExists(t, filepath.Join(dir, "photo.jpg"))
}

func TestRunDeletionFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))

	w := newWorker(1, WithRemover(func(string) error { return os.ErrPermission }))
	s, err := w.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.Converted)
	assert.Equal(t, 0, s.Deleted)
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "photo.jpg")
	assert.FileExists(t, filepath.Join(dir, "photo.jpg"))
	assert.FileExists(t, filepath.Join(dir, "new_photo.webp"))
}

func TestRunInvalidQualityKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "one.jpg"))
	writeJPEG(t, filepath.Join(dir, "two.jpg"))

	s, err := newWorker(0).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 0, s.Deleted)
	assert.Equal(t, []string{"one.jpg", "two.jpg"}, names(t, dir))
}

func TestRunEmptyTree(t *testing.T) {
	s, err := newWorker(1).Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalFound)
	assert.Equal(t, 0, s.Processed)
	assert.Equal(t, 0, s.Failed)
}

func TestRunMissingRoot(t *testing.T) {
	_, err := newWorker(1).Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := newWorker(1).Run(ctx, dir)
	require.NoError(t, err)
	assert.True(t, s.Interrupted)
	assert.Equal(t, 1, s.TotalFound)
	assert.Equal(t, 0, s.Processed)
	assert.FileExists(t, filepath.Join(dir, "photo.jpg"))
}

func TestHandleSkipsAfterCancel(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src)

	q := NewQueue(1)
	require.True(t, q.Enqueue(src))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := RunSummary{}
	newWorker(1).handle(ctx, <-q.Chan(), q, &s)

	assert.Equal(t, 0, s.TotalFound)
	assert.Equal(t, 0, s.Processed)
	assert.Equal(t, 0, s.Failed)
	assert.Empty(t, s.Failures)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"photo.jpg"}, names(t, dir))
}

func TestProcessFileCancelledIsNotFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &memHistory{}
	live := livelog.NewManager()

	s := RunSummary{TotalFound: 1}
	state := newWorker(1, WithHistory(h), WithLiveLog(live)).ProcessFile(ctx, "run", src, &s)

	assert.Equal(t, StateDiscovered, state)
	assert.Equal(t, 0, s.Processed)
	assert.Equal(t, 0, s.Failed)
	assert.Empty(t, s.Failures)
	assert.Empty(t, h.tasks)
	assert.Empty(t, live.Active())
	assert.Equal(t, []string{"photo.jpg"}, names(t, dir))
}

type memHistory struct {
	runs     []*db.Run
	finished []*db.Run
	tasks    []*db.TaskHistory
}

func (h *memHistory) StartRun(run *db.Run) error {
	h.runs = append(h.runs, run)
	return nil
}

func (h *memHistory) RecordTask(task *db.TaskHistory) error {
	h.tasks = append(h.tasks, task)
	return nil
}

func (h *memHistory) FinishRun(run *db.Run) error {
	h.finished = append(h.finished, run)
	return errors.New("ledger unavailable")
}

func TestRunRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("junk"), 0o644))

	h := &memHistory{}
	s, err := newWorker(2, WithHistory(h)).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)

	require.Len(t, h.runs, 1)
	assert.Equal(t, s.RunID, h.runs[0].ID)
	assert.Equal(t, "convert", h.runs[0].Mode)
	require.Len(t, h.finished, 1)
	assert.Equal(t, db.RunCompleted, h.finished[0].Status)
	assert.Equal(t, 2, h.finished[0].Processed)

	require.Len(t, h.tasks, 2)
	bad, good := h.tasks[0], h.tasks[1]
	assert.Equal(t, db.StatusFailedConversion, bad.Status)
	assert.Equal(t, "decode", bad.ErrorKind)
	assert.False(t, bad.SourceDeleted)

	assert.Equal(t, db.StatusSucceeded, good.Status)
	assert.True(t, good.SourceDeleted)
	assert.Len(t, good.SourceMD5, 32)
	assert.Equal(t, filepath.Join(dir, "new_photo.webp"), good.OutputPath)
}

func TestRunWithSQLiteHistory(t *testing.T) {
	conn, err := db.Init(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close(conn)

	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "photo.jpg"))

	s, err := newWorker(1, WithHistory(NewHistory(conn))).Run(context.Background(), dir)
	require.NoError(t, err)

	run, err := db.GetRun(conn, s.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Deleted)
	assert.NotNil(t, run.FinishedAt)

	tasks, total, err := db.ListTasks(conn, db.TaskFilter{RunID: s.RunID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, db.StatusSucceeded, tasks[0].Status)
}

func TestServeProcessesQueuedFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	w := newWorker(1)
	q := NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan RunSummary, 1)
	go func() { done <- w.Serve(ctx, dir, q) }()

	q.Enqueue(filepath.Join(dir, "notes.txt"))
	q.Enqueue(filepath.Join(dir, "gone.jpg"))
	q.Enqueue(src)

	out := filepath.Join(dir, "new_photo.webp")
	require.Eventually(t, func() bool {
		_, err := os.Stat(src)
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)

	// The output is one of ours and must not be converted again.
	q.Enqueue(out)
	require.Eventually(t, func() bool { return q.Len() == 0 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	s := <-done
	assert.True(t, s.Interrupted)
	assert.Equal(t, 1, s.TotalFound)
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 1, s.Deleted)
	assert.True(t, w.Produced(out))
	assert.FileExists(t, out)
}

func TestProcessFilePublishesLiveState(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src)

	live := livelog.NewManager()
	var seen livelog.Entry
	verify := func(path string) error {
		seen, _ = live.Get(src)
		return converter.VerifyFile(path)
	}
	w := newWorker(1, WithLiveLog(live), WithVerifier(verify))

	s := RunSummary{TotalFound: 1}
	state := w.ProcessFile(context.Background(), "run", src, &s)

	assert.Equal(t, StateOriginalDeleted, state)
	assert.Equal(t, string(StateVerifying), seen.State)
	assert.Equal(t, []string{"output " + filepath.Join(dir, "new_photo.webp")}, seen.Lines)
	assert.Empty(t, live.Active())
}
