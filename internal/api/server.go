package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ah-its-andy/img2webp/internal/converter"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/ah-its-andy/img2webp/internal/livelog"
	"github.com/ah-its-andy/img2webp/internal/watcher"
	"github.com/ah-its-andy/img2webp/internal/worker"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Server exposes run history and watch controls over HTTP. Any of its
// dependencies may be nil; the endpoints that need a missing one answer 503.
type Server struct {
	Router *gin.Engine
	db     *gorm.DB
	root   string
	queue  *worker.Queue
	watch  *watcher.Watcher
	live   *livelog.Manager
	target string
}

func NewServer(conn *gorm.DB, root string, q *worker.Queue, w *watcher.Watcher, live *livelog.Manager) *Server {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger())
	s := &Server{
		Router: g,
		db:     conn,
		root:   root,
		queue:  q,
		watch:  w,
		live:   live,
		target: converter.NewWebPConverter().TargetFormat(),
	}

	g.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := g.Group("/api")
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.GET("/tasks", s.listTasks)
	api.GET("/stats", s.getStats)
	api.GET("/formats", s.listFormats)
	api.GET("/active", s.listActive)
	api.POST("/scan-now", s.scanNow)
	api.POST("/watcher/pause", s.pauseWatcher)
	api.POST("/watcher/resume", s.resumeWatcher)

	return s
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "failed to serve on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) requireDB(c *gin.Context) bool {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled"})
		return false
	}
	return true
}

func (s *Server) listRuns(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)
	rows, total, err := db.ListRuns(s.db, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total})
}

func (s *Server) getRun(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	run, err := db.GetRun(s.db, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) listTasks(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	rows, total, err := db.ListTasks(s.db, db.TaskFilter{
		RunID:  c.Query("run_id"),
		Status: c.Query("status"),
		Limit:  parseIntDefault(c.Query("limit"), 100),
		Offset: parseIntDefault(c.Query("offset"), 0),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total})
}

func (s *Server) getStats(c *gin.Context) {
	resp := gin.H{}
	if s.queue != nil {
		resp["queue_len"] = s.queue.Len()
	}
	if s.watch != nil {
		resp["watcher_state"] = "running"
		if s.watch.Paused() {
			resp["watcher_state"] = "paused"
		}
	}
	if s.db != nil {
		stats, err := db.GetStats(s.db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["history"] = stats
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listActive(c *gin.Context) {
	if s.live == nil {
		c.JSON(http.StatusOK, gin.H{"data": []livelog.Entry{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.live.Active()})
}

func (s *Server) listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"extensions":    converter.Extensions(),
		"target_format": s.target,
	})
}

// scanNow queues every supported file under the root, for images that
// arrived while the watcher was paused.
func (s *Server) scanNow(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not watching"})
		return
	}
	files, err := worker.Discover(s.root)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	go func() {
		for _, path := range files {
			s.queue.Enqueue(path)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"found": len(files)})
}

func (s *Server) pauseWatcher(c *gin.Context) {
	if s.watch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not watching"})
		return
	}
	s.watch.Pause()
	c.JSON(http.StatusOK, gin.H{"watcher_state": "paused"})
}

func (s *Server) resumeWatcher(c *gin.Context) {
	if s.watch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not watching"})
		return
	}
	s.watch.Resume()
	c.JSON(http.StatusOK, gin.H{"watcher_state": "running"})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
