package db

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens (creating if needed) the history database at path and
// migrates the schema.
func Init(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory for %s", path)
		}
	}
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql handle")
	}
	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := conn.AutoMigrate(&Run{}, &TaskHistory{}); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return conn, nil
}

// Close closes the underlying connection
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func CreateRun(conn *gorm.DB, run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	return conn.Create(run).Error
}

// FinishRun stores the final counters and status of run
func FinishRun(conn *gorm.DB, run *Run) error {
	now := time.Now()
	run.FinishedAt = &now
	return conn.Model(&Run{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":      run.Status,
		"total_found": run.TotalFound,
		"processed":   run.Processed,
		"failed":      run.Failed,
		"deleted":     run.Deleted,
		"finished_at": run.FinishedAt,
	}).Error
}

func InsertTaskHistory(conn *gorm.DB, h *TaskHistory) error {
	return conn.Create(h).Error
}

// GetRun returns the run with id, or gorm.ErrRecordNotFound
func GetRun(conn *gorm.DB, id string) (*Run, error) {
	var run Run
	if err := conn.First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs, newest first
func ListRuns(conn *gorm.DB, limit, offset int) ([]Run, int64, error) {
	var rows []Run
	var count int64
	q := conn.Model(&Run{}).Session(&gorm.Session{})
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("started_at desc").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, count, err
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	RunID  string
	Status string
	Limit  int
	Offset int
}

// ListTasks returns task history in insertion order
func ListTasks(conn *gorm.DB, f TaskFilter) ([]TaskHistory, int64, error) {
	q := conn.Model(&TaskHistory{})
	if f.RunID != "" {
		q = q.Where("run_id = ?", f.RunID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var rows []TaskHistory
	err := q.Order("id asc").Limit(limit).Offset(f.Offset).Find(&rows).Error
	return rows, count, err
}

func GetStats(conn *gorm.DB) (*Stats, error) {
	stats := &Stats{}
	if err := conn.Model(&Run{}).Count(&stats.Runs).Error; err != nil {
		return nil, err
	}
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN source_deleted THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(input_bytes), 0),
		COALESCE(SUM(output_bytes), 0)
	FROM tasks_history
	`
	err := conn.Raw(query, StatusSucceeded, StatusFailedConversion, StatusFailedVerification).Row().Scan(
		&stats.Tasks,
		&stats.Succeeded,
		&stats.FailedConversion,
		&stats.FailedVerification,
		&stats.SourcesDeleted,
		&stats.InputBytes,
		&stats.OutputBytes,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
