package db

import (
	"time"
)

type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
)

// Task states recorded in history. They are the terminal states of a job.
const (
	StatusSucceeded          = "succeeded"
	StatusFailedConversion   = "failed_conversion"
	StatusFailedVerification = "failed_verification"
)

// Run is one pass (or one watch session) over a directory tree
type Run struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Root         string     `gorm:"not null" json:"root"`
	Mode         string     `gorm:"size:16" json:"mode"` // convert or watch
	QualityLevel int        `json:"quality_level"`
	Status       RunStatus  `gorm:"index;size:16" json:"status"`
	TotalFound   int        `json:"total_found"`
	Processed    int        `json:"processed"`
	Failed       int        `json:"failed"`
	Deleted      int        `json:"deleted"`
	StartedAt    time.Time  `gorm:"index" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (Run) TableName() string { return "runs" }

// TaskHistory records the outcome of one file within a run
type TaskHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"index;size:36" json:"run_id"`
	SourcePath    string    `gorm:"index" json:"source_path"`
	OutputPath    string    `json:"output_path"`
	SourceMD5     string    `json:"source_md5"`
	Status        string    `gorm:"index;size:32" json:"status"`
	ErrorKind     string    `gorm:"size:32" json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	SourceDeleted bool      `json:"source_deleted"`
	DeleteError   string    `json:"delete_error,omitempty"`
	InputBytes    int64     `json:"input_bytes"`
	OutputBytes   int64     `json:"output_bytes"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (TaskHistory) TableName() string { return "tasks_history" }

// Stats aggregates task history
type Stats struct {
	Runs               int64 `json:"runs"`
	Tasks              int64 `json:"tasks"`
	Succeeded          int64 `json:"succeeded"`
	FailedConversion   int64 `json:"failed_conversion"`
	FailedVerification int64 `json:"failed_verification"`
	SourcesDeleted     int64 `json:"sources_deleted"`
	InputBytes         int64 `json:"input_bytes"`
	OutputBytes        int64 `json:"output_bytes"`
}
