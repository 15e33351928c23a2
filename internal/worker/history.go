package worker

import (
	"github.com/ah-its-andy/img2webp/internal/db"
	"gorm.io/gorm"
)

// History receives run and task records. Failures are logged by the caller
// and never change a file's outcome.
type History interface {
	StartRun(run *db.Run) error
	RecordTask(task *db.TaskHistory) error
	FinishRun(run *db.Run) error
}

type gormHistory struct {
	conn *gorm.DB
}

// NewHistory returns a History backed by the sqlite ledger.
func NewHistory(conn *gorm.DB) History {
	return &gormHistory{conn: conn}
}

func (h *gormHistory) StartRun(run *db.Run) error {
	return db.CreateRun(h.conn, run)
}

func (h *gormHistory) RecordTask(task *db.TaskHistory) error {
	return db.InsertTaskHistory(h.conn, task)
}

func (h *gormHistory) FinishRun(run *db.Run) error {
	return db.FinishRun(h.conn, run)
}
