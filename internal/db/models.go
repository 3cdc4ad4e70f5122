package db

import (
	"database/sql"
	"time"
)

// Task statuses stored in the history
const (
	StatusAdmitted = "admitted"
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusTimeout  = "timeout"
)

// Task is one admitted coordinator task
type Task struct {
	ID         string
	Class      string // exclusive or queued
	Payload    string // the question for queued tasks
	Position   int    // queue position reported at admission
	Status     string
	ErrorKind  string
	Detail     string
	Result     string // JSON report or answer text
	AdmittedAt sql.NullTime
	StartedAt  sql.NullTime
	FinishedAt sql.NullTime
	ElapsedMS  int64
}

// Elapsed returns the run time of a finished task
func (t *Task) Elapsed() time.Duration {
	return time.Duration(t.ElapsedMS) * time.Millisecond
}

// Finished reports whether the task reached a terminal status
func (t *Task) Finished() bool {
	switch t.Status {
	case StatusSuccess, StatusError, StatusTimeout:
		return true
	}
	return false
}

// Notification records an email digest sent for a task
type Notification struct {
	TaskID    string
	Recipient string
	MessageID string
	SentAt    time.Time
}
