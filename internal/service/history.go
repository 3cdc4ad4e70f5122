package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/verify"
)

// HistoryService persists task lifecycles and serves them back
type HistoryService struct {
	db     *db.DB
	logger *slog.Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(database *db.DB, logger *slog.Logger) *HistoryService {
	return &HistoryService{db: database, logger: logger}
}

// TaskAdmitted implements coordinator.Recorder
func (s *HistoryService) TaskAdmitted(info coordinator.TaskInfo) {
	if err := s.db.RecordAdmitted(info.ID, string(info.Class), info.Payload, info.Position, info.AdmittedAt); err != nil {
		s.logger.Warn("Failed to record task", "task_id", info.ID, "error", err)
	}
}

// TaskStarted implements coordinator.Recorder
func (s *HistoryService) TaskStarted(id string) {
	if err := s.db.RecordStarted(id, time.Now()); err != nil {
		s.logger.Warn("Failed to record task start", "task_id", id, "error", err)
	}
}

// TaskFinished implements coordinator.Recorder
func (s *HistoryService) TaskFinished(r coordinator.TaskResult) {
	result, err := encodeValue(r.Value)
	if err != nil {
		s.logger.Warn("Failed to encode task result", "task_id", r.ID, "error", err)
	}
	if err := s.db.RecordFinished(r.ID, r.Status.String(), r.Kind, r.Detail, result, r.Elapsed, time.Now()); err != nil {
		s.logger.Warn("Failed to record task result", "task_id", r.ID, "error", err)
	}
}

func encodeValue(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *verify.Report:
		if v == nil {
			return "", nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported result type %T", v)
	}
}

// List returns recent tasks, newest first. class may be empty.
func (s *HistoryService) List(class string, limit int) ([]*db.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.db.ListTasks(class, limit)
}

// Get returns one task
func (s *HistoryService) Get(id string) (*db.Task, error) {
	return s.db.GetTask(id)
}

// Report decodes the attendance report stored with a verification task
func (s *HistoryService) Report(task *db.Task) (*verify.Report, error) {
	if task.Class != string(coordinator.ClassExclusive) || task.Result == "" {
		return nil, fmt.Errorf("task %s has no report", task.ID)
	}
	var r verify.Report
	if err := json.Unmarshal([]byte(task.Result), &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// LatestReport returns the most recent successful verification
func (s *HistoryService) LatestReport() (*db.Task, *verify.Report, error) {
	task, err := s.db.LatestReport()
	if err != nil {
		return nil, nil, err
	}
	r, err := s.Report(task)
	if err != nil {
		return task, nil, err
	}
	return task, r, nil
}

// Counts returns task counts per status for the last window
func (s *HistoryService) Counts(window time.Duration) (map[string]int, error) {
	return s.db.CountByStatus(time.Now().Add(-window))
}

// Prune removes tasks older than age
func (s *HistoryService) Prune(age time.Duration) (int64, error) {
	n, err := s.db.DeleteTasksBefore(time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	s.logger.Info("Pruned task history", "removed", n, "older_than", age)
	return n, nil
}
