package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a task does not exist
var ErrNotFound = errors.New("task not found")

// Task lifecycle writes. Events for one task can arrive out of order, so
// every write is an upsert that only touches its own columns.

// RecordAdmitted stores the admission of a task
func (db *DB) RecordAdmitted(id, class, payload string, position int, at time.Time) error {
	_, err := db.Exec(db.rebind(`
		INSERT INTO tasks (id, class, payload, position, status, admitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			class = excluded.class,
			payload = excluded.payload,
			position = excluded.position,
			admitted_at = excluded.admitted_at
	`), id, class, payload, position, StatusAdmitted, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record admitted task: %w", err)
	}
	return nil
}

// RecordStarted marks a task as running
func (db *DB) RecordStarted(id string, at time.Time) error {
	_, err := db.Exec(db.rebind(`
		INSERT INTO tasks (id, status, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			started_at = excluded.started_at,
			status = CASE WHEN tasks.status = ? THEN excluded.status ELSE tasks.status END
	`), id, StatusRunning, at.UTC(), StatusAdmitted)
	if err != nil {
		return fmt.Errorf("failed to record started task: %w", err)
	}
	return nil
}

// RecordFinished stores the terminal outcome of a task
func (db *DB) RecordFinished(id, status, errorKind, detail, result string, elapsed time.Duration, at time.Time) error {
	_, err := db.Exec(db.rebind(`
		INSERT INTO tasks (id, status, error_kind, detail, result, finished_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			error_kind = excluded.error_kind,
			detail = excluded.detail,
			result = excluded.result,
			finished_at = excluded.finished_at,
			elapsed_ms = excluded.elapsed_ms
	`), id, status, errorKind, detail, result, at.UTC(), elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record finished task: %w", err)
	}
	return nil
}

const taskColumns = `id, class, payload, position, status, error_kind, detail, result,
	admitted_at, started_at, finished_at, elapsed_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	t := &Task{}
	err := s.Scan(&t.ID, &t.Class, &t.Payload, &t.Position, &t.Status, &t.ErrorKind, &t.Detail, &t.Result,
		&t.AdmittedAt, &t.StartedAt, &t.FinishedAt, &t.ElapsedMS)
	return t, err
}

// GetTask retrieves a task by ID
func (db *DB) GetTask(id string) (*Task, error) {
	row := db.QueryRow(db.rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the most recently admitted tasks, newest first.
// An empty class returns both classes.
func (db *DB) ListTasks(class string, limit int) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if class != "" {
		query += ` WHERE class = ?`
		args = append(args, class)
	}
	query += ` ORDER BY admitted_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// LatestReport returns the most recent successful verification
func (db *DB) LatestReport() (*Task, error) {
	row := db.QueryRow(db.rebind(`
		SELECT `+taskColumns+` FROM tasks
		WHERE class = ? AND status = ?
		ORDER BY finished_at DESC
		LIMIT 1
	`), "exclusive", StatusSuccess)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return t, nil
}

// CountByStatus returns the number of tasks per status admitted since the
// given time
func (db *DB) CountByStatus(since time.Time) (map[string]int, error) {
	rows, err := db.Query(db.rebind(`
		SELECT status, COUNT(*) FROM tasks
		WHERE admitted_at >= ?
		GROUP BY status
	`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteTasksBefore removes tasks admitted before the given time and
// returns how many were removed
func (db *DB) DeleteTasksBefore(before time.Time) (int64, error) {
	res, err := db.Exec(db.rebind(`DELETE FROM tasks WHERE admitted_at < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return res.RowsAffected()
}

// Notification operations

// RecordNotification stores a sent digest
func (db *DB) RecordNotification(n *Notification) error {
	_, err := db.Exec(db.rebind(`
		INSERT INTO notifications (task_id, recipient, message_id, sent_at)
		VALUES (?, ?, ?, ?)
	`), n.TaskID, n.Recipient, n.MessageID, n.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// HasBeenNotified reports whether the digest for a task went to recipient
func (db *DB) HasBeenNotified(taskID, recipient string) (bool, error) {
	var count int
	err := db.QueryRow(db.rebind(`
		SELECT COUNT(*) FROM notifications WHERE task_id = ? AND recipient = ?
	`), taskID, recipient).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return count > 0, nil
}
