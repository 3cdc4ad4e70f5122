// Package service holds the persistence and notification side of the bot.
// Its services observe the coordinator and serve history to the web and
// CLI front ends.
package service

import (
	"log/slog"

	"github.com/perbu/presensi/internal/config"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/digest"
	"github.com/perbu/presensi/internal/email"
)

// Services is a container for all service instances
type Services struct {
	History *HistoryService
	Notify  *NotifyService // nil when notifications are disabled
}

// New creates a new Services container with all dependencies
func New(database *db.DB, cfg *config.Config, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{History: NewHistoryService(database, logger)}

	if cfg.Notify.Enabled && len(cfg.Notify.Recipients) > 0 {
		var client email.Sender
		if cfg.Notify.DryRun || cfg.GetSendGridAPIKey() == "" {
			client = email.NewDryRunClient(logger)
		} else {
			client = email.NewClient(cfg.GetSendGridAPIKey(), cfg.Notify.FromEmail, cfg.Notify.FromName)
		}
		sender := digest.NewSender(database, digest.NewComposer(cfg.Notify.SubjectPrefix), client, cfg.Notify.Recipients, logger)
		s.Notify = NewNotifyService(sender, logger)
	}
	return s
}

// Recorder returns the coordinator recorder that fans out to every service
func (s *Services) Recorder() coordinator.Recorder {
	recorders := MultiRecorder{s.History}
	if s.Notify != nil {
		recorders = append(recorders, s.Notify)
	}
	return recorders
}

// Wait blocks until background notifications have finished
func (s *Services) Wait() {
	if s.Notify != nil {
		s.Notify.Wait()
	}
}

// MultiRecorder forwards lifecycle events to several recorders in order
type MultiRecorder []coordinator.Recorder

func (m MultiRecorder) TaskAdmitted(info coordinator.TaskInfo) {
	for _, r := range m {
		r.TaskAdmitted(info)
	}
}

func (m MultiRecorder) TaskStarted(id string) {
	for _, r := range m {
		r.TaskStarted(id)
	}
}

func (m MultiRecorder) TaskFinished(result coordinator.TaskResult) {
	for _, r := range m {
		r.TaskFinished(result)
	}
}
