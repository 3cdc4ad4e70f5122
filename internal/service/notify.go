package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/digest"
	"github.com/perbu/presensi/internal/verify"
)

const notifyTimeout = 30 * time.Second

// NotifyService emails a digest after every successful verification.
// Sending happens in the background so the coordinator is never held up.
type NotifyService struct {
	sender *digest.Sender
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewNotifyService creates a new NotifyService
func NewNotifyService(sender *digest.Sender, logger *slog.Logger) *NotifyService {
	return &NotifyService{sender: sender, logger: logger}
}

func (s *NotifyService) TaskAdmitted(coordinator.TaskInfo) {}

func (s *NotifyService) TaskStarted(string) {}

// TaskFinished implements coordinator.Recorder
func (s *NotifyService) TaskFinished(r coordinator.TaskResult) {
	if r.Class != coordinator.ClassExclusive || r.Status != coordinator.StatusSuccess {
		return
	}
	report, ok := r.Value.(*verify.Report)
	if !ok || report == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		res, err := s.sender.Send(ctx, r.ID, report)
		if err != nil {
			s.logger.Error("Digest failed", "task_id", r.ID, "error", err)
			return
		}
		s.logger.Debug("Digest done", "task_id", r.ID, "sent", res.Sent, "skipped", res.Skipped, "errors", res.Errors)
	}()
}

// Wait blocks until in-flight digests are sent
func (s *NotifyService) Wait() {
	s.wg.Wait()
}
