package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/email"
	"github.com/perbu/presensi/internal/verify"
)

// SendResult contains the result of a digest send
type SendResult struct {
	Recipients int
	Sent       int
	Skipped    int
	Errors     int
}

// Sender delivers a report digest to every recipient once
type Sender struct {
	db         *db.DB
	composer   *Composer
	client     email.Sender
	recipients []string
	logger     *slog.Logger
}

// NewSender creates a new digest sender
func NewSender(database *db.DB, composer *Composer, client email.Sender, recipients []string, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		db:         database,
		composer:   composer,
		client:     client,
		recipients: recipients,
		logger:     logger,
	}
}

// Send emails the digest for taskID. Recipients that already received it
// are skipped; a failure for one recipient does not stop the others.
func (s *Sender) Send(ctx context.Context, taskID string, report *verify.Report) (*SendResult, error) {
	result := &SendResult{Recipients: len(s.recipients)}

	for _, recipient := range s.recipients {
		sent, err := s.db.HasBeenNotified(taskID, recipient)
		if err != nil {
			return result, err
		}
		if sent {
			result.Skipped++
			continue
		}

		msg, err := s.composer.Compose(report, recipient)
		if err != nil {
			return result, fmt.Errorf("failed to compose digest: %w", err)
		}

		messageID, err := s.client.Send(ctx, *msg)
		if err != nil {
			s.logger.Error("Failed to send digest", "to", recipient, "task_id", taskID, "error", err)
			result.Errors++
			continue
		}

		if err := s.db.RecordNotification(&db.Notification{
			TaskID:    taskID,
			Recipient: recipient,
			MessageID: messageID,
			SentAt:    time.Now(),
		}); err != nil {
			s.logger.Warn("Failed to record digest", "to", recipient, "task_id", taskID, "error", err)
		}

		s.logger.Info("Digest sent", "to", recipient, "task_id", taskID, "message_id", messageID)
		result.Sent++
	}

	return result, nil
}
