// Package chat turns inbound chat messages into coordinator submissions and
// carries the replies back to the transport.
package chat

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/perbu/presensi/internal/config"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/format"
	"github.com/perbu/presensi/internal/verify"
)

// Coordinator is the part of the task coordinator the router drives
type Coordinator interface {
	SubmitExclusive(ownerID string, sink coordinator.ReplySink[*verify.Report]) error
	SubmitQueued(requestID, payload string, sink coordinator.ReplySink[string]) (int, error)
}

// Message is one inbound chat message. Reply sends text back to the chat
// the message came from and may be called from any goroutine.
type Message struct {
	ChatID string
	Sender string
	Text   string
	Reply  func(text string)
}

// Intent is what a message asks the bot to do
type Intent int

const (
	IntentNone Intent = iota
	IntentVerify
	IntentAsk
)

// Router classifies messages by trigger phrase
type Router struct {
	coord         Coordinator
	verifyTrigger string
	askTrigger    string
	logger        *slog.Logger
}

// NewRouter creates a router for the configured triggers
func NewRouter(coord Coordinator, triggers config.TriggerConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		coord:         coord,
		verifyTrigger: strings.ToLower(triggers.Verify),
		askTrigger:    strings.ToLower(triggers.Advisory),
		logger:        logger,
	}
}

// Classify returns the intent of text and, for questions, the question
func (r *Router) Classify(text string) (Intent, string) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, r.askTrigger) {
		return IntentAsk, strings.TrimSpace(trimmed[len(r.askTrigger):])
	}
	if strings.Contains(lower, r.verifyTrigger) {
		return IntentVerify, ""
	}
	return IntentNone, ""
}

// Handle routes msg. It returns false when the message carries no trigger.
// Replies for admitted tasks arrive asynchronously through msg.Reply, always
// after the acknowledgement.
func (r *Router) Handle(msg Message) bool {
	intent, question := r.Classify(msg.Text)
	switch intent {
	case IntentVerify:
		r.verify(msg)
	case IntentAsk:
		r.ask(msg, question)
	default:
		return false
	}
	return true
}

func (r *Router) verify(msg Message) {
	id := uuid.NewString()
	acked := make(chan struct{})
	sink := coordinator.SinkFunc[*verify.Report](func(o coordinator.Outcome[*verify.Report]) {
		<-acked
		msg.Reply(format.VerifyOutcome(o))
	})

	if err := r.coord.SubmitExclusive(id, sink); err != nil {
		r.logger.Info("Verification refused", "chat_id", msg.ChatID, "sender", msg.Sender, "reason", err)
		msg.Reply(format.VerifyRejected(err))
		return
	}
	r.logger.Debug("Verification requested", "chat_id", msg.ChatID, "task_id", id)
	msg.Reply(format.VerifyAck)
	close(acked)
}

func (r *Router) ask(msg Message, question string) {
	if question == "" {
		msg.Reply(format.EmptyAsk)
		return
	}

	id := uuid.NewString()
	acked := make(chan struct{})
	sink := coordinator.SinkFunc[string](func(o coordinator.Outcome[string]) {
		<-acked
		msg.Reply(format.AskOutcome(o))
	})

	position, err := r.coord.SubmitQueued(id, question, sink)
	if err != nil {
		r.logger.Info("Question refused", "chat_id", msg.ChatID, "sender", msg.Sender, "reason", err)
		msg.Reply(format.AskRejected(err))
		return
	}
	r.logger.Debug("Question queued", "chat_id", msg.ChatID, "task_id", id, "position", position)
	msg.Reply(format.AskAdmitted(position))
	close(acked)
}
