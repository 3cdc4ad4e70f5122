// Package format renders the chat replies of the bot.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/perbu/presensi/internal/apperr"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/verify"
)

// Fixed replies
const (
	VerifyAck    = "⏳ Checking KKN attendance..."
	VerifyBusy   = "A check is already in progress. Please wait."
	ShuttingDown = "🔌 The bot is restarting, please try again in a minute."
	EmptyAsk     = "❓ Ask me something after the trigger, e.g. \"ancis tanya apa itu KKN?\""
)

// AttendanceSummary renders a report as a chat message
func AttendanceSummary(r *verify.Report) string {
	absent := r.WithStatus(verify.StatusAbsent)
	present := r.Present()

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *KKN Attendance Summary* (%s)\n\n", r.Date())
	fmt.Fprintf(&b, "❌ Absent: %d\n✅ Present: %d\n\n", len(absent), len(present))

	if len(absent) > 0 {
		b.WriteString("*Absent Students:*\n")
		for i, s := range absent {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, s.Name, s.StudentID)
		}
		b.WriteString("\n")
	}

	if len(present) > 0 {
		b.WriteString("*Present Students:*\n")
		for i, s := range present {
			at := ""
			if s.Time != "" {
				at = " at " + s.Time
			}
			fmt.Fprintf(&b, "%d. %s (%s)%s\n", i+1, s.Name, s.StudentID, at)
		}
	}

	counts := r.Counts()
	var other []string
	for _, status := range []string{verify.StatusPending, verify.StatusUnknown, verify.StatusError} {
		if n := counts[status]; n > 0 {
			other = append(other, fmt.Sprintf("%s: %d", status, n))
		}
	}
	if len(other) > 0 {
		fmt.Fprintf(&b, "\n⚠️ Not confirmed (%s)\n", strings.Join(other, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// VerifyRejected renders an admission failure of the verification task
func VerifyRejected(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrBusy):
		return "⚠️ " + VerifyBusy
	case errors.Is(err, coordinator.ErrClosed):
		return ShuttingDown
	default:
		return "⚠️ Error checking attendance."
	}
}

// VerifyOutcome renders the terminal outcome of a verification
func VerifyOutcome(o coordinator.Outcome[*verify.Report]) string {
	switch o.Status {
	case coordinator.StatusSuccess:
		return AttendanceSummary(o.Value)
	case coordinator.StatusTimeout:
		return fmt.Sprintf("⌛ Attendance check gave up after %s. The checker did not answer in time.", round(o.Elapsed))
	default:
		return "⚠️ Error checking attendance: " + describe(o.Err)
	}
}

// AskAdmitted acknowledges a queued question
func AskAdmitted(position int) string {
	if position <= 1 {
		return "🤔 Thinking..."
	}
	return fmt.Sprintf("🕒 Your question is number %d in line.", position)
}

// AskRejected renders an admission failure of an advisory question
func AskRejected(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrSystemBusy):
		return "⏳ An attendance check is running. Ask again when it is done."
	case errors.Is(err, coordinator.ErrQueueFull):
		return "🚦 Too many questions waiting. Try again in a moment."
	case errors.Is(err, coordinator.ErrClosed):
		return ShuttingDown
	default:
		return "⚠️ Could not take your question."
	}
}

// AskOutcome renders the terminal outcome of an advisory question
func AskOutcome(o coordinator.Outcome[string]) string {
	switch o.Status {
	case coordinator.StatusSuccess:
		return o.Value
	case coordinator.StatusTimeout:
		return fmt.Sprintf("⌛ No answer after %s. Please ask again.", round(o.Elapsed))
	default:
		return "⚠️ Could not answer: " + describe(o.Err)
	}
}

// describe puts a readable hint in front of the error kind and the
// adapter's own detail
func describe(err *apperr.Error) string {
	if err == nil {
		return "unknown error"
	}
	var hint string
	switch err.Kind {
	case apperr.RateLimited:
		hint = "the service is rate limiting us, try again later"
	case apperr.MalformedResponse:
		hint = "the service sent an answer we could not read"
	case apperr.TransportFailure:
		hint = "the service could not be reached"
	case apperr.Shutdown:
		hint = "the bot is shutting down"
	case apperr.Internal:
		hint = "internal error"
	default:
		return err.Detail
	}
	if err.Detail == "" {
		return fmt.Sprintf("%s (%s)", hint, err.Kind)
	}
	return fmt.Sprintf("%s (%s: %s)", hint, err.Kind, err.Detail)
}

func round(d time.Duration) time.Duration {
	if d >= time.Second {
		return d.Round(time.Second)
	}
	return d.Round(time.Millisecond)
}
