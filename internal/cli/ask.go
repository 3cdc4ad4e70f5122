package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/format"
)

// Run executes the ask command
func (c *AskCmd) Run(ctx *Context) error {
	question := strings.TrimSpace(strings.Join(c.Question, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	b, err := ctx.newBot()
	if err != nil {
		return err
	}
	defer ctx.closeBot(b)

	done := make(chan coordinator.Outcome[string], 1)
	if _, err := b.Coordinator().SubmitQueued(uuid.NewString(), question, coordinator.SinkFunc[string](func(o coordinator.Outcome[string]) {
		done <- o
	})); err != nil {
		return fmt.Errorf("question refused: %w", err)
	}

	select {
	case o := <-done:
		if o.Status != coordinator.StatusSuccess {
			return fmt.Errorf("%s", format.AskOutcome(o))
		}
		fmt.Fprintln(ctx.Out, o.Value)
		return nil
	case <-ctx.Ctx.Done():
		return ctx.Ctx.Err()
	}
}
