package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/format"
	"github.com/perbu/presensi/internal/verify"
)

// Run executes the check command
func (c *CheckCmd) Run(ctx *Context) error {
	b, err := ctx.newBot()
	if err != nil {
		return err
	}
	defer ctx.closeBot(b)

	done := make(chan coordinator.Outcome[*verify.Report], 1)
	err = b.Coordinator().SubmitExclusive(uuid.NewString(), coordinator.SinkFunc[*verify.Report](func(o coordinator.Outcome[*verify.Report]) {
		done <- o
	}))
	if err != nil {
		return fmt.Errorf("check refused: %w", err)
	}
	ctx.printf("%s\n", format.VerifyAck)

	var o coordinator.Outcome[*verify.Report]
	select {
	case o = <-done:
	case <-ctx.Ctx.Done():
		return ctx.Ctx.Err()
	}

	if o.Status != coordinator.StatusSuccess {
		return fmt.Errorf("%s", format.VerifyOutcome(o))
	}
	fmt.Fprintln(ctx.Out, format.AttendanceSummary(o.Value))

	if c.CSV || c.Output != "" {
		return c.writeCSV(ctx, o.Value)
	}
	return nil
}

func (c *CheckCmd) writeCSV(ctx *Context, r *verify.Report) error {
	path := c.Output
	if path == "" {
		path = r.CSVFilename()
	}

	var w io.Writer = ctx.Out
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create CSV file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := r.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if path != "-" {
		ctx.printf("Report saved to %s\n", path)
	}
	return nil
}
