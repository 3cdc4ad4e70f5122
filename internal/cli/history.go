package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/format"
	"github.com/perbu/presensi/internal/service"
)

// Run executes the history command
func (c *HistoryCmd) Run(ctx *Context) error {
	database, err := ctx.DB()
	if err != nil {
		return err
	}
	history := service.NewHistoryService(database, ctx.Logger)

	if c.ID != "" {
		return showTask(ctx, history, c.ID)
	}

	class := c.Class
	if class == "all" {
		class = ""
	}
	tasks, err := history.List(class, c.Limit)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(tasks) == 0 {
		ctx.printf("No tasks recorded\n")
		return nil
	}

	switch c.Format {
	case "json":
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	default:
		return outputTable(ctx, tasks)
	}
}

func outputTable(ctx *Context, tasks []*db.Task) error {
	w := tabwriter.NewWriter(ctx.Out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tCLASS\tSTATUS\tADMITTED\tELAPSED\tDETAIL")
	for _, t := range tasks {
		admitted := ""
		if t.AdmittedAt.Valid {
			admitted = t.AdmittedAt.Time.Local().Format("2006-01-02 15:04:05")
		}
		elapsed := ""
		if t.Finished() {
			elapsed = t.Elapsed().String()
		}
		detail := t.Payload
		if t.ErrorKind != "" {
			detail = t.ErrorKind + ": " + t.Detail
		}
		if !ctx.Verbose && len([]rune(detail)) > 50 {
			detail = string([]rune(detail)[:47]) + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Class, t.Status, admitted, elapsed, detail)
	}
	return nil
}

func showTask(ctx *Context, history *service.HistoryService, id string) error {
	t, err := history.Get(id)
	if err != nil {
		return fmt.Errorf("failed to get task %s: %w", id, err)
	}

	fmt.Fprintf(ctx.Out, "Task:     %s\n", t.ID)
	fmt.Fprintf(ctx.Out, "Class:    %s\n", t.Class)
	fmt.Fprintf(ctx.Out, "Status:   %s\n", t.Status)
	if t.Payload != "" {
		fmt.Fprintf(ctx.Out, "Question: %s\n", t.Payload)
	}
	if t.ErrorKind != "" {
		fmt.Fprintf(ctx.Out, "Error:    %s: %s\n", t.ErrorKind, t.Detail)
	}
	if t.Finished() {
		fmt.Fprintf(ctx.Out, "Elapsed:  %s\n", t.Elapsed())
	}

	if t.Status != db.StatusSuccess {
		return nil
	}
	fmt.Fprintln(ctx.Out)
	if t.Class == "exclusive" {
		report, err := history.Report(t)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, format.AttendanceSummary(report))
		return nil
	}
	fmt.Fprintln(ctx.Out, t.Result)
	return nil
}

// Run executes the prune command
func (c *PruneCmd) Run(ctx *Context) error {
	database, err := ctx.DB()
	if err != nil {
		return err
	}
	n, err := service.NewHistoryService(database, ctx.Logger).Prune(c.OlderThan)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	ctx.printf("Removed %d task(s)\n", n)
	return nil
}
