package cli

import (
	"time"

	"github.com/alecthomas/kong"
)

// CLI is the root command structure for kong
type CLI struct {
	Config  string           `short:"c" help:"Config file path" type:"path"`
	DataDir string           `short:"d" name:"data-dir" help:"Data directory" type:"path"`
	Verbose bool             `short:"v" help:"Verbose output"`
	Quiet   bool             `short:"q" help:"Minimal output"`
	Debug   bool             `help:"Enable debug logging"`
	Version kong.VersionFlag `short:"V" help:"Show version"`

	Check      CheckCmd      `cmd:"" help:"Check KKN attendance now"`
	Ask        AskCmd        `cmd:"" help:"Ask the advisory model a question"`
	History    HistoryCmd    `cmd:"" help:"List recorded tasks"`
	Prune      PruneCmd      `cmd:"" help:"Delete old task history"`
	Repl       ReplCmd       `cmd:"" help:"Chat with the bot on the terminal"`
	Serve      ServeCmd      `cmd:"" help:"Run the bot with its enabled transports"`
	ShowConfig ShowConfigCmd `cmd:"" name:"show-config" help:"Show the effective configuration"`
}

// CheckCmd runs one verification
type CheckCmd struct {
	CSV    bool   `help:"Also write the report as CSV"`
	Output string `short:"o" help:"CSV file path (default kkn_attendance_YYYYMMDD.csv, '-' for stdout)" type:"path"`
}

// AskCmd submits an advisory question
type AskCmd struct {
	Question []string `arg:"" name:"question" help:"Question text"`
}

// HistoryCmd lists tasks or shows one
type HistoryCmd struct {
	ID     string `arg:"" optional:"" help:"Task ID to show"`
	Class  string `help:"Filter by class" enum:"exclusive,queued,all" default:"all"`
	Limit  int    `short:"n" help:"Number of tasks" default:"20"`
	Format string `help:"Output format" enum:"table,json" default:"table"`
}

// PruneCmd removes old history
type PruneCmd struct {
	OlderThan time.Duration `name:"older-than" help:"Delete tasks admitted before this age" default:"720h"`
}

// ReplCmd reads chat messages from stdin
type ReplCmd struct{}

// ServeCmd runs the long-lived bot
type ServeCmd struct {
	Port int    `short:"p" help:"Port to listen on (overrides config)"`
	Host string `help:"Host to bind to (overrides config)"`
}

// ShowConfigCmd prints the configuration with secrets masked
type ShowConfigCmd struct{}
