package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/perbu/presensi/internal/chat"
	"github.com/perbu/presensi/internal/config"
	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/format"
	"github.com/perbu/presensi/internal/verify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "presensi.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewRequiresChecker(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("UGM_USERNAME", "")
	t.Setenv("UGM_PASSWORD", "")

	cfg := config.DefaultConfig()
	if _, err := New(context.Background(), cfg, setupTestDB(t), discardLogger()); err == nil || !strings.Contains(err.Error(), "API_URL") {
		t.Errorf("New() error = %v, want missing checker URL", err)
	}

	cfg.Verify.APIURL = "http://checker.invalid"
	if _, err := New(context.Background(), cfg, setupTestDB(t), discardLogger()); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("New() error = %v, want missing credentials", err)
	}
}

func TestNewRequiresAdvisoryKey(t *testing.T) {
	t.Setenv("UGM_USERNAME", "user")
	t.Setenv("UGM_PASSWORD", "pass")
	t.Setenv("DEEPSEEK_API_KEY", "")

	cfg := config.DefaultConfig()
	cfg.Verify.APIURL = "http://checker.invalid"
	if _, err := New(context.Background(), cfg, setupTestDB(t), discardLogger()); err == nil {
		t.Error("New() without advisory key should fail")
	}
}

func TestRunWithoutTransports(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Web.Enabled = false
	b := NewWith(cfg, setupTestDB(t), nil, nil, discardLogger())
	if err := b.Run(context.Background()); err == nil {
		t.Error("Run() without transports should fail")
	}
}

func TestConsoleRoundTrip(t *testing.T) {
	database := setupTestDB(t)
	cfg := config.DefaultConfig()

	check := func(ctx context.Context) (*verify.Report, error) {
		return &verify.Report{Results: []verify.Student{
			{Name: "Ayu", StudentID: "21/001", Date: "2026-07-14", Status: verify.StatusAbsent},
		}}, nil
	}
	ask := func(ctx context.Context, q string) (string, error) { return "jawaban: " + q, nil }
	b := NewWith(cfg, database, check, ask, discardLogger())

	var out strings.Builder
	console := chat.NewConsole(b.Router(), strings.NewReader("ancis tanya apa itu KKN?\n"), &out)
	if err := console.Run(context.Background()); err != nil {
		t.Fatalf("console Run() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, format.AskAdmitted(1)) || !strings.Contains(got, "jawaban: apa itu KKN?") {
		t.Errorf("console output = %q", got)
	}

	tasks, err := b.Services().History.List("", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != db.StatusSuccess {
		t.Errorf("history = %+v", tasks)
	}
}
