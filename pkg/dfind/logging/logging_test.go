package logging_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/dfind/pkg/dfind/logging"
)

// Tests in this file mutate the package's global state and do not run in
// parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{" error ", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, logging.ErrInvalidLevel) {
			t.Errorf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_InvalidLevels(t *testing.T) {
	dir := t.TempDir()

	cfgs := []logging.Config{
		{Level: "nope", Path: filepath.Join(dir, "a.log")},
		{Level: "info", Path: filepath.Join(dir, "b.log"), ConsoleLevel: "nope"},
		{Level: "info", Path: filepath.Join(dir, "c.log"), Components: map[string]string{"scanner": "nope"}},
	}
	for i, cfg := range cfgs {
		if err := logging.Init(cfg); err == nil {
			t.Errorf("config %d: Init() succeeded, want error", i)
		}
	}
	_ = logging.Close()
}

func TestLoggerBeforeInitIsSilent(t *testing.T) {
	_ = logging.Close()

	// Must not panic or write anywhere.
	logging.Get("early").Info("nobody hears this")
}

func TestPackageLoggerPicksUpLaterInit(t *testing.T) {
	_ = logging.Close()
	logger := logging.Get("resolver")

	logPath := filepath.Join(t.TempDir(), "dfind.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger.Info("groups resolved", "count", 3)
	logger.Debug("hidden at info level")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "groups resolved") {
		t.Errorf("log missing info entry: %q", out)
	}
	if !strings.Contains(out, "resolver") {
		t.Errorf("log missing component prefix: %q", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug entry written at info level: %q", out)
	}
}

func TestComponentOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dfind.log")
	err := logging.Init(logging.Config{
		Level:      "warn",
		Path:       logPath,
		Components: map[string]string{"scanner": "debug"},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("scanner").Debug("scanner detail")
	logging.Get("report").Info("report detail")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, _ := os.ReadFile(logPath)
	out := string(data)
	if !strings.Contains(out, "scanner detail") {
		t.Errorf("override should enable debug for scanner: %q", out)
	}
	if strings.Contains(out, "report detail") {
		t.Errorf("report should be filtered at warn: %q", out)
	}
}

func TestConsoleOutput(t *testing.T) {
	var console bytes.Buffer
	err := logging.Init(logging.Config{
		Level:        "debug",
		Path:         filepath.Join(t.TempDir(), "dfind.log"),
		ConsoleLevel: "warn",
		Console:      &console,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	logger := logging.Get("digest")
	logger.Info("quiet on console")
	logger.Warn("read failed", "path", "/tmp/x")

	out := console.String()
	if strings.Contains(out, "quiet on console") {
		t.Errorf("console got info entry: %q", out)
	}
	if !strings.Contains(out, "read failed") {
		t.Errorf("console missing warn entry: %q", out)
	}
}

func TestWithAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dfind.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("cli").With("run", "abc123").Info("scan finished")
	_ = logging.Close()

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "abc123") {
		t.Errorf("With() field missing: %q", data)
	}
}

func TestConcurrentLogging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dfind.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := logging.Get("worker")
			for j := 0; j < 50; j++ {
				logger.Info("tick", "j", j)
			}
		}()
	}
	wg.Wait()

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, _ := os.ReadFile(logPath)
	if got := strings.Count(string(data), "tick"); got != 400 {
		t.Errorf("got %d entries, want 400", got)
	}
}

func TestDefaultLogPath(t *testing.T) {
	p := logging.DefaultLogPath()
	if filepath.Base(p) != "dfind.log" {
		t.Errorf("DefaultLogPath() = %q, want dfind.log basename", p)
	}
	if filepath.Base(filepath.Dir(p)) != "dfind" {
		t.Errorf("DefaultLogPath() = %q, want dfind directory", p)
	}
}
