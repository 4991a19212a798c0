package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/natefinch/lumberjack"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level %s, got %s", LevelInfo, cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("Expected default format %s, got %s", FormatText, cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got '%s'", cfg.Output)
	}
	if cfg.Rotation.Enabled {
		t.Error("Expected rotation to be disabled by default")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("stderr json logger", func(t *testing.T) {
		logger, err := New(Config{Level: LevelError, Format: FormatJSON, Output: "stderr"})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		if logger.Config().Format != FormatJSON {
			t.Errorf("Expected format %s, got %s", FormatJSON, logger.Config().Format)
		}
	})

	t.Run("file logger", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "modscan.log")

		logger, err := New(Config{Level: LevelDebug, Format: FormatText, Output: logFile})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		logger.Info("file message", "station", 7)

		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "file message") {
			t.Errorf("Log file should contain message, got %q", string(data))
		}
	})

	t.Run("rotating file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "rotating.log")
		cfg := DefaultConfig()
		cfg.Output = logFile
		cfg.Rotation.Enabled = true

		writer, err := openOutput(cfg)
		if err != nil {
			t.Fatalf("Failed to open output: %v", err)
		}
		rotating, ok := writer.(*lumberjack.Logger)
		if !ok {
			t.Fatalf("Expected lumberjack writer, got %T", writer)
		}
		defer rotating.Close()
		if rotating.MaxSize != cfg.Rotation.MaxSizeMB {
			t.Errorf("Expected max size %d, got %d", cfg.Rotation.MaxSizeMB, rotating.MaxSize)
		}
	})
}

func TestJSONOutputAndHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelDebug, Format: FormatJSON}, &buf)

	logger.WithComponent("executor").WithScanID("abc").InfoScan("probe done", "10.0.0.5:502", "station", 1)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output should be valid JSON: %v", err)
	}
	for key, want := range map[string]interface{}{
		"msg":       "probe done",
		"component": "executor",
		"scan_id":   "abc",
		"target":    "10.0.0.5:502",
		"station":   float64(1),
	} {
		if entry[key] != want {
			t.Errorf("Expected %s=%v, got %v", key, want, entry[key])
		}
	}

	buf.Reset()
	logger.ErrorScan("probe failed", "10.0.0.5:502", errors.New("timeout"))
	if !strings.Contains(buf.String(), `"error":"timeout"`) {
		t.Errorf("Expected error field, got %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelWarn, Format: FormatText}, &buf)

	logger.Info("hidden")
	logger.Warn("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Error("Warn message should be written")
	}
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(Config{Level: LevelDebug, Format: FormatText}, &buf))

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line")

	for _, line := range []string{"debug line", "info line", "warn line", "error line"} {
		if !strings.Contains(buf.String(), line) {
			t.Errorf("Expected %q in output", line)
		}
	}
}
