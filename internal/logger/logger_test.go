package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(buf *bytes.Buffer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(EncoderConfig()),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}

// Feature: storefront, Property 20: Logs are structured
// Validates: Ambient logging
func TestProperty_LogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry is a JSON object with level, timestamp and message", prop.ForAll(
		func(message string, level string) bool {
			var buf bytes.Buffer
			logger := newBufferLogger(&buf)

			switch level {
			case "debug":
				logger.Debug(message)
			case "warn":
				logger.Warn(message)
			case "error":
				logger.Error(message)
			default:
				logger.Info(message)
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}
			if entry["level"] != level {
				return false
			}
			if _, ok := entry["timestamp"]; !ok {
				return false
			}
			return entry["message"] == message
		},
		gen.AnyString(),
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 21: Error logs keep their context
// Validates: Ambient logging
func TestProperty_ErrorLogsIncludeContext(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("error entries carry the error field and a stacktrace", prop.ForAll(
		func(message string, errorMsg string) bool {
			var buf bytes.Buffer
			logger := newBufferLogger(&buf)

			logger.Error(message, zap.Error(errors.New(errorMsg)))

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}
			if entry["error"] != errorMsg {
				return false
			}
			_, ok := entry["stacktrace"]
			return ok
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductionLoggerWritesJSONToOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.log")

	logger, err := New("production", WithOutputPaths(path))
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Info("checkout completed", zap.String("order_id", "abc"))
	_ = logger.Sync()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("Expected one log line")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not JSON: %v", err)
	}
	if entry["message"] != "checkout completed" || entry["order_id"] != "abc" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestWithLevelFiltersEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")

	logger, err := New("production", WithOutputPaths(path), WithLevel(zapcore.WarnLevel))
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Info("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Expected info entry to be filtered, got %q", data)
	}
}
