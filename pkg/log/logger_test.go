package log

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	emerrors "github.com/YuminosukeSato/emissions/pkg/errors"
)

func setupJSON(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	prev := GetLogger()
	t.Cleanup(func() {
		SetLogger(prev)
		emerrors.SetZerologWarnFunc(nil)
	})

	var buf bytes.Buffer
	logger, closer, err := Setup(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	t.Cleanup(func() { _ = closer.Close() })
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestSetupJSONWithFields(t *testing.T) {
	logger, buf := setupJSON(t, "info")

	logger.With(ComponentKey, "training").Info("fit done",
		OperationKey, OperationFit,
		SamplesKey, 800,
	)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["message"] != "fit done" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ComponentKey] != "training" {
		t.Errorf("component = %v", entry[ComponentKey])
	}
	if entry[SamplesKey] != 800.0 {
		t.Errorf("samples = %v", entry[SamplesKey])
	}
	if GetLogger() != logger {
		t.Error("Setup should install the global logger")
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	logger, buf := setupJSON(t, "warn")

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("records below warn leaked: %s", out)
	}
	if !strings.Contains(out, "visible warn") {
		t.Errorf("warn record missing: %s", out)
	}

	if logger.Enabled(context.Background(), LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestErrorFieldCarriesStacktrace(t *testing.T) {
	logger, buf := setupJSON(t, "debug")

	err := emerrors.NewValidationError("n_samples", "must be positive", -1)
	logger.Error("generation failed", ErrAttrKey, err)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if !strings.Contains(entry[ErrAttrKey].(string), "n_samples") {
		t.Errorf("error field = %v", entry[ErrAttrKey])
	}
	if entry[ErrorTypeKey] != "*errors.ValidationError" {
		t.Errorf("error type = %v", entry[ErrorTypeKey])
	}
	if st, _ := entry[StacktraceKey].(string); st == "" {
		t.Error("expected a stack trace from cockroachdb/errors")
	}
}

func TestWarningsRouteToLogger(t *testing.T) {
	_, buf := setupJSON(t, "info")

	emerrors.Warn(emerrors.NewMissingCategoryWarning("vehicle_type", []string{"bus"}))

	if !strings.Contains(buf.String(), "MissingCategoryWarning") {
		t.Errorf("warning not logged as structured object: %s", buf.String())
	}
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad level", cfg: Config{Level: "verbose"}},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Setup(tt.cfg)
			var vErr *emerrors.ValidationError
			if !emerrors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSetupWritesRotatedFile(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() {
		SetLogger(prev)
		emerrors.SetZerologWarnFunc(nil)
	})

	path := filepath.Join(t.TempDir(), "emissions.log")
	var terminal bytes.Buffer
	logger, closer, err := Setup(Config{Level: "info", Format: "json", File: path, MaxSizeMB: 1, Output: &terminal})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("to both sinks")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(terminal.String(), "to both sinks") {
		t.Error("terminal sink missed the record")
	}
}

func TestTestLoggerCapturesFields(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	testLogger.With(ModelNameKey, "LinearRegression").Info("fitted", RankKey, 7)
	testLogger.Debug("dropped")

	if !testLogger.ContainsField(ModelNameKey, "LinearRegression") {
		t.Error("context field missing")
	}
	if !testLogger.ContainsField(RankKey, 7.0) {
		t.Error("rank field missing")
	}
	if testLogger.ContainsMessage("dropped") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"trace", LevelInfo, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
