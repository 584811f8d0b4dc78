package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, expected := range testCases {
		if got := ParseLevel(input); got != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", input, got, expected)
		}
	}
}

func TestConfigureTextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure("warn", "text", &buf)
	defer Configure("info", "json", nil)

	Info("hidden message")
	Warn("visible message", "source", "topic")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("Info message should be filtered at warn level, got: %s", out)
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "source=topic") {
		t.Errorf("Expected text-formatted warn line, got: %s", out)
	}
}

func TestErrorAppendsErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	Configure("debug", "json", &buf)
	defer Configure("info", "json", nil)

	Error("generation failed", errString("boom"), "prompt_type", "categories-generate")

	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("Expected error attribute in output, got: %s", out)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
