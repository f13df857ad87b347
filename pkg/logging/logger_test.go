package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default pretty = true, want false")
	}
}

func TestSetup_WritesAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
	}{
		{name: "debug", level: LevelDebug},
		{name: "info", level: LevelInfo},
		{name: "warn", level: LevelWarn},
		{name: "error", level: LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			msg := "message at " + tt.name
			switch tt.level {
			case LevelDebug:
				logger.Debug().Msg(msg)
			case LevelInfo:
				logger.Info().Msg(msg)
			case LevelWarn:
				logger.Warn().Msg(msg)
			case LevelError:
				logger.Error().Msg(msg)
			}

			if !strings.Contains(buf.String(), msg) {
				t.Errorf("output %q does not contain %q", buf.String(), msg)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel}, // Defaults to info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("partition")
	logger.Info().Msg("sizing selection")

	output := buf.String()
	if !strings.Contains(output, "partition") {
		t.Errorf("output %q missing component field", output)
	}
	if !strings.Contains(output, "sizing selection") {
		t.Errorf("output %q missing message", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("fetch")

	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")
	logger.Warn().Msg("warn line")
	logger.Error().Msg("error line")

	output := buf.String()
	if strings.Contains(output, "debug line") || strings.Contains(output, "info line") {
		t.Errorf("levels below warn leaked into output: %q", output)
	}
	if !strings.Contains(output, "warn line") || !strings.Contains(output, "error line") {
		t.Errorf("warn/error lines missing from output: %q", output)
	}
}
