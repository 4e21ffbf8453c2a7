package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}

	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  LogLevel
		pretty bool
		emit   func(l zerolog.Logger)
		want   string
	}{
		{"info_level", LevelInfo, false, func(l zerolog.Logger) { l.Info().Msg("aggregation done") }, "aggregation done"},
		{"debug_level", LevelDebug, false, func(l zerolog.Logger) { l.Debug().Msg("fetched page") }, "fetched page"},
		{"warn_level", LevelWarn, false, func(l zerolog.Logger) { l.Warn().Msg("throttling") }, "throttling"},
		{"error_level", LevelError, false, func(l zerolog.Logger) { l.Error().Msg("blocked") }, "blocked"},
		{"pretty", LevelInfo, true, func(l zerolog.Logger) { l.Info().Msg("console line") }, "console line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Pretty: tt.pretty, Output: buf})

			tt.emit(logger)

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Expected output to contain %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestSetup_NilOutput(t *testing.T) {
	// Must not panic.
	Setup(Config{Level: LevelError})
	Setup(DefaultConfig())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{" Error ", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("aggregator")
	logger.Info().Msg("test message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "aggregator" {
		t.Errorf("component = %v, want aggregator", entry["component"])
	}
	if entry["message"] != "test message" {
		t.Errorf("message = %v, want test message", entry["message"])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("test")

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at Warn level")
	}
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"ok", http.StatusOK, "debug"},
		{"bad request", http.StatusBadRequest, "warn"},
		{"bad gateway", http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: LevelDebug, Output: buf})

			handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/characters/?sort=name&pg=2", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if entry["path"] != "/characters/" || entry["query"] != "sort=name&pg=2" {
				t.Errorf("path/query = %v/%v", entry["path"], entry["query"])
			}
			if entry["status_code"] != float64(tt.status) {
				t.Errorf("status_code = %v, want %d", entry["status_code"], tt.status)
			}
			if entry["bytes"] != float64(4) {
				t.Errorf("bytes = %v, want 4", entry["bytes"])
			}
		})
	}
}
