package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_ConsoleAndFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "app.log")
	var console bytes.Buffer

	l, closer := New(Options{
		Env:          "prod",
		ConsoleLevel: "warn",
		FileLevel:    "debug",
		File:         logFile,
		App:          "dynsched",
		Console:      &console,
	})

	l.Debug("debug message")
	l.Warn("warn message", "name", "report")

	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "debug message") || !strings.Contains(string(content), "warn message") {
		t.Errorf("file must contain both messages, got %s", content)
	}

	out := console.String()
	if strings.Contains(out, "debug message") {
		t.Error("console must not contain debug message at warn level")
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "app=dynsched") {
		t.Errorf("unexpected console output: %s", out)
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	l, closer := New(Options{App: "dynsched", Console: &console})
	defer closer.Close()

	l.Debug("hidden")
	l.Info("visible")

	if strings.Contains(console.String(), "hidden") {
		t.Error("default console level must be info")
	}
	if !strings.Contains(console.String(), "visible") {
		t.Error("info message missing")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelDebug,
		"bogus":   slog.LevelDebug,
	}
	for in, want := range tests {
		if got := levelFromString(in, slog.LevelDebug); got != want {
			t.Errorf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func decodeJSON(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestRedactingHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewRedactingHandler(slog.NewJSONHandler(&buf, nil), DefaultSensitiveKeys)
	l := slog.New(h)

	l.Info("connect",
		"password", "hunter2",
		"dsn", "postgres://app:hunter2@db:5432/sched",
		"note", "sk-abcdefghijklmnop",
		"name", "report",
	)

	m := decodeJSON(t, &buf)
	if m["password"] != "[REDACTED]" {
		t.Errorf("password not redacted: %v", m["password"])
	}
	if strings.Contains(m["dsn"].(string), "hunter2") {
		t.Errorf("dsn password leaked: %v", m["dsn"])
	}
	if m["note"] != "[REDACTED]" {
		t.Errorf("api key not redacted: %v", m["note"])
	}
	if m["name"] != "report" {
		t.Errorf("regular attribute changed: %v", m["name"])
	}
}

func TestRedactingHandler_GroupsAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil), DefaultSensitiveKeys)).
		With("webhook_secret", "s3cr3t")

	l.Info("telegram", slog.Group("bot", slog.String("token", "123:abc"), slog.Int("workers", 2)))

	m := decodeJSON(t, &buf)
	if m["webhook_secret"] != "[REDACTED]" {
		t.Errorf("With attribute not redacted: %v", m["webhook_secret"])
	}
	bot := m["bot"].(map[string]any)
	if bot["token"] != "[REDACTED]" {
		t.Errorf("grouped token not redacted: %v", bot["token"])
	}
	if bot["workers"] != float64(2) {
		t.Errorf("grouped attribute changed: %v", bot["workers"])
	}
}

func TestMultiHandler(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	l := slog.New(h).With("component", "test")

	l.Info("info only")
	l.Error("both")

	if !strings.Contains(infoBuf.String(), "info only") || !strings.Contains(infoBuf.String(), "both") {
		t.Errorf("info handler output: %s", infoBuf.String())
	}
	if strings.Contains(errBuf.String(), "info only") || !strings.Contains(errBuf.String(), "both") {
		t.Errorf("error handler output: %s", errBuf.String())
	}
	if !strings.Contains(errBuf.String(), `"component":"test"`) {
		t.Errorf("WithAttrs not propagated: %s", errBuf.String())
	}
}
