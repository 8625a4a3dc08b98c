package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

// captureLogOutputWithInit captures output by reinitializing the logger
// to write to a buffer. This tests the actual InitLogger ReplaceAttr logic.
func captureLogOutputWithInit(level Level, format Format, f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outCh := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		outCh <- buf.String()
	}()

	InitLogger(level, format)
	f()

	w.Close()
	os.Stdout = oldStdout

	output := <-outCh
	InitLogger(LevelInfo, FormatJSON)
	return output
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{"debug json", LevelDebug, FormatJSON},
		{"info json", LevelInfo, FormatJSON},
		{"warn text", LevelWarn, FormatText},
		{"error text", LevelError, FormatText},
		{"unknown level defaults to info", Level(99), FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if defaultLogger == nil {
				t.Fatal("expected logger to be initialized")
			}
		})
	}
	InitLogger(LevelInfo, FormatJSON)
}

func TestGetLogger(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	if GetLogger() == nil {
		t.Error("expected non-nil logger")
	}
}

func TestWithOperationID(t *testing.T) {
	ctx := WithOperationID(context.Background(), "op-123")
	if got := OperationID(ctx); got != "op-123" {
		t.Errorf("OperationID() = %q, want %q", got, "op-123")
	}
}

func TestOperationIDMissing(t *testing.T) {
	if got := OperationID(context.Background()); got != "" {
		t.Errorf("OperationID() = %q, want empty", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	ctx := WithOperationID(context.Background(), "op-456")
	logger := LoggerFromContext(ctx)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	plain := LoggerFromContext(context.Background())
	if plain != defaultLogger {
		t.Error("expected default logger when no operation id set")
	}
}

func TestLoggingFunctions(t *testing.T) {
	out := captureLogOutput(func() {
		Debug("debug message", "k", "v")
		Info("info message", "k", "v")
		Warn("warn message", "k", "v")
		Error("error message", "k", "v")
	})

	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestContextLoggingFunctions(t *testing.T) {
	ctx := WithOperationID(context.Background(), "op-789")
	out := captureLogOutput(func() {
		DebugContext(ctx, "debug ctx")
		InfoContext(ctx, "info ctx")
		WarnContext(ctx, "warn ctx")
		ErrorContext(ctx, "error ctx")
	})

	if !strings.Contains(out, "op-789") {
		t.Errorf("expected output to contain operation id, got %q", out)
	}
}

func TestQuery(t *testing.T) {
	out := captureLogOutput(func() {
		Query("users", "select", 5*time.Millisecond, 3, "cached", false)
	})
	for _, want := range []string{`"table":"users"`, `"op":"select"`, `"rows":3`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestPoolEvent(t *testing.T) {
	out := captureLogOutput(func() {
		PoolEvent("acquire", "conn-1", "wait_ms", 12)
	})
	if !strings.Contains(out, "conn-1") {
		t.Errorf("expected output to contain connection id, got %q", out)
	}
}

func TestPoolError(t *testing.T) {
	out := captureLogOutput(func() {
		PoolError("finalize_statement", errors.New("boom"))
	})
	if !strings.Contains(out, "boom") {
		t.Errorf("expected output to contain error message, got %q", out)
	}
}

func TestLifecycleEvent(t *testing.T) {
	out := captureLogOutput(func() {
		LifecycleEvent("backup", "/tmp/db.sqlite", "compressed", true)
	})
	if !strings.Contains(out, "/tmp/db.sqlite") {
		t.Errorf("expected output to contain database path, got %q", out)
	}
}

func TestRetryEvent(t *testing.T) {
	out := captureLogOutput(func() {
		RetryEvent("update", 2, 200*time.Millisecond)
	})
	if !strings.Contains(out, `"attempt":2`) {
		t.Errorf("expected output to contain attempt count, got %q", out)
	}
}

func TestReplaceAttrTimestamp(t *testing.T) {
	out := captureLogOutputWithInit(LevelInfo, FormatJSON, func() {
		Info("timestamped")
	})
	if !strings.Contains(out, "timestamped") {
		t.Errorf("expected output to contain message, got %q", out)
	}
}

func TestInit(t *testing.T) {
	if defaultLogger == nil {
		t.Error("expected package init to set defaultLogger")
	}
}

func TestContextKeyType(t *testing.T) {
	if OperationIDKey != ContextKey("operation_id") {
		t.Errorf("unexpected OperationIDKey value: %v", OperationIDKey)
	}
}

func TestLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo || LevelInfo >= LevelWarn || LevelWarn >= LevelError {
		t.Error("expected level constants to be strictly increasing")
	}
}

func TestFormatConstants(t *testing.T) {
	if FormatJSON == FormatText {
		t.Error("expected FormatJSON and FormatText to differ")
	}
}
