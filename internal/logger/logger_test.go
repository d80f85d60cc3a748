package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		wantErr bool
	}{
		{"prod", "prod", "", false},
		{"local with level", "local", "warn", false},
		{"unknown env", "staging", "", true},
		{"bad level", "dev", "loud", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level, "")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && l == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recollect.log")
	l, err := NewLogger("dev", "info", path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info("hello file")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain output")
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}
	l := zap.NewExample()
	if got := FromContext(ContextWithLogger(context.Background(), l)); got != l {
		t.Error("expected stored logger")
	}
}

func TestWatermillAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewWatermillAdapter(zap.New(core))

	a.Error("publish failed", errors.New("closed"), watermill.LogFields{"topic": "feedback"})
	a.With(watermill.LogFields{"sub": "1"}).Info("subscribed", nil)
	a.Trace("noise", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (trace filtered), got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel || entries[0].ContextMap()["topic"] != "feedback" {
		t.Errorf("unexpected error entry: %+v", entries[0])
	}
	if entries[1].Level != zapcore.DebugLevel || entries[1].ContextMap()["sub"] != "1" {
		t.Errorf("unexpected info entry: %+v", entries[1])
	}
}
