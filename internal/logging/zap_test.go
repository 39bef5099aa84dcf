package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WithAddsPersistentFields(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	child := l.With(Component("scheduler"))
	child.Info("tick", Field{Key: "due", Value: 3})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["component"] != "scheduler" {
		t.Errorf("expected component=scheduler, got %v", ctx["component"])
	}
	if ctx["due"] != int64(3) {
		t.Errorf("expected due=3, got %v (%T)", ctx["due"], ctx["due"])
	}
}

func TestZapLogger_Levels(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewFromZap(zap.New(core))

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown", Err(errors.New("boom")))

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries at warn+, got %d", logs.Len())
	}
	if got := logs.All()[1].ContextMap()["error"]; got != "boom" {
		t.Errorf("expected error=boom, got %v", got)
	}
}

func TestNewZapLogger_RejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	if _, err := NewZapLogger(Config{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewZapLogger_RejectsBadLevel(t *testing.T) {
	t.Parallel()
	if _, err := NewZapLogger(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for bad level")
	}
}

func TestErr_NilError(t *testing.T) {
	t.Parallel()
	f := Err(nil)
	if f.Key != "error" || f.Value != nil {
		t.Errorf("unexpected field %+v", f)
	}
}
