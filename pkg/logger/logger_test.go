package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func resetLogger(t *testing.T) {
	t.Helper()
	log = nil
	once = sync.Once{}
	t.Cleanup(func() {
		log = nil
		once = sync.Once{}
	})
}

func TestGetLogger_NopBeforeInit(t *testing.T) {
	resetLogger(t)
	if GetLogger() == nil {
		t.Fatal("expected no-op logger before init")
	}
	Info(context.Background(), "dropped")
	Sync()
}

func TestInitAndContextLogging(t *testing.T) {
	resetLogger(t)
	Init("development")
	if GetLogger() == nil {
		t.Fatal("expected logger initialized")
	}

	ctx := context.WithValue(context.Background(), "request_id", "req-1")
	l := WithContext(ctx)
	if l == nil {
		t.Fatal("expected contextual logger")
	}

	Info(ctx, "info")
	Debug(ctx, "debug")
	Warn(ctx, "warn")
	Error(ctx, "error")
	LogRequest(ctx, "GET", "/health", 200, 10*time.Millisecond, "127.0.0.1")
}

func TestWithContextNil(t *testing.T) {
	resetLogger(t)
	Init("development")
	//nolint:staticcheck
	if WithContext(nil) == nil {
		t.Fatal("expected base logger for nil context")
	}
}

func TestWithContextTypedRequestID(t *testing.T) {
	resetLogger(t)
	Init("development")
	ctx := context.WithValue(context.Background(), RequestIDKey, "typed-req-id")
	if WithContext(ctx) == nil {
		t.Fatal("expected logger with typed request id context")
	}
}

func TestInit_ProductionAndWithContextWithoutFields(t *testing.T) {
	resetLogger(t)
	Init("production")
	if GetLogger() == nil {
		t.Fatal("expected production logger initialized")
	}
	if WithContext(context.Background()) != GetLogger() {
		t.Fatal("expected base logger without contextual fields")
	}
}

func TestInit_PanicWhenLoggerBuildFails(t *testing.T) {
	resetLogger(t)
	origBuild := buildLogger
	t.Cleanup(func() { buildLogger = origBuild })

	buildLogger = func(zap.Config) (*zap.Logger, error) {
		return nil, errors.New("build failed")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when logger builder fails")
		}
	}()
	Init("production")
}

func TestMaskKey(t *testing.T) {
	cases := map[string]string{
		"ABCD123456": "ABCD******",
		"ABCDE":      "ABCD******",
		"ABCD":       "****",
		"":           "****",
	}
	for in, want := range cases {
		if got := MaskKey(in); got != want {
			t.Fatalf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
	if f := Key("ABCD123456"); f.String != "ABCD******" {
		t.Fatalf("unexpected field value %q", f.String)
	}
}
