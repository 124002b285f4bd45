package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithMemberID(ctx, "member-7")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"member_id\":\"member-7\"")) {
		t.Fatalf("expected member_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected no stack when warn stack disabled")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}
