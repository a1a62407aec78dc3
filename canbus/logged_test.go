package canbus

import (
	"context"
	"log/slog"
	"testing"
)

type recordSink struct {
	records []slog.Record
}

func (s *recordSink) Enabled(context.Context, slog.Level) bool { return true }
func (s *recordSink) Handle(_ context.Context, r slog.Record) error {
	s.records = append(s.records, r.Clone())
	return nil
}
func (s *recordSink) WithAttrs(attrs []slog.Attr) slog.Handler { return s }
func (s *recordSink) WithGroup(name string) slog.Handler       { return s }

func hasSlogMsg(records []slog.Record, level slog.Level, msg string) bool {
	for _, r := range records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

func TestLoggedBus_WriteAndReadLogging(t *testing.T) {
	ctx := context.Background()
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	logger := slog.New(sink)

	sender := NewLoggedBus(lb.Open(), logger, slog.LevelInfo, LogWrite, nil)
	receiver := NewLoggedBus(lb.Open(), logger, slog.LevelInfo, LogRead, nil)
	defer sender.Close()
	defer receiver.Close()

	frame := MustFrame(0x123, []byte{1, 2, 3})
	if err := sender.Send(ctx, frame); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := receiver.Receive(ctx); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if !hasSlogMsg(sink.records, slog.LevelInfo, "canbus send") {
		t.Fatalf("expected write log entry")
	}
	if !hasSlogMsg(sink.records, slog.LevelInfo, "canbus receive") {
		t.Fatalf("expected read log entry")
	}
}

func TestLoggedBus_FilterAndErrors(t *testing.T) {
	ctx := context.Background()
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	logger := slog.New(sink)

	sender := NewLoggedBus(lb.Open(), logger, slog.LevelDebug, LogAll, ByID(0x340))
	if err := sender.Send(ctx, MustFrame(0x123, []byte{1})); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("filtered frame should not be logged, got %d records", len(sink.records))
	}

	_ = sender.Close()
	if err := sender.Send(ctx, MustFrame(0x340, []byte{1})); err == nil {
		t.Fatalf("send on closed endpoint should fail")
	}
	if !hasSlogMsg(sink.records, slog.LevelError, "canbus send error") {
		t.Fatalf("expected send error entry")
	}
}
