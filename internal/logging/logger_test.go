// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder is a Sink that keeps every line.
type recorder struct {
	mu    sync.Mutex
	lines []Line
}

func (r *recorder) WriteLine(l Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, l)
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Text
	}
	return out
}

func newTestLogger(t *testing.T, opts ...Option) (*Logger, *recorder) {
	t.Helper()
	rec := &recorder{}
	l := New(append([]Option{WithSinks(rec)}, opts...)...)
	t.Cleanup(func() { _ = l.Close() })
	return l, rec
}

func TestLogger_SingleProducerOrder(t *testing.T) {
	t.Parallel()
	l, rec := newTestLogger(t)

	var want []string
	for i := range 500 {
		msg := fmt.Sprintf("line %d", i)
		want = append(want, msg)
		l.Info(msg)
	}
	l.Flush()

	if got := rec.texts(); !slices.Equal(got, want) {
		t.Fatalf("lines out of order: got %d lines, first mismatch near %v", len(got), firstDiff(got, want))
	}
}

func firstDiff(a, b []string) int {
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			return i
		}
	}
	return min(len(a), len(b))
}

func TestLogger_ConcurrentProducersKeepTheirOwnOrder(t *testing.T) {
	t.Parallel()
	l, rec := newTestLogger(t)

	const producers, perProducer = 8, 100
	var wg sync.WaitGroup
	for p := range producers {
		wg.Go(func() {
			for i := range perProducer {
				l.Logf(slog.LevelInfo, "%d:%d", p, i)
			}
		})
	}
	wg.Wait()
	l.Flush()

	next := make([]int, producers)
	lines := rec.texts()
	if len(lines) != producers*perProducer {
		t.Fatalf("got %d lines, want %d", len(lines), producers*perProducer)
	}
	for _, line := range lines {
		var p, i int
		if _, err := fmt.Sscanf(line, "%d:%d", &p, &i); err != nil {
			t.Fatal(err)
		}
		if i != next[p] {
			t.Fatalf("producer %d: got line %d, want %d", p, i, next[p])
		}
		next[p]++
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	t.Parallel()
	l, rec := newTestLogger(t, WithLevel(slog.LevelWarn))

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")
	l.Flush()
	if got := rec.texts(); !slices.Equal(got, []string{"warn", "error"}) {
		t.Errorf("got %v", got)
	}

	l.SetLevel(slog.LevelDebug)
	if !l.Enabled(slog.LevelDebug) {
		t.Fatal("debug should be enabled")
	}
	l.Debug("debug again")
	l.Flush()
	if got := rec.texts(); got[len(got)-1] != "debug again" {
		t.Errorf("level change not applied: %v", got)
	}
}

func TestLogger_SinksInRegistrationOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var trace []string
	sink := func(name string) Sink {
		return SinkFunc(func(l Line) error {
			mu.Lock()
			defer mu.Unlock()
			trace = append(trace, name+":"+l.Text)
			return nil
		})
	}
	l := New(WithSinks(sink("a")))
	l.AddSink(sink("b"))
	l.Info("x")
	l.Info("y")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	want := []string{"a:x", "b:x", "a:y", "b:y"}
	if !slices.Equal(trace, want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if len(l.Sinks()) != 2 {
		t.Errorf("Sinks = %d", len(l.Sinks()))
	}
}

func TestLogger_SinkErrorsAreReported(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var reported []error
	boom := errors.New("disk full")
	l := New(
		WithSinks(SinkFunc(func(Line) error { return boom })),
		WithErrorHandler(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}),
	)
	l.Error("x")
	l.Flush()
	_ = l.Close()

	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Errorf("reported %v", reported)
	}
}

func TestLogger_CloseDrainsAndDiscardsLater(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	l := New(WithSinks(rec))

	for i := range 50 {
		l.Logf(slog.LevelInfo, "%d", i)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if n := len(rec.texts()); n != 50 {
		t.Errorf("Close wrote %d lines, want 50", n)
	}

	l.Info("late")
	l.Flush()
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if n := len(rec.texts()); n != 50 {
		t.Errorf("line logged after Close was written")
	}
}

func TestDefault_IsShared(t *testing.T) {
	t.Parallel()
	if Default() != Default() {
		t.Error("Default must return the same logger")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"info+2", slog.LevelInfo + 2, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConsoleSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)
	if err := s.WriteLine(Line{Level: slog.LevelWarn, Text: "careful"}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteLine(Line{Level: slog.LevelError + 2, Text: "broken"}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteLine(Line{Level: slog.LevelDebug - 4, Text: "noise"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []struct{ level, text string }{{"WARN", "careful"}, {"ERROR", "broken"}, {"DEBUG", "noise"}}
	if len(lines) != len(want) {
		t.Fatalf("unexpected console output %q", buf.String())
	}
	for i, w := range want {
		if !strings.Contains(lines[i], w.level) || !strings.HasSuffix(lines[i], w.text) {
			t.Errorf("line %d = %q, want level %s and text %q", i, lines[i], w.level, w.text)
		}
	}
}

func TestFileSink_Appends(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "pipeline.log")
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, text := range []string{"first", "second"} {
		s, err := OpenFileSink(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.WriteLine(Line{Time: ts, Level: slog.LevelInfo, Text: text}); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteLine(Line{Text: "closed"}); err == nil {
			t.Error("write after Close should fail")
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "2026-03-01T12:00:00.000Z INFO  first\n2026-03-01T12:00:00.000Z INFO  second\n"
	if string(data) != want {
		t.Errorf("file content = %q, want %q", data, want)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	l, rec := newTestLogger(t)
	logger := slog.New(NewHandler(l))

	logger.Debug("hidden")
	logger.With("stage", "shaders").WithGroup("entry").Info("content entry failed",
		"path", "shaders/ui.glsl",
		"error", errors.New("no loader for .glsl"),
		slog.Group("size", "w", 2, "h", 3),
		"empty", "")
	logger.Log(context.Background(), slog.LevelError, "plain")
	l.Flush()

	want := []string{
		`content entry failed stage=shaders entry.path=shaders/ui.glsl entry.error="no loader for .glsl" entry.size.w=2 entry.size.h=3 entry.empty=""`,
		"plain",
	}
	if got := rec.texts(); !slices.Equal(got, want) {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}
