// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Line is one log message as handed to sinks.
	Line struct {
		Time  time.Time
		Level slog.Level
		Text  string
	}

	// Sink accepts formatted lines. WriteLine is only ever called from the
	// consumer goroutine.
	Sink interface {
		WriteLine(Line) error
	}

	// SinkFunc adapts a function to Sink.
	SinkFunc func(Line) error

	// Logger queues lines and delivers them to sinks in order. The queue is
	// unbounded, so Log never blocks on a slow sink.
	Logger struct {
		level   atomic.Int64
		sinks   atomic.Pointer[[]Sink]
		sinksMu sync.Mutex
		onError func(error)

		mu       sync.Mutex
		cond     *sync.Cond
		queue    []Line
		enqueued uint64
		written  uint64
		closed   bool
		done     chan struct{}
	}

	// Option configures a Logger.
	Option func(*Logger)
)

// WriteLine implements Sink.
func (f SinkFunc) WriteLine(l Line) error { return f(l) }

// WithLevel sets the initial minimum level.
func WithLevel(level slog.Level) Option {
	return func(l *Logger) {
		l.level.Store(int64(level))
	}
}

// WithSinks registers sinks at construction.
func WithSinks(sinks ...Sink) Option {
	return func(l *Logger) {
		s := append([]Sink(nil), sinks...)
		l.sinks.Store(&s)
	}
}

// WithErrorHandler receives sink write errors. By default they are printed to
// stderr.
func WithErrorHandler(fn func(error)) Option {
	return func(l *Logger) {
		l.onError = fn
	}
}

var defaultLogger = sync.OnceValue(func() *Logger { return New() })

// Default returns the process-wide logger. It starts with no sinks at Info.
func Default() *Logger { return defaultLogger() }

// New starts a logger and its consumer goroutine.
func New(opts ...Option) *Logger {
	l := &Logger{
		done: make(chan struct{}),
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		},
	}
	l.cond = sync.NewCond(&l.mu)
	l.level.Store(int64(slog.LevelInfo))
	l.sinks.Store(&[]Sink{})
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Level returns the minimum level.
func (l *Logger) Level() slog.Level { return slog.Level(l.level.Load()) }

// SetLevel changes the minimum level. Lines already queued are filtered
// against the level in effect when they are written.
func (l *Logger) SetLevel(level slog.Level) { l.level.Store(int64(level)) }

// Enabled reports whether lines at level pass the filter.
func (l *Logger) Enabled(level slog.Level) bool { return level >= l.Level() }

// AddSink registers s after the existing sinks.
func (l *Logger) AddSink(s Sink) {
	l.sinksMu.Lock()
	defer l.sinksMu.Unlock()
	next := append(append([]Sink(nil), *l.sinks.Load()...), s)
	l.sinks.Store(&next)
}

// Sinks returns the registered sinks in registration order.
func (l *Logger) Sinks() []Sink {
	return append([]Sink(nil), *l.sinks.Load()...)
}

// Log enqueues a message. Lines logged after Close are discarded.
func (l *Logger) Log(level slog.Level, msg string) {
	l.enqueue(Line{Time: time.Now(), Level: level, Text: msg})
}

// Logf formats and enqueues a message.
func (l *Logger) Logf(level slog.Level, format string, args ...any) {
	l.Log(level, fmt.Sprintf(format, args...))
}

// Debug logs at slog.LevelDebug.
func (l *Logger) Debug(msg string) { l.Log(slog.LevelDebug, msg) }

// Info logs at slog.LevelInfo.
func (l *Logger) Info(msg string) { l.Log(slog.LevelInfo, msg) }

// Warn logs at slog.LevelWarn.
func (l *Logger) Warn(msg string) { l.Log(slog.LevelWarn, msg) }

// Error logs at slog.LevelError.
func (l *Logger) Error(msg string) { l.Log(slog.LevelError, msg) }

func (l *Logger) enqueue(line Line) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, line)
	l.enqueued++
	l.cond.Broadcast()
}

// Flush blocks until every line enqueued before the call has been written.
func (l *Logger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	target := l.enqueued
	for l.written < target && !l.stopped() {
		l.cond.Wait()
	}
}

// Close drains the queue, stops the consumer and closes sinks that implement
// io.Closer. Calling Close again is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
	<-l.done

	var errs []error
	for _, s := range l.Sinks() {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// stopped is called with mu held.
func (l *Logger) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Logger) run() {
	defer func() {
		l.mu.Lock()
		close(l.done)
		l.cond.Broadcast()
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		l.write(batch)

		l.mu.Lock()
		l.written += uint64(len(batch))
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

func (l *Logger) write(batch []Line) {
	sinks := *l.sinks.Load()
	for _, line := range batch {
		if !l.Enabled(line.Level) {
			continue
		}
		for _, s := range sinks {
			if err := s.WriteLine(line); err != nil && l.onError != nil {
				l.onError(err)
			}
		}
	}
}

// ParseLevel accepts debug, info, warn and error (case-insensitive), with an
// optional offset such as "info+2". An empty string is Info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
