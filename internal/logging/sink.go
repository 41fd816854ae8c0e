// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// FileTimeFormat is the timestamp layout of FileSink lines.
const FileTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// levelColors tints the level tag of console lines.
var levelColors = map[log.Level]lipgloss.Color{
	log.DebugLevel: lipgloss.Color("63"),
	log.InfoLevel:  lipgloss.Color("39"),
	log.WarnLevel:  lipgloss.Color("214"),
	log.ErrorLevel: lipgloss.Color("196"),
}

type (
	// ConsoleSink writes lines through a charmbracelet/log logger, which
	// styles the level tag when w is a terminal.
	ConsoleSink struct {
		out *log.Logger
	}

	// FileSink appends timestamped lines to a file.
	FileSink struct {
		mu   sync.Mutex
		path string
		f    *os.File
	}
)

// NewConsoleSink writes to w, or to stderr when w is nil.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stderr
	}
	// Level filtering already happened in the Logger.
	out := log.NewWithOptions(w, log.Options{Level: log.DebugLevel})
	styles := log.DefaultStyles()
	for level, color := range levelColors {
		styles.Levels[level] = lipgloss.NewStyle().
			SetString(strings.ToUpper(level.String())).
			Bold(level >= log.WarnLevel).
			Foreground(color)
	}
	out.SetStyles(styles)
	return &ConsoleSink{out: out}
}

// WriteLine implements Sink.
func (c *ConsoleSink) WriteLine(l Line) error {
	c.out.Log(consoleLevel(l.Level), l.Text)
	return nil
}

// consoleLevel maps slog levels onto the nearest charmbracelet/log level;
// both use the same numeric scale.
func consoleLevel(level slog.Level) log.Level {
	switch {
	case level >= slog.LevelError:
		return log.ErrorLevel
	case level >= slog.LevelWarn:
		return log.WarnLevel
	case level >= slog.LevelInfo:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

// levelTag pads the level to a fixed width.
func levelTag(level slog.Level) string {
	return fmt.Sprintf("%-5s", level.String())
}

// OpenFileSink opens path for appending, creating it and its directory.
func OpenFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Path returns the file path.
func (s *FileSink) Path() string { return s.path }

// WriteLine implements Sink.
func (s *FileSink) WriteLine(l Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("log file %s is closed", s.path)
	}
	_, err := fmt.Fprintf(s.f, "%s %s %s\n", l.Time.Format(FileTimeFormat), levelTag(l.Level), l.Text)
	return err
}

// Close closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
