// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// startWatcher runs w until the test ends.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DebouncesAcrossRoots(t *testing.T) {
	t.Parallel()
	base, mod := t.TempDir(), t.TempDir()

	var (
		mu        sync.Mutex
		calls     int
		collected []string
	)
	done := make(chan struct{}, 1)
	w, err := New(Config{
		Roots:    []string{base, mod},
		Debounce: 100 * time.Millisecond,
		Logger:   quiet(),
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			collected = append(collected, changed...)
			select {
			case done <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)

	write(t, filepath.Join(base, "a.lua"))
	time.Sleep(10 * time.Millisecond)
	write(t, filepath.Join(mod, "b.lua"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected one debounced callback, got %d", calls)
	}
	for _, want := range []string{filepath.Join(w.Roots()[0], "a.lua"), filepath.Join(w.Roots()[1], "b.lua")} {
		if !slices.Contains(collected, want) {
			t.Errorf("%s missing from %v", want, collected)
		}
	}
}

func TestWatcher_IgnoresAndNewDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	changes := make(chan []string, 10)
	w, err := New(Config{
		Roots:    []string{root},
		Ignore:   []string{"scratch/**"},
		Debounce: 50 * time.Millisecond,
		Logger:   quiet(),
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	startWatcher(t, w)

	write(t, filepath.Join(root, "scratch", "x.lua"))
	write(t, filepath.Join(root, "init.lua.swp"))
	select {
	case got := <-changes:
		for _, p := range got {
			if filepath.Base(p) == "x.lua" || filepath.Base(p) == "init.lua.swp" {
				t.Fatalf("ignored path reported: %v", got)
			}
		}
	case <-time.After(300 * time.Millisecond):
	}

	// New directories are picked up so nested writes are reported.
	if err := os.Mkdir(filepath.Join(root, "textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(w.Roots()[0], "textures", "ui.png")
	write(t, target)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-changes:
			if slices.Contains(got, target) {
				return
			}
		case <-deadline:
			t.Fatal("write in new directory was not reported")
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrNoRoots) {
		t.Errorf("expected ErrNoRoots, got %v", err)
	}
	if _, err := New(Config{Roots: []string{t.TempDir()}, Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("expected invalid pattern error")
	}
	if _, err := New(Config{Roots: []string{filepath.Join(t.TempDir(), "missing")}, Logger: quiet()}); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestWatcher_RunOnce(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Roots: []string{t.TempDir()}, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	startWatcher(t, w)
	time.Sleep(10 * time.Millisecond)
	if err := w.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestWatcher_IsIgnored(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := New(Config{Roots: []string{root}, Ignore: []string{"build/**"}, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })
	abs := w.Roots()[0]

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(abs, "textures", "ui.png"), false},
		{filepath.Join(abs, ".git", "HEAD"), true},
		{filepath.Join(abs, "scripts", "init.lua~"), true},
		{filepath.Join(abs, ".DS_Store"), true},
		{filepath.Join(abs, "build"), true},
		{filepath.Join(abs, "build", "out.kar"), true},
		{filepath.Join(filepath.Dir(abs), "elsewhere.lua"), true},
	}
	for _, tt := range tests {
		if got := w.isIgnored(tt.path); got != tt.want {
			t.Errorf("isIgnored(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if !slices.Contains(DefaultIgnores(), "**/.git/**") {
		t.Error("default ignores should cover .git")
	}
}
