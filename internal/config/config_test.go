// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/issue"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// isolated returns options that never touch the real user config directory.
func isolated(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{BaseDir: t.TempDir(), ConfigDirPath: t.TempDir()}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(context.Background(), isolated(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.OverridePolicy != want.OverridePolicy || cfg.MaxTextureSize != want.MaxTextureSize {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "content" {
		t.Errorf("Roots = %v", cfg.Roots)
	}
	if cfg.HotReload.Interval != time.Second || !cfg.HotReload.Watch {
		t.Errorf("HotReload = %+v", cfg.HotReload)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
}

func TestLoad_LocalFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeFile(t, filepath.Join(opts.BaseDir, "contentpipe.cue"), `
roots: ["assets", "mods"]
override_policy: "first_wins"
workers: 8
exclude: ["**/*.psd"]
log: level: "debug"
hot_reload: interval: "250ms"
`)

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(cfg.Roots, ",") != "assets,mods" {
		t.Errorf("Roots = %v", cfg.Roots)
	}
	if p, _ := cfg.Policy(); p != content.FirstWins {
		t.Errorf("Policy = %s", p)
	}
	if cfg.Workers != 8 || cfg.Log.Level != "debug" {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.HotReload.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %s", cfg.HotReload.Interval)
	}
	// Unset keys keep their defaults.
	if cfg.MaxTextureSize != 4096 || !cfg.HotReload.Watch {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "**/*.psd" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
	if cfg.File != filepath.Join(opts.BaseDir, "contentpipe.cue") {
		t.Errorf("File = %q", cfg.File)
	}
}

func TestLoad_Resolution(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeFile(t, filepath.Join(opts.ConfigDirPath, "contentpipe.cue"), `workers: 2`)

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 2 {
		t.Errorf("user config not read: workers = %d", cfg.Workers)
	}

	// A file in the base directory wins over the user config.
	writeFile(t, filepath.Join(opts.BaseDir, "contentpipe.cue"), `workers: 3`)
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 3 {
		t.Errorf("local config not preferred: workers = %d", cfg.Workers)
	}

	// An explicit path wins over both.
	explicit := filepath.Join(t.TempDir(), "custom.cue")
	writeFile(t, explicit, `workers: 4`)
	opts.ConfigFilePath = explicit
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 4 || cfg.File != explicit {
		t.Errorf("explicit config not used: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		explicit string
		wantMsg  string
	}{
		{"missing explicit file", "", "does-not-exist.cue", "config file not found"},
		{"syntax error", "roots: [", "", "contentpipe.cue"},
		{"unknown field", `colour: "red"`, "", "colour"},
		{"bad policy", `override_policy: "random"`, "", "override_policy"},
		{"negative workers", `workers: -1`, "", "workers"},
		{"bad interval", `hot_reload: interval: "soon"`, "", "interval"},
		{"bucket without endpoint", `roots: ["s3://assets/base"]`, "", "bucket.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := isolated(t)
			if tt.file != "" {
				writeFile(t, filepath.Join(opts.BaseDir, "contentpipe.cue"), tt.file)
			}
			if tt.explicit != "" {
				opts.ConfigFilePath = filepath.Join(opts.BaseDir, tt.explicit)
			}

			_, err := NewProvider().Load(context.Background(), opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if iss, ok := issue.IssueOf(err); !ok || iss.Id() != issue.ConfigLoadFailedId {
				t.Errorf("error not linked to the config issue: %v", err)
			}
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, isolated(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	opts := isolated(t)
	writeFile(t, filepath.Join(opts.BaseDir, "contentpipe.cue"), `workers: 2`)
	writeFile(t, filepath.Join(opts.BaseDir, ".env"), "CONTENTPIPE_LOG_LEVEL=warn\nCONTENTPIPE_WORKERS=9\n")
	t.Setenv("CONTENTPIPE_WORKERS", "6")
	t.Setenv("CONTENTPIPE_ROOTS", "a,b")
	t.Setenv("CONTENTPIPE_HOT_RELOAD_INTERVAL", "2s")
	t.Cleanup(func() { _ = os.Unsetenv("CONTENTPIPE_LOG_LEVEL") })

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// The process environment beats .env, which beats the file.
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6", cfg.Workers)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn from .env", cfg.Log.Level)
	}
	if strings.Join(cfg.Roots, ",") != "a,b" {
		t.Errorf("Roots = %v", cfg.Roots)
	}
	if cfg.HotReload.Interval != 2*time.Second {
		t.Errorf("Interval = %s", cfg.HotReload.Interval)
	}
}

func TestConfigDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)

	got, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("ConfigDir = %q, want %q", got, dir)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Roots = []string{"content", "s3://assets/mods"}
	cfg.Exclude = []string{"**/*.psd"}
	cfg.HotReload.Interval = 1500 * time.Millisecond
	cfg.Bucket.Endpoint = "localhost:9000"
	cfg.Bucket.SecretKey = "hunter2"

	out := GenerateCUE(cfg)
	if strings.Contains(out, "hunter2") {
		t.Error("credentials must not be rendered")
	}

	opts := isolated(t)
	writeFile(t, filepath.Join(opts.BaseDir, "contentpipe.cue"), out)
	got, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("generated CUE does not load: %v\n%s", err, out)
	}
	if strings.Join(got.Roots, ",") != "content,s3://assets/mods" || got.HotReload.Interval != cfg.HotReload.Interval {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Bucket.Endpoint != "localhost:9000" {
		t.Errorf("Bucket = %+v", got.Bucket)
	}
}
