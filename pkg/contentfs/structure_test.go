// SPDX-License-Identifier: MPL-2.0

package contentfs

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/invowk/contentpipe/pkg/kar"
)

var sourceFiles = map[string]string{
	"meta.json":        `{"name":"base","version":"1.0.0"}`,
	"textures/ui.png":  "not really a png",
	"scripts/init.lua": "print('init')",
}

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("textures/"); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func writeKar(t *testing.T, files map[string]string) string {
	t.Helper()
	b := kar.NewBuilder(kar.Header{})
	for name, data := range files {
		if err := b.Add(name, []byte(data), time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	p := filepath.Join(t.TempDir(), "source"+kar.Extension)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.WriteTo(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func paths(s Structure) []string {
	var out []string
	for _, e := range s.Entries() {
		out = append(out, e.Path)
	}
	return out
}

func TestStructures(t *testing.T) {
	t.Parallel()

	want := []string{"meta.json", "scripts/init.lua", "textures/ui.png"}
	tests := []struct {
		name     string
		location func(t *testing.T) string
		kind     Kind
	}{
		{name: "directory", location: func(t *testing.T) string { return writeDir(t, sourceFiles) }, kind: KindDirectory},
		{name: "zip", location: func(t *testing.T) string { return writeZip(t, sourceFiles) }, kind: KindZip},
		{name: "kar", location: func(t *testing.T) string { return writeKar(t, sourceFiles) }, kind: KindKar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loc := tt.location(t)
			if got := KindOf(loc); got != tt.kind {
				t.Fatalf("KindOf(%s) = %v, want %v", loc, got, tt.kind)
			}

			var o Opener
			s, err := o.Open(context.Background(), loc)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()

			if got := paths(s); !slices.Equal(got, want) {
				t.Errorf("entries = %v, want %v", got, want)
			}
			if !s.Has("scripts/init.lua") || s.Has("scripts") || s.Has("missing.txt") {
				t.Error("Has reported wrong membership")
			}

			data, err := ReadEntry(context.Background(), s, "scripts/init.lua")
			if err != nil || string(data) != "print('init')" {
				t.Errorf("ReadEntry = %q, %v", data, err)
			}

			if _, err := s.Open(context.Background(), "missing.txt"); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("expected ErrNotExist, got %v", err)
			}
		})
	}
}

func TestDirStructure_SkipsHidden(t *testing.T) {
	t.Parallel()
	root := writeDir(t, map[string]string{
		"meta.json":      "{}",
		".git/config":    "x",
		"textures/.keep": "",
		"textures/a.png": "x",
	})
	s, err := OpenDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(s); !slices.Equal(got, []string{"meta.json", "textures/a.png"}) {
		t.Errorf("unexpected entries %v", got)
	}
}

func TestDirStructure_CanceledContext(t *testing.T) {
	t.Parallel()
	s, err := OpenDir(writeDir(t, sourceFiles))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Open(ctx, "meta.json"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOpener_Errors(t *testing.T) {
	t.Parallel()

	var o Opener
	if _, err := o.Open(context.Background(), "s3://bucket/x"); !errors.Is(err, ErrUnsupportedLocation) {
		t.Errorf("bucket without client: expected ErrUnsupportedLocation, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Open(context.Background(), file); !errors.Is(err, ErrUnsupportedLocation) {
		t.Errorf("plain file: expected ErrUnsupportedLocation, got %v", err)
	}
	if _, err := o.Open(context.Background(), filepath.Join(t.TempDir(), "nope")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing dir: expected ErrNotExist, got %v", err)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()
	tests := map[string]Kind{
		"content/base":          KindDirectory,
		"content/mod.zip":       KindZip,
		"content/MOD.ZIP":       KindZip,
		"content/packed.kar":    KindKar,
		"s3://assets/packs/mod": KindBucket,
	}
	for loc, want := range tests {
		if got := KindOf(loc); got != want {
			t.Errorf("KindOf(%q) = %v, want %v", loc, got, want)
		}
	}
	if !IsArchive("a.zip") || !IsArchive("a.kar") || IsArchive("a.png") {
		t.Error("IsArchive misclassified")
	}
	if KindBucket.String() != "bucket" || Kind(42).String() != "kind(42)" {
		t.Error("unexpected Kind.String")
	}
}

func TestNewZipStructure(t *testing.T) {
	t.Parallel()
	data, err := os.ReadFile(writeZip(t, map[string]string{"font.json": "{}", "atlas.png": "px"}))
	if err != nil {
		t.Fatal(err)
	}
	z, err := NewZipStructure(data)
	if err != nil {
		t.Fatal(err)
	}
	if !z.Has("font.json") || !z.Has("atlas.png") {
		t.Errorf("unexpected entries %v", paths(z))
	}
	if err := z.Close(); err != nil {
		t.Errorf("Close on in-memory zip: %v", err)
	}
	if _, err := NewZipStructure([]byte("not a zip")); err == nil {
		t.Error("expected error for garbage")
	}
}
