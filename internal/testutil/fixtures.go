// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"slices"
	"testing"
)

// PNG encodes a w x h gradient image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Zip builds a zip archive in memory. Entries are written in name order.
func Zip(t testing.TB, files map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// FontPackage builds a .font archive whose atlas is w x h and whose metrics
// declare the same size.
func FontPackage(t testing.TB, w, h int) []byte {
	t.Helper()
	layout := map[string]any{
		"atlas":   map[string]any{"type": "msdf", "distanceRange": 4, "size": 32, "width": w, "height": h, "yOrigin": "bottom"},
		"metrics": map[string]any{"emSize": 1, "lineHeight": 1.25, "ascender": -0.95, "descender": 0.3},
		"glyphs": []any{
			map[string]any{"unicode": 'A', "advance": 0.6,
				"planeBounds": map[string]any{"left": 0, "bottom": 0, "right": 0.6, "top": 0.7},
				"atlasBounds": map[string]any{"left": 0, "bottom": 0, "right": w, "top": h}},
			map[string]any{"unicode": ' ', "advance": 0.25},
		},
		"kerning": []any{},
	}
	doc, err := json.Marshal(layout)
	if err != nil {
		t.Fatalf("marshal font layout: %v", err)
	}
	return Zip(t, map[string][]byte{"font.json": doc, "atlas.png": PNG(t, w, h)})
}

// MetaJSON returns a manifest for a source named name.
func MetaJSON(t testing.TB, name string, deps ...string) []byte {
	t.Helper()
	meta := map[string]any{"name": name, "version": "1.0.0"}
	if len(deps) > 0 {
		meta["dependencies"] = deps
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	return data
}

// WriteSource creates a directory source root/name with a manifest and the
// given files (slash paths) and returns its path.
func WriteSource(t testing.TB, root, name string, deps []string, files map[string][]byte) string {
	t.Helper()
	dir := filepath.Join(root, name)
	MustWriteFile(t, filepath.Join(dir, "meta.json"), MetaJSON(t, name, deps...))
	for p, data := range files {
		MustWriteFile(t, filepath.Join(dir, filepath.FromSlash(p)), data)
	}
	return dir
}

// WriteZipSource writes a zip source archive root/name.zip.
func WriteZipSource(t testing.TB, root, name string, deps []string, files map[string][]byte) string {
	t.Helper()
	all := map[string][]byte{"meta.json": MetaJSON(t, name, deps...)}
	for p, data := range files {
		all[p] = data
	}
	path := filepath.Join(root, name+".zip")
	MustWriteFile(t, path, Zip(t, all))
	return path
}
