// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/pkg/contentfs"
	"github.com/invowk/contentpipe/pkg/contentmeta"
)

type itemMap map[string]*content.Item

func (m itemMap) Lookup(ref string) (*content.Item, bool) {
	if it, ok := m[ref]; ok {
		return it, true
	}
	src, id := content.SplitRef(ref)
	it, ok := m[string(id)]
	if !ok || it.Source() != src {
		return nil, false
	}
	return it, true
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// request builds a Request for path inside a source named "base" whose
// files are held in memory.
func request(t *testing.T, files map[string][]byte, path string, items Lookup) Request {
	t.Helper()
	s, err := contentfs.NewZipStructure(zipBytes(t, files))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	src := content.NewSource(contentmeta.Meta{Name: "base", Version: "1.0.0"}, "/content/base")
	return Request{Entry: content.Entry{Source: src, Path: path}, Structure: s, Items: items}
}

func load(t *testing.T, l Loader, req Request) []content.Result {
	t.Helper()
	return Collect(l.Load(context.Background(), req))
}

func single(t *testing.T, results []content.Result) content.Result {
	t.Helper()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	return results[0]
}
