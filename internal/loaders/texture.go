// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"iter"

	"github.com/invowk/contentpipe/internal/content"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureLoader decodes raster images into RGBA textures.
type TextureLoader struct {
	// MaxSize caps the longer texture side; larger images are scaled down
	// keeping their aspect ratio. Zero disables scaling.
	MaxSize int
}

// NewTextureLoader returns a texture loader.
func NewTextureLoader(maxSize int) *TextureLoader {
	return &TextureLoader{MaxSize: maxSize}
}

// Name implements Loader.
func (*TextureLoader) Name() string { return "texture" }

// Extensions implements Loader.
func (*TextureLoader) Extensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}
}

// Load implements Loader.
func (l *TextureLoader) Load(ctx context.Context, req Request) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		data, err := readEntry(ctx, req)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		rgba, err := DecodeRGBA(data, l.MaxSize)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		item := content.NewItem(content.ID(req.Entry.Path), req.Entry.SourceName(), content.NewTexture(rgba))
		yield(content.Succeeded(item))
	}
}

// DecodeRGBA decodes any registered image format and converts it to RGBA
// with its origin at (0, 0), scaling it down when maxSize is exceeded.
func DecodeRGBA(data []byte, maxSize int) (*image.RGBA, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decode %s image: empty bounds", format)
	}

	w, h := fitWithin(b.Dx(), b.Dy(), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		if src, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
			return src, nil
		}
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst, nil
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, nil
}

func fitWithin(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}
