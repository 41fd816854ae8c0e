// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

// Inner files of a font package.
const (
	FontMetricsFile = "font.json"
	FontAtlasFile   = "atlas.png"
)

// FontLoader loads distance-field font packages: a zip holding the glyph
// metrics document and the atlas image.
type FontLoader struct{}

// Name implements Loader.
func (FontLoader) Name() string { return "font" }

// Extensions implements Loader.
func (FontLoader) Extensions() []string { return []string{".font"} }

// Load implements Loader.
func (l FontLoader) Load(ctx context.Context, req Request) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		font, err := l.build(ctx, req)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		yield(content.Succeeded(content.NewItem(content.ID(req.Entry.Path), req.Entry.SourceName(), font)))
	}
}

func (FontLoader) build(ctx context.Context, req Request) (*content.Font, error) {
	data, err := readEntry(ctx, req)
	if err != nil {
		return nil, err
	}
	pkg, err := contentfs.NewZipStructure(data)
	if err != nil {
		return nil, fmt.Errorf("open font package: %w", err)
	}
	defer pkg.Close()

	for _, name := range []string{FontMetricsFile, FontAtlasFile} {
		if !pkg.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInnerFile, name)
		}
	}

	raw, err := contentfs.ReadEntry(ctx, pkg, FontMetricsFile)
	if err != nil {
		return nil, err
	}
	var layout content.FontLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("%s: %w", FontMetricsFile, err)
	}

	png, err := contentfs.ReadEntry(ctx, pkg, FontAtlasFile)
	if err != nil {
		return nil, err
	}
	rgba, err := DecodeRGBA(png, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FontAtlasFile, err)
	}
	atlas := content.NewTexture(rgba)

	if w := layout.Atlas.Width; w != 0 && w != atlas.Width {
		return nil, fmt.Errorf("%s: atlas width %d does not match image width %d", FontMetricsFile, w, atlas.Width)
	}
	if h := layout.Atlas.Height; h != 0 && h != atlas.Height {
		return nil, fmt.Errorf("%s: atlas height %d does not match image height %d", FontMetricsFile, h, atlas.Height)
	}
	return content.NewFont(layout, atlas), nil
}
