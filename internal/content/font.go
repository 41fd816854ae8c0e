// SPDX-License-Identifier: MPL-2.0

package content

type (
	// FontAtlas describes how the glyph atlas image was generated.
	FontAtlas struct {
		Type          string  `json:"type"`
		DistanceRange float64 `json:"distanceRange"`
		Size          float64 `json:"size"`
		Width         int     `json:"width"`
		Height        int     `json:"height"`
		YOrigin       string  `json:"yOrigin"`
	}

	// FontMetrics are the face-wide metrics, in em units.
	FontMetrics struct {
		EmSize             float64 `json:"emSize"`
		LineHeight         float64 `json:"lineHeight"`
		Ascender           float64 `json:"ascender"`
		Descender          float64 `json:"descender"`
		UnderlineY         float64 `json:"underlineY"`
		UnderlineThickness float64 `json:"underlineThickness"`
	}

	// Bounds is an axis-aligned rectangle.
	Bounds struct {
		Left   float64 `json:"left"`
		Bottom float64 `json:"bottom"`
		Right  float64 `json:"right"`
		Top    float64 `json:"top"`
	}

	// Glyph locates one character in the atlas. Whitespace glyphs have no
	// bounds.
	Glyph struct {
		Unicode     rune    `json:"unicode"`
		Advance     float64 `json:"advance"`
		PlaneBounds *Bounds `json:"planeBounds,omitempty"`
		AtlasBounds *Bounds `json:"atlasBounds,omitempty"`
	}

	// KerningPair adjusts the advance between two characters.
	KerningPair struct {
		Unicode1 rune    `json:"unicode1"`
		Unicode2 rune    `json:"unicode2"`
		Advance  float64 `json:"advance"`
	}

	// FontLayout is the decoded metrics document of a font package.
	FontLayout struct {
		Atlas   FontAtlas     `json:"atlas"`
		Metrics FontMetrics   `json:"metrics"`
		Glyphs  []Glyph       `json:"glyphs"`
		Kerning []KerningPair `json:"kerning"`
	}

	// Font is a distance-field font: layout plus its atlas texture.
	Font struct {
		Layout FontLayout
		Atlas  *Texture

		glyphs  map[rune]int
		kerning map[[2]rune]float64
	}
)

// NewFont indexes layout for lookups.
func NewFont(layout FontLayout, atlas *Texture) *Font {
	f := &Font{
		Layout:  layout,
		Atlas:   atlas,
		glyphs:  make(map[rune]int, len(layout.Glyphs)),
		kerning: make(map[[2]rune]float64, len(layout.Kerning)),
	}
	for i, g := range layout.Glyphs {
		f.glyphs[g.Unicode] = i
	}
	for _, k := range layout.Kerning {
		f.kerning[[2]rune{k.Unicode1, k.Unicode2}] = k.Advance
	}
	return f
}

// Glyph returns the glyph for r.
func (f *Font) Glyph(r rune) (Glyph, bool) {
	i, ok := f.glyphs[r]
	if !ok {
		return Glyph{}, false
	}
	return f.Layout.Glyphs[i], true
}

// Kerning returns the advance adjustment between a and b.
func (f *Font) Kerning(a, b rune) float64 {
	return f.kerning[[2]rune{a, b}]
}
