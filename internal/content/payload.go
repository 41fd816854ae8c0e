// SPDX-License-Identifier: MPL-2.0

package content

import (
	"fmt"
	"image"

	"github.com/invowk/contentpipe/internal/glctx"
)

// Item kinds.
const (
	KindTexture Kind = iota + 1
	KindShader
	KindProgram
	KindFont
	KindScript
)

type (
	// Kind is the asset family of an item.
	Kind uint8

	// Payload is the decoded content of an item. The set of implementations
	// is closed; switch on the concrete type.
	Payload interface {
		Kind() Kind
		sealed()
	}

	// Texture is an RGBA image, tightly packed, rows top to bottom.
	Texture struct {
		Width  int
		Height int
		Pix    []byte
	}

	// Shader is one compiled-or-compilable shader stage.
	Shader struct {
		Stage  glctx.ShaderStage
		Format glctx.ShaderFormat
		Source []byte
	}

	// ProgramStage binds a program to the shader item providing one stage.
	ProgramStage struct {
		Stage  glctx.ShaderStage
		Ref    ID
		Shader *Item
	}

	// Program is a set of shader stages to link, with the names of the
	// uniforms and vertex attributes it binds.
	Program struct {
		Stages     []ProgramStage
		Uniforms   []string
		Attributes []string
	}

	// Script is verbatim script text; interpretation is left to the host.
	Script struct {
		Lang string
		Text string
	}
)

func (Texture) sealed() {}
func (Shader) sealed()  {}
func (Program) sealed() {}
func (Font) sealed()    {}
func (Script) sealed()  {}

// Kind implements Payload.
func (*Texture) Kind() Kind { return KindTexture }

// Kind implements Payload.
func (*Shader) Kind() Kind { return KindShader }

// Kind implements Payload.
func (*Program) Kind() Kind { return KindProgram }

// Kind implements Payload.
func (*Font) Kind() Kind { return KindFont }

// Kind implements Payload.
func (*Script) Kind() Kind { return KindScript }

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindShader:
		return "shader"
	case KindProgram:
		return "program"
	case KindFont:
		return "font"
	case KindScript:
		return "script"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// GPUBacked reports whether items of this kind own GPU resources.
func (k Kind) GPUBacked() bool {
	return k == KindTexture || k == KindShader || k == KindProgram || k == KindFont
}

// NewTexture copies img into a tightly packed texture.
func NewTexture(img *image.RGBA) *Texture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*4)
	for y := range h {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w*4:(y+1)*w*4], img.Pix[off:off+w*4])
	}
	return &Texture{Width: w, Height: h, Pix: pix}
}
