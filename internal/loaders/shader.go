// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/gogpu/naga"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/glctx"
)

// ErrEmptyShader is returned for shader entries with no source text.
var ErrEmptyShader = errors.New("empty shader source")

type (
	// WGSLCompiler translates WGSL source to SPIR-V.
	WGSLCompiler func(source string) ([]byte, error)

	// ShaderLoader loads single shader stages. The stage comes from the
	// extension: .vert and .frag are GLSL, and .wgsl files carry the stage
	// as an inner suffix (ui.vert.wgsl) and are compiled to SPIR-V.
	ShaderLoader struct {
		Compile WGSLCompiler
	}
)

// NewShaderLoader returns a shader loader compiling WGSL with compile, or
// with naga when compile is nil.
func NewShaderLoader(compile WGSLCompiler) *ShaderLoader {
	if compile == nil {
		compile = func(source string) ([]byte, error) { return naga.Compile(source) }
	}
	return &ShaderLoader{Compile: compile}
}

// Name implements Loader.
func (*ShaderLoader) Name() string { return "shader" }

// Extensions implements Loader.
func (*ShaderLoader) Extensions() []string { return []string{".vert", ".frag", ".wgsl"} }

// Load implements Loader.
func (l *ShaderLoader) Load(ctx context.Context, req Request) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		stage, wgsl, err := l.classify(req.Entry.Path)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		data, err := readEntry(ctx, req)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		sh, err := l.build(stage, wgsl, string(data))
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		yield(content.Succeeded(content.NewItem(content.ID(req.Entry.Path), req.Entry.SourceName(), sh)))
	}
}

// classify derives the stage and language from p.
func (l *ShaderLoader) classify(p string) (glctx.ShaderStage, bool, error) {
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".vert":
		return glctx.StageVertex, false, nil
	case ".frag":
		return glctx.StageFragment, false, nil
	case ".wgsl":
		inner := strings.ToLower(path.Ext(strings.TrimSuffix(path.Base(p), path.Ext(p))))
		stage, ok := stageForExt(inner)
		if !ok {
			return 0, false, &UnknownExtensionError{Ext: inner + ext, Loader: l.Name()}
		}
		return stage, true, nil
	default:
		return 0, false, &UnknownExtensionError{Ext: ext, Loader: l.Name()}
	}
}

func (l *ShaderLoader) build(stage glctx.ShaderStage, wgsl bool, source string) (*content.Shader, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptyShader
	}
	if !wgsl {
		return &content.Shader{Stage: stage, Format: glctx.FormatGLSL, Source: []byte(source)}, nil
	}
	spirv, err := l.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile %s wgsl: %w", stage, err)
	}
	return &content.Shader{Stage: stage, Format: glctx.FormatSPIRV, Source: spirv}, nil
}

func stageForExt(ext string) (glctx.ShaderStage, bool) {
	switch ext {
	case ".vert":
		return glctx.StageVertex, true
	case ".frag":
		return glctx.StageFragment, true
	default:
		return 0, false
	}
}
