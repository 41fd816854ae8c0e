// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"iter"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/glctx"
	"github.com/invowk/contentpipe/pkg/cueutil"
)

const maxProgramSize int64 = 1024 * 1024

//go:embed program_schema.cue
var programSchema []byte

var (
	// ErrUnresolvedRef is returned when a program stage references an item
	// that is not loaded.
	ErrUnresolvedRef = errors.New("unresolved shader reference")
	// ErrInvalidStage is returned for stages that are not exactly one of ref
	// or source, or that reference a shader of the wrong kind or stage.
	ErrInvalidStage = errors.New("invalid program stage")
)

type (
	stageDoc struct {
		Ref    string `json:"ref,omitempty"`
		Source string `json:"source,omitempty"`
		Format string `json:"format"`
	}

	programDoc struct {
		Vertex     stageDoc `json:"vertex"`
		Fragment   stageDoc `json:"fragment"`
		Uniforms   []string `json:"uniforms"`
		Attributes []string `json:"attributes"`
	}

	// ProgramLoader builds shader programs from .prog documents. Referenced
	// shaders must already be loaded; inline sources become extra shader
	// items named "<program>#<stage>".
	ProgramLoader struct {
		shaders *ShaderLoader
	}
)

// NewProgramLoader returns a program loader. Inline WGSL stages are compiled
// with compile (naga when nil).
func NewProgramLoader(compile WGSLCompiler) *ProgramLoader {
	return &ProgramLoader{shaders: NewShaderLoader(compile)}
}

// Name implements Loader.
func (*ProgramLoader) Name() string { return "program" }

// Extensions implements Loader.
func (*ProgramLoader) Extensions() []string { return []string{".prog"} }

// Load implements Loader. A program yields its inline shader items first,
// then the program item; any failure yields a single failure and no items.
func (l *ProgramLoader) Load(ctx context.Context, req Request) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		items, err := l.build(ctx, req)
		if err != nil {
			yield(content.Failed(req.Entry, err))
			return
		}
		for _, it := range items {
			if !yield(content.Succeeded(it)) {
				return
			}
		}
	}
}

func (l *ProgramLoader) build(ctx context.Context, req Request) ([]*content.Item, error) {
	data, err := readEntry(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := cueutil.ParseAndDecode[programDoc](programSchema, data, "#Program",
		cueutil.WithFilename(req.Entry.Path),
		cueutil.WithMaxFileSize(maxProgramSize),
	)
	if err != nil {
		return nil, err
	}
	doc := res.Value

	prog := &content.Program{Uniforms: doc.Uniforms, Attributes: doc.Attributes}
	var items []*content.Item
	for _, st := range []struct {
		stage glctx.ShaderStage
		doc   stageDoc
	}{
		{glctx.StageVertex, doc.Vertex},
		{glctx.StageFragment, doc.Fragment},
	} {
		item, inline, err := l.stage(req, st.stage, st.doc)
		if err != nil {
			return nil, err
		}
		if inline {
			items = append(items, item)
		}
		prog.Stages = append(prog.Stages, content.ProgramStage{Stage: st.stage, Ref: item.ID(), Shader: item})
	}

	items = append(items, content.NewItem(content.ID(req.Entry.Path), req.Entry.SourceName(), prog))
	return items, nil
}

// stage resolves one stage to a shader item. inline reports whether the item
// was created here.
func (l *ProgramLoader) stage(req Request, stage glctx.ShaderStage, doc stageDoc) (*content.Item, bool, error) {
	switch {
	case doc.Ref != "" && doc.Source != "":
		return nil, false, fmt.Errorf("%w: %s sets both ref and source", ErrInvalidStage, stage)
	case doc.Ref == "" && doc.Source == "":
		return nil, false, fmt.Errorf("%w: %s needs a ref or a source", ErrInvalidStage, stage)
	case doc.Source != "":
		sh, err := l.shaders.build(stage, doc.Format == "wgsl", doc.Source)
		if err != nil {
			return nil, false, fmt.Errorf("%s stage: %w", stage, err)
		}
		id := content.ID(fmt.Sprintf("%s#%s", req.Entry.Path, stage))
		return content.NewItem(id, req.Entry.SourceName(), sh), true, nil
	}

	if req.Items == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrUnresolvedRef, doc.Ref)
	}
	item, ok := req.Items.Lookup(doc.Ref)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s stage %q", ErrUnresolvedRef, stage, doc.Ref)
	}
	sh, ok := item.Payload().(*content.Shader)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s stage %q is a %s", ErrInvalidStage, stage, doc.Ref, item.Kind())
	}
	if sh.Stage != stage {
		return nil, false, fmt.Errorf("%w: %s stage %q is a %s shader", ErrInvalidStage, stage, doc.Ref, sh.Stage)
	}
	return item, false, nil
}
