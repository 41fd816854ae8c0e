// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/glctx"
	"github.com/invowk/contentpipe/internal/testutil"
	"github.com/invowk/contentpipe/pkg/contentmeta"
)

const (
	vertSrc = "void main() { gl_Position = vec4(0.0); }"
	fragSrc = "void main() {}"
	progDoc = `{"vertex": {"ref": "shaders/basic.vert"}, "fragment": {"ref": "shaders/basic.frag"}, "uniforms": ["mvp"]}`
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGPU(t *testing.T) (*glctx.Thread, *glctx.Headless) {
	t.Helper()
	dev := glctx.NewHeadless()
	th := glctx.New(dev)
	if err := th.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { testutil.MustStop(t, th) })
	return th, dev
}

func source(name, location string, deps ...string) *content.Source {
	return content.NewSource(contentmeta.Meta{Name: name, Version: "1.0.0", Dependencies: deps}, location)
}

// baseFiles is a source exercising every stage, including one shader with an
// extension nothing can load.
func baseFiles(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		"core/boot.lua":      []byte("boot()"),
		"textures/ui.png":    testutil.PNG(t, 4, 4),
		"fonts/ui.font":      testutil.FontPackage(t, 8, 4),
		"scripts/init.lua":   []byte("-- base"),
		"shaders/basic.vert": []byte(vertSrc),
		"shaders/basic.frag": []byte(fragSrc),
		"shaders/ui.glsl":    []byte(fragSrc),
		"shaders/basic.prog": []byte(progDoc),
		"tests/smoke.lua":    []byte("assert(true)"),
	}
}

// exampleSources writes base, mod_a (depends on base) and mod_b (depends on
// mod_a) and returns them in a scrambled order.
func exampleSources(t *testing.T) []*content.Source {
	t.Helper()
	root := t.TempDir()
	base := testutil.WriteSource(t, root, "base", nil, baseFiles(t))
	modA := testutil.WriteSource(t, root, "mod_a", []string{"base"}, map[string][]byte{
		"scripts/init.lua": []byte("-- mod_a"),
	})
	modB := testutil.WriteSource(t, root, "mod_b", []string{"mod_a"}, map[string][]byte{
		"textures/extra.png": testutil.PNG(t, 2, 2),
	})
	return []*content.Source{
		source("mod_b", modB, "mod_a"),
		source("base", base),
		source("mod_a", modA, "base"),
	}
}

func drain(obs *ChannelObserver) []Event {
	var out []Event
	for {
		select {
		case e := <-obs.C():
			out = append(out, e)
		default:
			return out
		}
	}
}
