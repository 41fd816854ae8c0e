// SPDX-License-Identifier: MPL-2.0

package hotreload

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/glctx"
	"github.com/invowk/contentpipe/internal/pipeline"
	"github.com/invowk/contentpipe/internal/testutil"
)

func TestPoller_ReloadsPipelineInPlace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	th := glctx.New(glctx.NewHeadless())
	if err := th.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { testutil.MustStop(t, th) })

	src, dir := dirSource(t, "base", map[string][]byte{
		"textures/ui.png":  testutil.PNG(t, 2, 2),
		"scripts/init.lua": []byte("-- v1"),
	})
	p := pipeline.New(pipeline.WithGPU(th), pipeline.WithLogger(quiet()))
	if _, err := p.Load(ctx, []*content.Source{src}); err != nil {
		t.Fatal(err)
	}
	tex, _ := p.Registry().Lookup("textures/ui.png")
	before, _ := tex.Handles()

	poller := New(p, WithLogger(quiet()))
	if err := poller.Baseline(ctx); err != nil {
		t.Fatal(err)
	}

	testutil.MustWriteFile(t, filepath.Join(dir, "textures", "ui.png"), testutil.PNG(t, 4, 4))
	testutil.MustRemove(t, filepath.Join(dir, "scripts", "init.lua"))

	report, err := poller.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.Reloaded, []content.ID{"textures/ui.png"}) || !slices.Equal(report.Removed, []content.ID{"scripts/init.lua"}) {
		t.Fatalf("unexpected report %+v", report)
	}
	after, ok := tex.Handles()
	if !ok || after.Object == before.Object {
		t.Error("texture should have fresh GPU handles")
	}
	if tex.Payload().(*content.Texture).Width != 4 {
		t.Error("texture payload not updated")
	}
}
