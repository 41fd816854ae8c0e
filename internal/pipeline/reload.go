// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

// Change operations.
const (
	Added ChangeOp = iota + 1
	Modified
	Removed
)

type (
	// ChangeOp is what happened to an entry.
	ChangeOp int

	// Change is one entry that differs from what was loaded.
	Change struct {
		Source string
		Path   string
		Op     ChangeOp
	}

	// reloadBatch carries the state of one Reload call.
	reloadBatch struct {
		report   *Report
		shaders  map[*content.Item]struct{}
		programs map[*content.Item]struct{}
	}
)

// String returns the lower-case operation name.
func (op ChangeOp) String() string {
	switch op {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Reload applies entry changes detected after Load. Changed entries go back
// through their stage's loader; items that already exist are updated in
// place with OnContentUpdated, and programs linked against a reloaded shader
// are relinked. If reloading an entry fails, its previous items stay.
func (p *Pipeline) Reload(ctx context.Context, changes []Change) (*Report, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.byName == nil {
		return nil, ErrNotLoaded
	}

	start := time.Now()
	batch := &reloadBatch{
		report:   &Report{RunID: uuid.New(), Order: namesOf(p.order)},
		shaders:  make(map[*content.Item]struct{}),
		programs: make(map[*content.Item]struct{}),
	}

	structures := make(map[string]contentfs.Structure)
	defer closeAll(structures, p.logger)

	for _, ch := range p.sortChanges(changes) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, ok := p.byName[ch.Source]
		if !ok {
			p.fail(p.reloadRun(batch, ""), ch.Source, ch.Path, fmt.Errorf("unknown source %q", ch.Source))
			continue
		}
		if ch.Op == Removed {
			p.removeEntry(ctx, batch, src.Name(), ch.Path)
			continue
		}

		s, ok := structures[src.Name()]
		if !ok {
			var err error
			s, err = src.Open(ctx, p.opener)
			if err != nil {
				p.fail(p.reloadRun(batch, ""), src.Name(), ch.Path, &SourceError{Source: src.Name(), Location: src.Location, Err: err})
				continue
			}
			structures[src.Name()] = s
		}
		p.reloadEntry(ctx, batch, content.Entry{Source: src, Path: ch.Path}, s)
	}

	p.relink(ctx, batch)

	batch.report.Duration = time.Since(start)
	if len(changes) > 0 {
		p.logger.Info("content reloaded",
			"run", batch.report.RunID.String(),
			"changes", len(changes),
			"reloaded", len(batch.report.Reloaded),
			"loaded", len(batch.report.Loaded),
			"removed", len(batch.report.Removed),
			"failures", len(batch.report.Failures))
	}
	return batch.report, nil
}

// sortChanges orders changes by stage, then source load order, then path,
// so that shaders are reloaded before the programs that use them.
func (p *Pipeline) sortChanges(changes []Change) []Change {
	rank := make(map[string]int, len(p.order))
	for i, s := range p.order {
		rank[s.Name()] = i
	}
	stageIndex := func(c Change) int {
		e := content.Entry{Source: p.byName[c.Source], Path: c.Path}
		for i, s := range p.stages {
			if len(s.Select([]content.Entry{e})) == 1 {
				return i
			}
		}
		return len(p.stages)
	}

	out := slices.Clone(changes)
	slices.SortStableFunc(out, func(a, b Change) int {
		return cmp.Or(
			cmp.Compare(stageIndex(a), stageIndex(b)),
			cmp.Compare(rank[a.Source], rank[b.Source]),
			cmp.Compare(a.Path, b.Path),
		)
	})
	return out
}

func (p *Pipeline) reloadRun(batch *reloadBatch, stage string) *StageRun {
	return &StageRun{RunID: batch.report.RunID, Stage: stage, Registry: p.registry, Logger: p.logger}
}

func (p *Pipeline) reloadEntry(ctx context.Context, batch *reloadBatch, e content.Entry, s contentfs.Structure) {
	if e.IsManifest() || p.excluded(e.Path) {
		return
	}
	stage, ok := stageFor(p.stages, e)
	if !ok {
		return
	}
	run := p.reloadRun(batch, stage.Name())

	key := entryKey{e.SourceName(), e.Path}
	prev := p.produced[key]
	results := p.loadEntry(ctx, stage, e, s)

	var ids []content.ID
	failed := false
	// Maps items built by this load to the registry items that absorbed them.
	rebound := make(map[*content.Item]*content.Item)
	for _, res := range results {
		if !res.OK() {
			failed = true
			p.fail(run, e.SourceName(), e.Path, res.Err)
			continue
		}
		ids = append(ids, res.ID)
		item := res.Item
		if prog, ok := item.Payload().(*content.Program); ok {
			rebind(prog, rebound)
		}

		existing, ok := p.registry.Lookup(string(res.ID))
		if ok && existing.Source() == e.SourceName() {
			if err := existing.OnContentUpdated(ctx, p.gpu, item.Payload()); err != nil {
				p.drop(ctx, existing)
				p.fail(run, e.SourceName(), string(res.ID), err)
				continue
			}
			rebound[item] = existing
			p.release(ctx, item)
			p.noteReloaded(batch, existing)
			batch.report.Reloaded = append(batch.report.Reloaded, existing.ID())
			p.obs.publish(Event{Type: ItemReloaded, RunID: run.RunID, Stage: run.Stage, ID: existing.ID(), Source: existing.Source()})
			continue
		}

		kept, displaced := p.registry.Put(item)
		if displaced != nil {
			p.release(ctx, displaced)
		}
		if !kept {
			continue
		}
		if err := p.initGL(ctx, item); err != nil {
			p.drop(ctx, item)
			p.fail(run, e.SourceName(), string(res.ID), err)
			continue
		}
		rebound[item] = item
		batch.report.Loaded = append(batch.report.Loaded, item.ID())
		p.obs.publish(Event{Type: ItemLoaded, RunID: run.RunID, Stage: run.Stage, ID: item.ID(), Source: item.Source()})
	}

	if failed {
		return
	}
	for _, id := range prev {
		if !slices.Contains(ids, id) {
			p.removeItem(ctx, batch, id, e.SourceName())
		}
	}
	p.produced[key] = ids
}

// rebind points program stages built during a reload at the items that
// actually live in the registry.
func rebind(prog *content.Program, rebound map[*content.Item]*content.Item) {
	for i, st := range prog.Stages {
		if live, ok := rebound[st.Shader]; ok {
			prog.Stages[i].Shader = live
		}
	}
}

func (p *Pipeline) noteReloaded(batch *reloadBatch, it *content.Item) {
	switch it.Kind() {
	case content.KindShader:
		batch.shaders[it] = struct{}{}
	case content.KindProgram:
		batch.programs[it] = struct{}{}
	}
}

// relink re-creates programs that reference a reloaded shader and were not
// themselves reloaded in this batch.
func (p *Pipeline) relink(ctx context.Context, batch *reloadBatch) {
	if len(batch.shaders) == 0 {
		return
	}
	run := p.reloadRun(batch, StagePrograms)
	for _, it := range p.registry.Items() {
		prog, ok := it.Payload().(*content.Program)
		if !ok {
			continue
		}
		if _, done := batch.programs[it]; done {
			continue
		}
		uses := slices.ContainsFunc(prog.Stages, func(st content.ProgramStage) bool {
			_, changed := batch.shaders[st.Shader]
			return changed
		})
		if !uses {
			continue
		}
		if err := it.OnContentUpdated(ctx, p.gpu, prog); err != nil {
			p.drop(ctx, it)
			p.fail(run, it.Source(), string(it.ID()), fmt.Errorf("relink: %w", err))
			continue
		}
		batch.report.Reloaded = append(batch.report.Reloaded, it.ID())
		p.obs.publish(Event{Type: ItemReloaded, RunID: run.RunID, Stage: run.Stage, ID: it.ID(), Source: it.Source()})
	}
}

func (p *Pipeline) removeEntry(ctx context.Context, batch *reloadBatch, source, path string) {
	key := entryKey{source, path}
	for _, id := range p.produced[key] {
		p.removeItem(ctx, batch, id, source)
	}
	delete(p.produced, key)
}

func (p *Pipeline) removeItem(ctx context.Context, batch *reloadBatch, id content.ID, source string) {
	it, ok := p.registry.Remove(id, source)
	if !ok {
		return
	}
	p.release(ctx, it)
	batch.report.Removed = append(batch.report.Removed, id)
	p.obs.publish(Event{Type: ItemRemoved, RunID: batch.report.RunID, ID: id, Source: source})
}

func namesOf(sources []*content.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name()
	}
	return out
}
