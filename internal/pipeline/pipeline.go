// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/loaders"
	"github.com/invowk/contentpipe/internal/resolve"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

// ErrNotLoaded is returned by Reload before a successful Load.
var ErrNotLoaded = errors.New("pipeline has not loaded any content")

type (
	// Pipeline loads content sources into a registry.
	Pipeline struct {
		opener   *contentfs.Opener
		loaders  *loaders.Registry
		stages   []Stage
		registry *content.Registry
		gpu      content.GPU
		workers  int
		exclude  []string
		logger   *slog.Logger
		obs      observers

		// runMu serializes Load, Reload and Close.
		runMu    sync.Mutex
		order    []*content.Source
		byName   map[string]*content.Source
		produced map[entryKey][]content.ID
	}

	// SourceError reports a source that could not be opened.
	SourceError struct {
		Source   string
		Location string
		Err      error
	}

	entryKey struct {
		source string
		path   string
	}
)

func (e *SourceError) Error() string {
	return fmt.Sprintf("open source %q at %s: %v", e.Source, e.Location, e.Err)
}

// Unwrap returns the cause.
func (e *SourceError) Unwrap() error { return e.Err }

// New returns a pipeline. Without options it uses the built-in loaders and
// stages, LastWins merging and no GPU thread.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		opener:   &contentfs.Opener{},
		registry: content.NewRegistry(content.LastWins),
		workers:  defaultWorkers(),
		logger:   slog.Default(),
		produced: make(map[entryKey][]content.ID),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stages == nil {
		if p.loaders == nil {
			p.loaders = loaders.Defaults()
		}
		p.stages = DefaultStages(p.loaders)
	}
	return p
}

// Registry returns the merged item registry.
func (p *Pipeline) Registry() *content.Registry { return p.registry }

// Stages returns the stages in run order.
func (p *Pipeline) Stages() []Stage { return p.stages }

// Sources returns the sources of the last successful load, in load order.
func (p *Pipeline) Sources() []*content.Source {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	out := make([]*content.Source, len(p.order))
	copy(out, p.order)
	return out
}

// Subscribe registers o for events. The returned function unsubscribes it.
func (p *Pipeline) Subscribe(o Observer) (unsubscribe func()) {
	return p.obs.subscribe(o)
}

// Load resolves sources and runs every stage over their entries. A
// structural failure returns an error and loads nothing; entry failures are
// listed in the report. Items from a previous Load are released first.
func (p *Pipeline) Load(ctx context.Context, sources []*content.Source) (*Report, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	report := &Report{RunID: uuid.New()}
	p.obs.publish(Event{Type: LoadStarted, RunID: report.RunID})

	err := p.load(ctx, report, sources)
	report.Duration = time.Since(start)
	p.obs.publish(Event{Type: LoadFinished, RunID: report.RunID, Report: report, Err: err})
	if err != nil {
		return nil, err
	}

	p.logger.Info("content loaded",
		"run", report.RunID.String(),
		"sources", len(report.Order),
		"items", len(report.Loaded),
		"failures", len(report.Failures),
		"duration", report.Duration)
	return report, nil
}

func (p *Pipeline) load(ctx context.Context, report *Report, sources []*content.Source) error {
	order, err := resolve.Resolve(sources)
	if err != nil {
		return err
	}
	// A new load replaces whatever an earlier one produced.
	if err := p.releaseAll(ctx); err != nil {
		p.logger.Warn("failed to release previous content", "error", err)
	}
	report.Order = resolve.Names(order)
	p.registry.SetSourceOrder(report.Order)

	structures, err := p.openAll(ctx, order)
	if err != nil {
		return err
	}
	defer closeAll(structures, p.logger)

	entries := p.entries(order, structures)
	for i, stage := range p.stages {
		if err := p.runStage(ctx, report, i, stage, entries, structures); err != nil {
			return err
		}
	}

	p.order = order
	p.byName = make(map[string]*content.Source, len(order))
	for _, s := range order {
		p.byName[s.Name()] = s
	}
	return nil
}

func (p *Pipeline) openAll(ctx context.Context, order []*content.Source) (map[string]contentfs.Structure, error) {
	structures := make(map[string]contentfs.Structure, len(order))
	for _, src := range order {
		s, err := src.Open(ctx, p.opener)
		if err != nil {
			closeAll(structures, p.logger)
			return nil, &SourceError{Source: src.Name(), Location: src.Location, Err: err}
		}
		structures[src.Name()] = s
	}
	return structures, nil
}

func closeAll(structures map[string]contentfs.Structure, logger *slog.Logger) {
	for name, s := range structures {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close content source", "source", name, "error", err)
		}
	}
}

// entries lists every loadable entry in source order, then path order.
func (p *Pipeline) entries(order []*content.Source, structures map[string]contentfs.Structure) []content.Entry {
	var out []content.Entry
	for _, src := range order {
		for _, info := range structures[src.Name()].Entries() {
			e := content.Entry{Source: src, Path: info.Path}
			if e.IsManifest() || p.excluded(e.Path) {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

func (p *Pipeline) excluded(name string) bool {
	for _, pattern := range p.exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (p *Pipeline) runStage(ctx context.Context, report *Report, index int, stage Stage, entries []content.Entry, structures map[string]contentfs.Structure) error {
	start := time.Now()
	run := &StageRun{
		RunID:    report.RunID,
		Index:    index,
		Stage:    stage.Name(),
		Registry: p.registry,
		Logger:   p.logger.With("stage", stage.Name()),
	}
	if err := stage.OnStageStarted(ctx, run); err != nil {
		return fmt.Errorf("stage %s: start hook: %w", stage.Name(), err)
	}

	run.Entries = stage.Select(entries)
	results, err := p.loadEntries(ctx, stage, run.Entries, structures)
	if err != nil {
		return err
	}
	p.merge(ctx, run, results)

	if err := stage.OnStageCompleted(ctx, run); err != nil {
		return fmt.Errorf("stage %s: completion hook: %w", stage.Name(), err)
	}

	report.Loaded = append(report.Loaded, run.Loaded...)
	report.Failures = append(report.Failures, run.Failures...)
	report.Stages = append(report.Stages, StageSummary{
		Name:     stage.Name(),
		Selected: len(run.Entries),
		Loaded:   len(run.Loaded),
		Failed:   len(run.Failures),
		Duration: time.Since(start),
	})
	run.Logger.Debug("stage completed", "entries", len(run.Entries), "loaded", len(run.Loaded), "failed", len(run.Failures))
	return nil
}

// loadEntries drains one result sequence per entry, concurrently. Slot i
// holds the results of entries[i].
func (p *Pipeline) loadEntries(ctx context.Context, stage Stage, entries []content.Entry, structures map[string]contentfs.Structure) ([][]content.Result, error) {
	out := make([][]content.Result, len(entries))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, e := range entries {
		g.Go(func() error {
			out[i] = p.loadEntry(ctx, stage, e, structures[e.SourceName()])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) loadEntry(ctx context.Context, stage Stage, e content.Entry, s contentfs.Structure) []content.Result {
	l, ok := stage.LoaderFor(e.Ext())
	if !ok {
		return loaders.Collect(loaders.Fail(e, &loaders.UnknownExtensionError{Ext: e.Ext()}))
	}
	req := loaders.Request{Entry: e, Structure: s, Items: p.registry}
	return loaders.Collect(loaders.Safe(l).Load(ctx, req))
}

// merge applies a stage's results in entry order, which is source load
// order, then initializes the items that won.
func (p *Pipeline) merge(ctx context.Context, run *StageRun, results [][]content.Result) {
	var fresh []*content.Item
	for i, rs := range results {
		e := run.Entries[i]
		var ids []content.ID
		for _, res := range rs {
			if !res.OK() {
				p.fail(run, e.SourceName(), e.Path, res.Err)
				continue
			}
			ids = append(ids, res.ID)
			kept, displaced := p.registry.Put(res.Item)
			if displaced != nil {
				p.release(ctx, displaced)
			}
			if kept {
				fresh = append(fresh, res.Item)
			}
		}
		p.produced[entryKey{e.SourceName(), e.Path}] = ids
	}

	for _, it := range fresh {
		if current, ok := p.registry.Lookup(string(it.ID())); !ok || current != it {
			continue
		}
		if err := p.initGL(ctx, it); err != nil {
			p.drop(ctx, it)
			p.fail(run, it.Source(), string(it.ID()), err)
			continue
		}
		run.Loaded = append(run.Loaded, it.ID())
		p.obs.publish(Event{Type: ItemLoaded, RunID: run.RunID, Stage: run.Stage, ID: it.ID(), Source: it.Source()})
	}
}

func (p *Pipeline) fail(run *StageRun, source, path string, err error) {
	var ee *content.EntryError
	if errors.As(err, &ee) {
		err = ee.Err
	}
	f := Failure{Stage: run.Stage, Source: source, Path: path, Err: err}
	run.Failures = append(run.Failures, f)
	p.logger.Error("content entry failed", "stage", run.Stage, "source", f.Source, "path", f.Path, "error", err)
	p.obs.publish(Event{Type: ItemFailed, RunID: run.RunID, Stage: run.Stage, Source: f.Source, Path: f.Path, Err: err})
}

func (p *Pipeline) initGL(ctx context.Context, it *content.Item) error {
	if p.gpu == nil || !it.IsGPUBacked() {
		return nil
	}
	return it.InitGL(ctx, p.gpu)
}

// drop removes it from the registry and releases it.
func (p *Pipeline) drop(ctx context.Context, it *content.Item) {
	p.registry.Remove(it.ID(), it.Source())
	p.release(ctx, it)
}

func (p *Pipeline) release(ctx context.Context, it *content.Item) {
	if err := it.Release(ctx, p.gpu); err != nil {
		p.logger.Warn("failed to release content item", "id", it.QualifiedID(), "error", err)
	}
}

// Close releases every item in the registry.
func (p *Pipeline) Close(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.releaseAll(ctx)
}

func (p *Pipeline) releaseAll(ctx context.Context) error {
	var errs []error
	for _, it := range p.registry.Items() {
		p.registry.Remove(it.ID(), it.Source())
		if err := it.Release(ctx, p.gpu); err != nil {
			errs = append(errs, err)
		}
	}
	clear(p.produced)
	p.order, p.byName = nil, nil
	return errors.Join(errs...)
}
