// SPDX-License-Identifier: MPL-2.0

package hotreload

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/pipeline"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = time.Second

type (
	// Target is what the poller reloads into. *pipeline.Pipeline implements
	// it.
	Target interface {
		Sources() []*content.Source
		Reload(ctx context.Context, changes []pipeline.Change) (*pipeline.Report, error)
	}

	// Clock is the poller's time source.
	Clock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
	}

	// Poller periodically fingerprints the target's sources and reloads the
	// entries that changed.
	Poller struct {
		target   Target
		opener   *contentfs.Opener
		interval time.Duration
		clock    Clock
		logger   *slog.Logger
		onReload func(*pipeline.Report, error)

		trigger chan struct{}
		started atomic.Bool

		mu   sync.Mutex
		prev Fingerprints
	}

	// Option configures a Poller.
	Option func(*Poller)

	systemClock struct{}
)

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithOpener sets how sources are opened for fingerprinting.
func WithOpener(o *contentfs.Opener) Option {
	return func(p *Poller) {
		p.opener = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// OnReload is called after every poll that found changes, with the reload
// report or error.
func OnReload(fn func(*pipeline.Report, error)) Option {
	return func(p *Poller) {
		p.onReload = fn
	}
}

// New returns a poller for target.
func New(target Target, opts ...Option) *Poller {
	p := &Poller{
		target:   target,
		opener:   &contentfs.Opener{},
		interval: DefaultInterval,
		clock:    systemClock{},
		logger:   slog.Default(),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Trigger requests a poll without waiting for the interval. Requests made
// while one is pending are merged.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Baseline records the current fingerprints without reloading anything.
func (p *Poller) Baseline(ctx context.Context) error {
	fps, err := p.snapshot(ctx, nil)
	p.mu.Lock()
	p.prev = fps
	p.mu.Unlock()
	return err
}

// Poll fingerprints the sources once and reloads what changed since the
// previous poll. It returns a nil report when nothing changed. The first
// call only records a baseline.
func (p *Poller) Poll(ctx context.Context) (*pipeline.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prev == nil {
		fps, err := p.snapshot(ctx, nil)
		p.prev = fps
		return nil, err
	}

	next, snapErr := p.snapshot(ctx, p.prev)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	changes := Diff(p.prev, next)
	if len(changes) == 0 {
		return nil, snapErr
	}

	p.logger.Debug("content changed", "changes", len(changes))
	report, err := p.target.Reload(ctx, changes)
	if err != nil {
		return nil, errors.Join(err, snapErr)
	}
	p.prev = next
	return report, snapErr
}

// snapshot fingerprints every source. A source that cannot be read keeps
// its fingerprints from prev so that it is not reported as removed.
func (p *Poller) snapshot(ctx context.Context, prev Fingerprints) (Fingerprints, error) {
	out := make(Fingerprints)
	var errs []error
	for _, src := range p.target.Sources() {
		fps, err := Fingerprint(ctx, p.opener, src)
		if err != nil {
			errs = append(errs, err)
			p.logger.Warn("failed to fingerprint content source", "source", src.Name(), "error", err)
			for k, v := range prev {
				if k.Source == src.Name() {
					out[k] = v
				}
			}
			continue
		}
		maps.Copy(out, fps)
	}
	return out, errors.Join(errs...)
}

// Run records a baseline, then polls every interval, or sooner when
// triggered, until ctx is cancelled. It returns nil on cancellation. Run must
// be called once.
func (p *Poller) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("hotreload: Run called more than once")
	}
	if err := p.Baseline(ctx); err != nil {
		p.logger.Warn("incomplete hot-reload baseline", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.clock.After(p.interval):
		case <-p.trigger:
		}

		report, err := p.Poll(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			p.logger.Warn("hot reload failed", "error", err)
		}
		if (report != nil || err != nil) && p.onReload != nil {
			p.onReload(report, err)
		}
	}
}
