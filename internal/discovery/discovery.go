// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/pkg/contentfs"
	"github.com/invowk/contentpipe/pkg/contentmeta"

	"golang.org/x/sync/errgroup"
)

type (
	// Discovery finds content sources below a set of roots.
	Discovery struct {
		roots   []string
		opener  *contentfs.Opener
		logger  *slog.Logger
		workers int
	}

	// Option configures a Discovery.
	Option func(*Discovery)

	// probe is the outcome of reading one candidate's manifest.
	probe struct {
		source *content.Source
		diag   *Diagnostic
		err    error
	}
)

// WithOpener sets the structure opener. Required for s3:// roots.
func WithOpener(o *contentfs.Opener) Option {
	return func(d *Discovery) { d.opener = o }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Discovery) { d.logger = l }
}

// WithWorkers bounds how many manifests are read concurrently.
func WithWorkers(n int) Option {
	return func(d *Discovery) { d.workers = n }
}

// New creates a Discovery over roots.
func New(roots []string, opts ...Option) *Discovery {
	d := &Discovery{
		roots:   roots,
		opener:  &contentfs.Opener{},
		logger:  slog.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		d.workers = runtime.GOMAXPROCS(0)
	}
	return d
}

// Roots returns the configured roots.
func (d *Discovery) Roots() []string { return d.roots }

// Discover expands every root and reads the candidates' manifests. Sources
// are returned in root order, then in candidate order within a root. The
// first structural error in that order is returned.
func (d *Discovery) Discover(ctx context.Context) (*Result, error) {
	var (
		cands []candidate
		diags []Diagnostic
	)
	for _, root := range d.roots {
		c, err := d.expandRoot(ctx, root)
		if err != nil {
			return nil, err
		}
		cands = append(cands, c...)
	}

	probes := make([]probe, len(cands))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, c := range cands {
		g.Go(func() error {
			probes[i] = d.probe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	seen := make(map[string]string, len(probes))
	for i, p := range probes {
		switch {
		case p.err != nil:
			return nil, p.err
		case p.diag != nil:
			diags = append(diags, *p.diag)
			continue
		}
		name := p.source.Name()
		if first, dup := seen[name]; dup {
			return nil, issue.NewErrorContext().
				WithOperation("discover content sources").
				WithResource(cands[i].location).
				WithSuggestion("Give every source a unique name in its manifest").
				WithSuggestion("Remove one of the copies from the configured roots").
				WithIssue(issue.DuplicateSourceId).
				Wrap(&DuplicateSourceError{Name: name, First: first, Second: cands[i].location}).
				BuildError()
		}
		seen[name] = cands[i].location
		res.Sources = append(res.Sources, p.source)
		d.logger.Debug("discovered content source", "name", name, "version", p.source.Meta.Version, "location", p.source.Location)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Diagnostics = diags
	return res, nil
}

func (d *Discovery) probe(ctx context.Context, c candidate) probe {
	s, err := d.opener.Open(ctx, c.location)
	if err != nil {
		return probe{err: issue.NewErrorContext().
			WithOperation("open content source").
			WithResource(c.location).
			WithSuggestion("Check that the location is readable").
			WithIssue(openIssue(c.location)).
			Wrap(err).
			BuildError()}
	}
	defer s.Close()

	meta, err := contentmeta.Read(ctx, s, c.location)
	switch {
	case err == nil:
		return probe{source: content.NewSource(*meta, c.location)}
	case errors.Is(err, contentmeta.ErrManifestNotFound) && !c.explicit:
		return probe{diag: &Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeNoManifest,
			Message:  fmt.Sprintf("skipping %s: no %s or %s", c.location, contentmeta.ManifestJSON, contentmeta.ManifestTOML),
			Path:     c.location,
			Cause:    err,
		}}
	default:
		return probe{err: issue.NewErrorContext().
			WithOperation("read source manifest").
			WithResource(c.location).
			WithSuggestion("Fix the manifest so it has a name, a semver version and a list of dependency names").
			WithSuggestion("Run 'contentpipe validate' to check every manifest").
			WithIssue(issue.ManifestInvalidId).
			Wrap(err).
			BuildError()}
	}
}

func openIssue(location string) issue.Id {
	if contentfs.KindOf(location) == contentfs.KindBucket {
		return issue.BucketUnavailableId
	}
	return issue.SourceNotFoundId
}
