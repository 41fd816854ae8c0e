// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"log/slog"
	"runtime"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/loaders"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStages replaces the default stages.
func WithStages(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.stages = stages
	}
}

// WithLoaders sets the loader registry used by the default stages.
func WithLoaders(reg *loaders.Registry) Option {
	return func(p *Pipeline) {
		p.loaders = reg
	}
}

// WithGPU sets the GPU thread used to initialize GPU-backed items. Without
// one, those items stay uninitialized.
func WithGPU(gpu content.GPU) Option {
	return func(p *Pipeline) {
		p.gpu = gpu
	}
}

// WithOpener sets how source locations are opened.
func WithOpener(o *contentfs.Opener) Option {
	return func(p *Pipeline) {
		p.opener = o
	}
}

// WithOverridePolicy sets how conflicting item IDs are merged.
func WithOverridePolicy(policy content.OverridePolicy) Option {
	return func(p *Pipeline) {
		p.registry = content.NewRegistry(policy)
	}
}

// WithWorkers bounds how many entries of a stage load at once.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithExclude skips entries matching any of the doublestar patterns.
func WithExclude(patterns ...string) Option {
	return func(p *Pipeline) {
		p.exclude = append(p.exclude, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func defaultWorkers() int {
	return max(2, runtime.GOMAXPROCS(0))
}
