// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"context"
	"fmt"
	"iter"

	"github.com/invowk/contentpipe/internal/content"
)

type safeLoader struct {
	inner Loader
}

// Safe wraps l so that a panic while producing results becomes a failure
// result for the entry. Panics raised by the consumer are not intercepted.
func Safe(l Loader) Loader {
	if s, ok := l.(*safeLoader); ok {
		return s
	}
	return &safeLoader{inner: l}
}

func (s *safeLoader) Name() string         { return s.inner.Name() }
func (s *safeLoader) Extensions() []string { return s.inner.Extensions() }

func (s *safeLoader) Load(ctx context.Context, req Request) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		inConsumer := false
		defer func() {
			if inConsumer {
				return
			}
			if r := recover(); r != nil {
				yield(content.Failed(req.Entry, fmt.Errorf("%w: %s: %v", ErrLoaderPanic, s.inner.Name(), r)))
			}
		}()

		for res := range s.inner.Load(ctx, req) {
			inConsumer = true
			if !yield(res) {
				return
			}
			inConsumer = false
		}
	}
}
