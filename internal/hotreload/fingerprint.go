// SPDX-License-Identifier: MPL-2.0

package hotreload

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/pipeline"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

type (
	// Key identifies an entry within a source.
	Key struct {
		Source string
		Path   string
	}

	// Fingerprints maps every entry to the xxhash of its bytes.
	Fingerprints map[Key]uint64
)

// Fingerprint hashes every non-manifest entry of src.
func Fingerprint(ctx context.Context, opener *contentfs.Opener, src *content.Source) (Fingerprints, error) {
	s, err := src.Open(ctx, opener)
	if err != nil {
		return nil, fmt.Errorf("open source %q: %w", src.Name(), err)
	}
	defer s.Close()

	out := make(Fingerprints)
	for _, info := range s.Entries() {
		e := content.Entry{Source: src, Path: info.Path}
		if e.IsManifest() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := contentfs.ReadEntry(ctx, s, info.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e, err)
		}
		out[Key{Source: src.Name(), Path: info.Path}] = xxhash.Sum64(data)
	}
	return out, nil
}

// Diff lists the entries that were added, modified or removed between prev
// and next, ordered by source then path.
func Diff(prev, next Fingerprints) []pipeline.Change {
	var out []pipeline.Change
	for k, sum := range next {
		old, ok := prev[k]
		switch {
		case !ok:
			out = append(out, pipeline.Change{Source: k.Source, Path: k.Path, Op: pipeline.Added})
		case old != sum:
			out = append(out, pipeline.Change{Source: k.Source, Path: k.Path, Op: pipeline.Modified})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out = append(out, pipeline.Change{Source: k.Source, Path: k.Path, Op: pipeline.Removed})
		}
	}
	slices.SortFunc(out, func(a, b pipeline.Change) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Path, b.Path))
	})
	return out
}
