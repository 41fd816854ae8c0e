// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/pkg/contentfs"
	"github.com/invowk/contentpipe/pkg/contentmeta"
)

// candidate is a location that may hold a source. An explicit candidate was
// named directly by a root, so a missing manifest is an error.
type candidate struct {
	location string
	explicit bool
}

func (d *Discovery) expandRoot(ctx context.Context, root string) ([]candidate, error) {
	if contentfs.KindOf(root) == contentfs.KindBucket {
		return d.expandBucket(ctx, root)
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, rootError(root, issue.SourceNotFoundId, err)
	}
	if !info.IsDir() {
		if !contentfs.IsArchive(root) {
			return nil, rootError(root, issue.SourceNotFoundId, fmt.Errorf("%w: %s", contentfs.ErrUnsupportedLocation, root))
		}
		return []candidate{{location: root, explicit: true}}, nil
	}

	if hasManifestFile(root) {
		return []candidate{{location: root, explicit: true}}, nil
	}

	children, err := os.ReadDir(root)
	if err != nil {
		return nil, rootError(root, issue.SourceNotFoundId, err)
	}
	var out []candidate
	for _, child := range children {
		name := child.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if child.IsDir() || contentfs.IsArchive(name) {
			out = append(out, candidate{location: filepath.Join(root, name)})
		}
	}
	return out, nil
}

func (d *Discovery) expandBucket(ctx context.Context, root string) ([]candidate, error) {
	if d.opener == nil || d.opener.Bucket == nil {
		return nil, rootError(root, issue.BucketUnavailableId,
			fmt.Errorf("%w: %s (no bucket client configured)", contentfs.ErrUnsupportedLocation, root))
	}

	s, err := contentfs.OpenBucket(ctx, d.opener.Bucket, root)
	if err != nil {
		return nil, rootError(root, issue.BucketUnavailableId, err)
	}
	isSource := s.Has(contentmeta.ManifestJSON) || s.Has(contentmeta.ManifestTOML)
	_ = s.Close()
	if isSource {
		return []candidate{{location: root, explicit: true}}, nil
	}

	locations, err := contentfs.ListBucketSources(ctx, d.opener.Bucket, root)
	if err != nil {
		return nil, rootError(root, issue.BucketUnavailableId, err)
	}
	out := make([]candidate, len(locations))
	for i, loc := range locations {
		out[i] = candidate{location: loc}
	}
	return out, nil
}

func hasManifestFile(dir string) bool {
	for _, name := range []string{contentmeta.ManifestJSON, contentmeta.ManifestTOML} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func rootError(root string, id issue.Id, err error) error {
	return issue.NewErrorContext().
		WithOperation("scan content root").
		WithResource(root).
		WithSuggestion("Check the 'roots' list in contentpipe.cue or CONTENTPIPE_ROOTS").
		WithIssue(id).
		Wrap(err).
		BuildError()
}
