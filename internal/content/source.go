// SPDX-License-Identifier: MPL-2.0

package content

import (
	"context"
	"path"
	"strings"

	"github.com/invowk/contentpipe/pkg/contentfs"
	"github.com/invowk/contentpipe/pkg/contentmeta"
)

type (
	// Source is one discovered content package.
	Source struct {
		Meta     contentmeta.Meta
		Location string
		Kind     contentfs.Kind
	}

	// Entry is one path inside a source. It never owns decoded data.
	Entry struct {
		Source *Source
		Path   string
	}
)

// NewSource builds a Source for a manifest found at location.
func NewSource(meta contentmeta.Meta, location string) *Source {
	return &Source{Meta: meta, Location: location, Kind: contentfs.KindOf(location)}
}

// Name returns the manifest name.
func (s *Source) Name() string { return s.Meta.Name }

// Dependencies returns the declared dependency names in manifest order.
func (s *Source) Dependencies() []string { return s.Meta.Dependencies }

// Open returns a fresh structure over the source. The caller must close it.
func (s *Source) Open(ctx context.Context, opener *contentfs.Opener) (contentfs.Structure, error) {
	return opener.Open(ctx, s.Location)
}

// Ext returns the lower-cased final extension including the dot.
func (e Entry) Ext() string {
	return strings.ToLower(path.Ext(e.Path))
}

// SourceName returns the owning source's name.
func (e Entry) SourceName() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.Name()
}

// String renders "source:path".
func (e Entry) String() string {
	return e.SourceName() + ":" + e.Path
}

// IsManifest reports whether the entry is the source's own manifest.
func (e Entry) IsManifest() bool {
	return e.Path == contentmeta.ManifestJSON || e.Path == contentmeta.ManifestTOML
}
