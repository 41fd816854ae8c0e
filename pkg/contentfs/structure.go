// SPDX-License-Identifier: MPL-2.0

package contentfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/invowk/contentpipe/pkg/kar"
)

// Kind values identify how a source is stored.
const (
	KindDirectory Kind = iota
	KindZip
	KindKar
	KindBucket
)

// BucketScheme prefixes bucket-backed source locations.
const BucketScheme = "s3://"

// ErrUnsupportedLocation is returned for locations no Structure can serve.
var ErrUnsupportedLocation = errors.New("unsupported content location")

type (
	// Kind is the storage kind of a content source.
	Kind int

	// EntryInfo describes one entry of a Structure.
	EntryInfo struct {
		// Path is slash-separated and relative to the source root.
		Path    string
		Size    int64
		ModTime time.Time
	}

	// Structure is a scoped, read-only view over a source's entries.
	Structure interface {
		// Entries returns all entries sorted by path.
		Entries() []EntryInfo
		Has(name string) bool
		Open(ctx context.Context, name string) (io.ReadCloser, error)
		Close() error
	}

	// Opener opens structures for source locations. Bucket is only needed
	// for s3:// locations.
	Opener struct {
		Bucket BucketClient
	}

	// entryIndex is the shared bookkeeping of the snapshot-based structures.
	entryIndex struct {
		entries []EntryInfo
		byPath  map[string]int
	}
)

// String returns a lower-case name for the kind.
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindZip:
		return "zip"
	case KindKar:
		return "kar"
	case KindBucket:
		return "bucket"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf classifies a location by its syntax. Paths without a recognized
// archive extension are treated as directories.
func KindOf(location string) Kind {
	switch {
	case strings.HasPrefix(location, BucketScheme):
		return KindBucket
	case strings.EqualFold(path.Ext(location), ".zip"):
		return KindZip
	case strings.EqualFold(path.Ext(location), kar.Extension):
		return KindKar
	default:
		return KindDirectory
	}
}

// IsArchive reports whether name has an archive extension a source can be
// stored in.
func IsArchive(name string) bool {
	k := KindOf(name)
	return k == KindZip || k == KindKar
}

// Open returns a Structure for location.
func (o *Opener) Open(ctx context.Context, location string) (Structure, error) {
	switch KindOf(location) {
	case KindBucket:
		if o == nil || o.Bucket == nil {
			return nil, fmt.Errorf("%w: %s (no bucket client configured)", ErrUnsupportedLocation, location)
		}
		return OpenBucket(ctx, o.Bucket, location)
	case KindZip:
		return OpenZip(location)
	case KindKar:
		return OpenKar(location)
	default:
		info, err := os.Stat(location)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocation, location)
		}
		return OpenDir(location)
	}
}

func newEntryIndex(entries []EntryInfo) entryIndex {
	slices.SortFunc(entries, func(a, b EntryInfo) int { return strings.Compare(a.Path, b.Path) })
	idx := entryIndex{entries: entries, byPath: make(map[string]int, len(entries))}
	for i, e := range entries {
		idx.byPath[e.Path] = i
	}
	return idx
}

func (x *entryIndex) Entries() []EntryInfo {
	return slices.Clone(x.entries)
}

func (x *entryIndex) Has(name string) bool {
	_, ok := x.byPath[name]
	return ok
}

func notExist(name string) error {
	return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadEntry reads a whole entry, closing the stream on every path.
func ReadEntry(ctx context.Context, s Structure, name string) ([]byte, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
