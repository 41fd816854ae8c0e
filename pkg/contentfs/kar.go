// SPDX-License-Identifier: MPL-2.0

package contentfs

import (
	"context"
	"io"
	"time"

	"github.com/invowk/contentpipe/pkg/kar"
)

// KarStructure serves a source packed into a .kar archive.
type KarStructure struct {
	entryIndex
	file *kar.File
}

// OpenKar opens the packed archive at path.
func OpenKar(path string) (*KarStructure, error) {
	f, err := kar.OpenFile(path)
	if err != nil {
		return nil, err
	}
	index := f.Entries()
	entries := make([]EntryInfo, 0, len(index))
	for _, e := range index {
		entries = append(entries, EntryInfo{Path: e.Name, Size: e.Size, ModTime: time.Unix(0, e.ModTime)})
	}
	return &KarStructure{entryIndex: newEntryIndex(entries), file: f}, nil
}

// Open opens an entry for reading.
func (k *KarStructure) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return k.file.Open(name)
}

// Close releases the archive file.
func (k *KarStructure) Close() error {
	return k.file.Close()
}
