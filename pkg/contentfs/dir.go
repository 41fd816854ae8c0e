// SPDX-License-Identifier: MPL-2.0

package contentfs

import (
	"context"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DirStructure serves a source stored as a plain directory. Entries are a
// snapshot taken at open time; hidden files and directories are skipped.
type DirStructure struct {
	entryIndex
	root string
	fsys fs.FS
}

// OpenDir snapshots the directory tree rooted at root.
func OpenDir(root string) (*DirStructure, error) {
	fsys := os.DirFS(root)
	var entries []EntryInfo
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, EntryInfo{Path: p, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DirStructure{entryIndex: newEntryIndex(entries), root: root, fsys: fsys}, nil
}

// Root returns the directory the structure was opened on.
func (d *DirStructure) Root() string { return d.root }

// Open opens an entry for reading.
func (d *DirStructure) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.Has(name) {
		return nil, notExist(name)
	}
	return d.fsys.Open(name)
}

// Close is a no-op; directory entries hold no handles between opens.
func (d *DirStructure) Close() error { return nil }
