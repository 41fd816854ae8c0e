// SPDX-License-Identifier: MPL-2.0

package contentfs

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// ZipStructure serves a source stored as a zip archive.
type ZipStructure struct {
	entryIndex
	files  map[string]*zip.File
	closer io.Closer
}

// OpenZip opens the zip archive at path.
func OpenZip(path string) (*ZipStructure, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip source %s: %w", path, err)
	}
	return newZipStructure(&rc.Reader, rc), nil
}

// NewZipStructure reads a zip archive held in memory, e.g. a font package
// read out of another structure.
func NewZipStructure(data []byte) (*ZipStructure, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return newZipStructure(zr, nil), nil
}

func newZipStructure(zr *zip.Reader, closer io.Closer) *ZipStructure {
	files := make(map[string]*zip.File, len(zr.File))
	entries := make([]EntryInfo, 0, len(zr.File))
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, "./")
		if f.FileInfo().IsDir() || !fs.ValidPath(name) {
			continue
		}
		files[name] = f
		entries = append(entries, EntryInfo{Path: name, Size: int64(f.UncompressedSize64), ModTime: f.Modified})
	}
	return &ZipStructure{entryIndex: newEntryIndex(entries), files: files, closer: closer}
}

// Open opens an entry for reading.
func (z *ZipStructure) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := z.files[name]
	if !ok {
		return nil, notExist(name)
	}
	return f.Open()
}

// Close releases the archive file, if any.
func (z *ZipStructure) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}
