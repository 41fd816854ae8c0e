// SPDX-License-Identifier: MPL-2.0

package kar

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
)

// Extension is the file extension of packed archives.
const Extension = ".kar"

const (
	magicLength   = 4
	lengthBytes   = 4
	maxHeaderSize = 64 << 20
	// MaxEntrySize bounds the uncompressed size of a single entry.
	MaxEntrySize = 1 << 30
)

var magic = [magicLength]byte{'K', 'A', 'R', 0x01}

// ErrFormat is returned for data that is not a readable kar archive.
var ErrFormat = errors.New("corrupted or not a kar archive")

type (
	// IndexEntry locates one file inside the archive. Offset is relative to
	// the end of the header.
	IndexEntry struct {
		Name           string
		Offset         int64
		Size           int64
		CompressedSize int64
		ModTime        int64
	}

	// Header is the archive preamble.
	Header struct {
		Author  string
		Created int64
		Version int64
		Index   []IndexEntry
	}

	// Builder collects compressed entries and writes an archive.
	// Add is safe for concurrent use.
	Builder struct {
		header Header

		mu    sync.Mutex
		files map[string]builtFile
	}

	builtFile struct {
		data    []byte
		size    int64
		modTime time.Time
	}

	// Archive gives concurrent read access to an archive's entries.
	Archive struct {
		r          io.ReaderAt
		header     Header
		dataOffset int64
		byName     map[string]int
	}

	// File is an Archive backed by an open file.
	File struct {
		*Archive
		f *os.File
	}
)

// NewBuilder returns a Builder. Any Index in header is ignored.
func NewBuilder(header Header) *Builder {
	header.Index = nil
	return &Builder{header: header, files: make(map[string]builtFile)}
}

// Add compresses data under name. Adding the same name twice replaces the
// earlier entry.
func (b *Builder) Add(name string, data []byte, modTime time.Time) error {
	if name == "" || !fs.ValidPath(name) {
		return fmt.Errorf("kar: invalid entry name %q", name)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("kar: compress %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("kar: compress %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[name] = builtFile{data: buf.Bytes(), size: int64(len(data)), modTime: modTime}
	return nil
}

// WriteTo writes the archive with entries sorted by name.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)

	header := b.header
	header.Index = make([]IndexEntry, 0, len(names))
	var offset int64
	for _, name := range names {
		f := b.files[name]
		header.Index = append(header.Index, IndexEntry{
			Name:           name,
			Offset:         offset,
			Size:           f.size,
			CompressedSize: int64(len(f.data)),
			ModTime:        f.modTime.UnixNano(),
		})
		offset += int64(len(f.data))
	}

	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(header); err != nil {
		return 0, fmt.Errorf("kar: encode header: %w", err)
	}

	var preamble [magicLength + lengthBytes]byte
	copy(preamble[:], magic[:])
	binary.LittleEndian.PutUint32(preamble[magicLength:], uint32(encoded.Len()))

	var written int64
	for _, chunk := range append([][]byte{preamble[:], encoded.Bytes()}, b.chunks(names)...) {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (b *Builder) chunks(names []string) [][]byte {
	out := make([][]byte, 0, len(names))
	for _, name := range names {
		out = append(out, b.files[name].data)
	}
	return out
}

// Open reads the archive header from r.
func Open(r io.ReaderAt) (*Archive, error) {
	var preamble [magicLength + lengthBytes]byte
	if _, err := r.ReadAt(preamble[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrFormat
		}
		return nil, err
	}
	if !bytes.Equal(preamble[:magicLength], magic[:]) {
		return nil, ErrFormat
	}

	size := int64(binary.LittleEndian.Uint32(preamble[magicLength:]))
	if size == 0 || size > maxHeaderSize {
		return nil, ErrFormat
	}

	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, magicLength+lengthBytes); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}

	var header Header
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	a := &Archive{
		r:          r,
		header:     header,
		dataOffset: magicLength + lengthBytes + size,
		byName:     make(map[string]int, len(header.Index)),
	}
	for i, e := range header.Index {
		if err := e.validate(); err != nil {
			return nil, err
		}
		a.byName[e.Name] = i
	}
	return a, nil
}

func (e IndexEntry) validate() error {
	switch {
	case e.Size < 0 || e.Size > MaxEntrySize:
		return fmt.Errorf("%w: %s has size %d", ErrFormat, e.Name, e.Size)
	case e.CompressedSize < 0 || e.Offset < 0:
		return fmt.Errorf("%w: %s has a negative offset or length", ErrFormat, e.Name)
	}
	return nil
}

// OpenFile opens the archive at path. Close releases the file.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := Open(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Archive: a, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// Header returns the archive header.
func (a *Archive) Header() Header {
	h := a.header
	h.Index = slices.Clone(a.header.Index)
	return h
}

// Entries returns the index in name order.
func (a *Archive) Entries() []IndexEntry {
	return slices.Clone(a.header.Index)
}

// Stat returns the index entry for name.
func (a *Archive) Stat(name string) (IndexEntry, bool) {
	i, ok := a.byName[name]
	if !ok {
		return IndexEntry{}, false
	}
	return a.header.Index[i], true
}

// Open returns a decompressing reader for name.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	e, ok := a.Stat(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	section := io.NewSectionReader(a.r, a.dataOffset+e.Offset, e.CompressedSize)
	return io.NopCloser(io.LimitReader(lz4.NewReader(section), e.Size)), nil
}

// ReadAll returns the decompressed contents of name.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	e, _ := a.Stat(name)
	data := make([]byte, 0, e.Size)
	buf := bytes.NewBuffer(data)
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, fmt.Errorf("kar: read %s: %w", name, err)
	}
	if int64(buf.Len()) != e.Size {
		return nil, fmt.Errorf("%w: %s is %d bytes, index says %d", ErrFormat, name, buf.Len(), e.Size)
	}
	return buf.Bytes(), nil
}
