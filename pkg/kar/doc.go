// SPDX-License-Identifier: MPL-2.0

// Package kar implements a packed content archive where every entry is an
// individually compressed lz4 frame.
//
// The layout is:
//
//	magic "KAR\x01" | uint32 LE header length | gob-encoded Header | entry frames
//
// The header carries the full index, so an entry can be located and
// decompressed without scanning the archive, and an Archive can serve
// concurrent readers from a single io.ReaderAt.
package kar
