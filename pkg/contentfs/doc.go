// SPDX-License-Identifier: MPL-2.0

// Package contentfs provides read-only views over content sources.
//
// A source lives in a directory, a zip archive, a packed .kar archive or
// under a prefix of an object-storage bucket (s3://bucket/prefix). Each of
// these is exposed through the same Structure interface: enumerate entries,
// check whether an entry exists, open an entry stream. A Structure is owned
// by the operation that opened it and must be closed when that operation
// ends.
package contentfs
