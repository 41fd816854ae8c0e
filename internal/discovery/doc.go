// SPDX-License-Identifier: MPL-2.0

// Package discovery turns configured roots into content sources.
//
// A root is a directory, an archive (.zip or .kar) or an s3:// bucket
// prefix. A root that carries a manifest is itself a source; otherwise each
// immediate child directory, archive or bucket prefix is a candidate source.
// Candidates without a manifest are skipped with a diagnostic, while invalid
// manifests and duplicate source names are fatal.
//
// File organization:
//   - discovery.go: Discovery type, options and Discover
//   - candidates.go: root expansion into candidate locations
//   - diagnostic.go: non-fatal diagnostics returned to callers
//   - errors.go: structural discovery errors
package discovery
