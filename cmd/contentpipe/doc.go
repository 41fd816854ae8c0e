// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for contentpipe.
//
// This package implements the Cobra command hierarchy: loading, ordering
// and validating content sources, watching them for hot-reload, packing
// directory sources into .kar archives, and explaining structural errors
// from the issue catalog.
package cmd
