// SPDX-License-Identifier: MPL-2.0

// Package hotreload polls loaded content sources for changes and hands the
// changed entries to the pipeline. Each poll fingerprints every entry with
// xxhash and diffs against the previous poll; only the difference is
// reloaded, never the whole pipeline.
package hotreload
