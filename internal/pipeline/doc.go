// SPDX-License-Identifier: MPL-2.0

// Package pipeline drives a content load: it resolves the source order, runs
// the loading stages in sequence, merges every stage's results into the item
// registry and hands GPU-backed items to the GPU thread for initialization.
//
// Within a stage, entries load concurrently. Stages are strictly sequential:
// a stage's completion hook returns before the next stage's start hook runs.
// Structural failures (manifest, resolution, unreadable source) abort the
// load before the first stage; an entry failure never affects its siblings.
//
// After a load, Reload routes changed entries back through their stage's
// loader and updates the existing items in place.
package pipeline
