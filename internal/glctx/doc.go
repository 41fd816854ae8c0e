// SPDX-License-Identifier: MPL-2.0

// Package glctx owns the rendering context.
//
// Every GPU mutation is funneled through a Thread: a single goroutine,
// locked to its OS thread, that executes submitted jobs one at a time in
// submission order. Callers on any goroutine hand work over with Do and block
// until the job reports completion. The Device interface is the boundary to
// the actual graphics call layer; Headless is an in-memory Device used by the
// CLI and tests.
package glctx
