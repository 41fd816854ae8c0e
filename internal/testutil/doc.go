// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers shared across packages: Must* wrappers
// that fail the test on error, a controllable clock for polling loops, and
// builders for content fixtures (images, zip packages and source trees).
package testutil
