// SPDX-License-Identifier: MPL-2.0

// Package resolve orders content sources so that every source is loaded after
// the sources it declares as dependencies.
//
// Resolution is all-or-nothing: a duplicate name, a dependency that names no
// known source, or a dependency cycle fails the whole call and no partial
// order is returned.
package resolve
