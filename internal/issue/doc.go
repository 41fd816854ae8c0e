// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of known problems.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Errors may link to a catalog entry whose markdown is
// rendered with glamour by "contentpipe explain".
package issue
