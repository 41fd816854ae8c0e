// SPDX-License-Identifier: MPL-2.0

// Package logging is an asynchronous line logger. Producers enqueue lines
// without blocking; one consumer goroutine writes them, in enqueue order, to
// every registered sink. Handler adapts a Logger to log/slog.
package logging
