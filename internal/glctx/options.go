// SPDX-License-Identifier: MPL-2.0

package glctx

import "log/slog"

// Option configures a Thread.
type Option func(*Thread)

// WithQueueSize sets how many jobs may wait for the owning goroutine before
// Do blocks. Default is 64.
func WithQueueSize(size int) Option {
	return func(t *Thread) {
		if size > 0 {
			t.queueSize = size
		}
	}
}

// WithLogger sets the logger used for job failures. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Thread) {
		if logger != nil {
			t.logger = logger
		}
	}
}
