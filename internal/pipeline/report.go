// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/invowk/contentpipe/internal/content"
)

type (
	// Failure is one entry that produced no item.
	Failure struct {
		Stage  string
		Source string
		Path   string
		Err    error
	}

	// StageSummary counts what one stage did.
	StageSummary struct {
		Name     string
		Selected int
		Loaded   int
		Failed   int
		Duration time.Duration
	}

	// Report summarizes a Load or Reload.
	Report struct {
		RunID    uuid.UUID
		Order    []string
		Loaded   []content.ID
		Reloaded []content.ID
		Removed  []content.ID
		Failures []Failure
		Stages   []StageSummary
		Duration time.Duration
	}
)

func (f Failure) Error() string {
	return fmt.Sprintf("%s:%s: %v", f.Source, f.Path, f.Err)
}

// Unwrap returns the cause.
func (f Failure) Unwrap() error { return f.Err }

// OK reports whether every entry loaded.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

func (r *Report) String() string {
	return fmt.Sprintf("%d sources, %d items loaded, %d reloaded, %d removed, %d failed in %s",
		len(r.Order), len(r.Loaded), len(r.Reloaded), len(r.Removed), len(r.Failures), r.Duration.Round(time.Millisecond))
}
