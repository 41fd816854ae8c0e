// SPDX-License-Identifier: MPL-2.0

package discovery

import "github.com/invowk/contentpipe/internal/content"

const (
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal discovery error diagnostic.
	SeverityError Severity = "error"

	// CodeNoManifest marks a candidate skipped because it has no manifest.
	CodeNoManifest = "no_manifest"
	// CodeNotASource marks a root entry that is neither a directory nor an
	// archive.
	CodeNotASource = "not_a_source"
)

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// Diagnostic represents a structured discovery diagnostic that is returned
	// to callers (rather than written to stderr) for consistent rendering policy.
	Diagnostic struct {
		// Severity is the diagnostic level (warning or error).
		Severity Severity
		// Code is a machine-readable identifier (e.g., "no_manifest").
		Code string
		// Message is the human-readable description.
		Message string
		// Path is the location associated with this diagnostic.
		Path string
		// Cause is the underlying error (optional, for programmatic inspection).
		Cause error
	}

	// Result bundles the discovered sources with non-fatal diagnostics.
	Result struct {
		Sources     []*content.Source
		Diagnostics []Diagnostic
	}
)

// Names returns the source names in discovery order.
func (r *Result) Names() []string {
	names := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		names[i] = s.Name()
	}
	return names
}
