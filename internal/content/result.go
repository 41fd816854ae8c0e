// SPDX-License-Identifier: MPL-2.0

package content

import (
	"fmt"
)

type (
	// Result is what a loader emits for an entry: either a produced item or
	// a failure. An entry may yield zero, one or several results.
	Result struct {
		ID   ID
		Item *Item
		Err  error
	}

	// EntryError scopes a failure to one entry of one source.
	EntryError struct {
		Source string
		Path   string
		Err    error
	}
)

// Succeeded wraps a produced item.
func Succeeded(item *Item) Result {
	return Result{ID: item.ID(), Item: item}
}

// Failed wraps a per-entry failure.
func Failed(e Entry, err error) Result {
	return Result{ID: ID(e.Path), Err: &EntryError{Source: e.SourceName(), Path: e.Path, Err: err}}
}

// OK reports whether the result carries an item.
func (r Result) OK() bool { return r.Err == nil && r.Item != nil }

// Message returns the failure message, or "" on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	return fmt.Sprintf("%s:%s: %v", e.Source, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EntryError) Unwrap() error { return e.Err }
