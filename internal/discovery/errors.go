// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrRootNotFound is returned for a configured root that does not exist.
	ErrRootNotFound = errors.New("content root not found")
	// ErrDuplicateSource is the sentinel wrapped by DuplicateSourceError.
	ErrDuplicateSource = errors.New("duplicate source name")
)

// DuplicateSourceError reports two locations whose manifests declare the
// same source name.
type DuplicateSourceError struct {
	Name   string
	First  string
	Second string
}

// Error implements the error interface.
func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source %q is declared by both %s and %s", e.Name, e.First, e.Second)
}

// Unwrap returns ErrDuplicateSource.
func (e *DuplicateSourceError) Unwrap() error { return ErrDuplicateSource }
