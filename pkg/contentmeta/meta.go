// SPDX-License-Identifier: MPL-2.0

package contentmeta

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/invowk/contentpipe/pkg/cueutil"
	"github.com/pelletier/go-toml/v2"
)

const (
	// ManifestJSON is the preferred manifest file name at a source root.
	ManifestJSON = "meta.json"
	// ManifestTOML is the alternative manifest file name.
	ManifestTOML = "meta.toml"

	maxManifestSize int64 = 256 * 1024
)

// ErrManifestNotFound is returned when a source root carries no manifest.
// ErrInvalidManifest is the sentinel wrapped by ManifestError.
var (
	ErrManifestNotFound = errors.New("manifest not found")
	ErrInvalidManifest  = errors.New("invalid manifest")
)

//go:embed meta_schema.cue
var metaSchema []byte

// canonicalKeys maps lower-cased manifest keys to their camelCase spelling.
var canonicalKeys = map[string]string{
	"name":         "name",
	"version":      "version",
	"title":        "title",
	"author":       "author",
	"contact":      "contact",
	"description":  "description",
	"homepage":     "homepage",
	"dependencies": "dependencies",
}

type (
	// Meta is the identity and dependency record of one content source.
	Meta struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		Title        string   `json:"title,omitempty"`
		Author       string   `json:"author,omitempty"`
		Contact      string   `json:"contact,omitempty"`
		Description  string   `json:"description,omitempty"`
		Homepage     string   `json:"homepage,omitempty"`
		Dependencies []string `json:"dependencies,omitempty"`
	}

	// ManifestError reports a manifest that could not be read or failed
	// validation. It wraps ErrInvalidManifest.
	ManifestError struct {
		// Location identifies the source (directory, archive or bucket URL).
		Location string
		// File is the manifest file name within the source.
		File string
		Err  error
	}

	// Reader is the subset of a content structure needed to read a manifest.
	Reader interface {
		Has(name string) bool
		Open(ctx context.Context, name string) (io.ReadCloser, error)
	}
)

// Error implements the error interface.
func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid manifest %s in %s: %v", e.File, e.Location, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ManifestError) Unwrap() []error { return []error{ErrInvalidManifest, e.Err} }

// String renders "name@version".
func (m *Meta) String() string {
	return m.Name + "@" + m.Version
}

// DisplayTitle returns the title, falling back to the name.
func (m *Meta) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// Read locates the manifest at the root of r and parses it. meta.json takes
// precedence over meta.toml.
func Read(ctx context.Context, r Reader, location string) (*Meta, error) {
	var file string
	switch {
	case r.Has(ManifestJSON):
		file = ManifestJSON
	case r.Has(ManifestTOML):
		file = ManifestTOML
	default:
		return nil, &ManifestError{Location: location, File: ManifestJSON, Err: ErrManifestNotFound}
	}

	rc, err := r.Open(ctx, file)
	if err != nil {
		return nil, &ManifestError{Location: location, File: file, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxManifestSize+1))
	if err != nil {
		return nil, &ManifestError{Location: location, File: file, Err: err}
	}

	meta, err := Parse(data, file)
	if err != nil {
		return nil, &ManifestError{Location: location, File: file, Err: err}
	}
	return meta, nil
}

// Parse decodes a manifest document. The format is chosen from the file
// extension; anything other than .toml is treated as JSON.
func Parse(data []byte, filename string) (*Meta, error) {
	raw := map[string]any{}
	switch strings.ToLower(path.Ext(filename)) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("malformed TOML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("malformed JSON: %w", err)
		}
	}

	normalized, err := normalizeKeys(raw)
	if err != nil {
		return nil, err
	}

	// Re-encoded as JSON so both formats share one CUE validation path.
	doc, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}

	res, err := cueutil.ParseAndDecode[Meta](metaSchema, doc, "#Meta",
		cueutil.WithFilename(filename),
		cueutil.WithMaxFileSize(maxManifestSize),
		cueutil.AsJSON(),
	)
	if err != nil {
		return nil, err
	}

	meta := res.Value
	if err := meta.checkDependencies(); err != nil {
		return nil, err
	}
	return meta, nil
}

func normalizeKeys(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	seen := make(map[string]string, len(raw))
	for key, value := range raw {
		canonical, ok := canonicalKeys[strings.ToLower(key)]
		if !ok {
			canonical = key
		}
		if prev, dup := seen[canonical]; dup {
			return nil, fmt.Errorf("keys %q and %q both map to %q", prev, key, canonical)
		}
		seen[canonical] = key
		out[canonical] = value
	}
	return out, nil
}

func (m *Meta) checkDependencies() error {
	seen := make(map[string]struct{}, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("source %q lists itself as a dependency", m.Name)
		}
		if _, dup := seen[dep]; dup {
			return fmt.Errorf("dependency %q is listed more than once", dep)
		}
		seen[dep] = struct{}{}
	}
	return nil
}
