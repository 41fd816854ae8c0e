// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()
		if err := FormatError(nil, "meta.json"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with filename", func(t *testing.T) {
		t.Parallel()
		orig := errors.New("boom")
		err := FormatError(orig, "meta.json")
		if !errors.Is(err, orig) {
			t.Errorf("expected wrapped original error, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "meta.json: ") {
			t.Errorf("expected filename prefix, got %q", err.Error())
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{path: nil, want: ""},
		{path: []string{"name"}, want: "name"},
		{path: []string{"glyphs", "0", "advance"}, want: "glyphs[0].advance"},
		{path: []string{"stages", "1"}, want: "stages[1]"},
		{path: []string{"0"}, want: "0"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()
	if err := CheckFileSize(make([]byte, 10), 10, "a"); err != nil {
		t.Errorf("expected size at limit to pass, got %v", err)
	}
	if err := CheckFileSize(make([]byte, 11), 10, "a"); err == nil {
		t.Error("expected error above limit")
	}
}
