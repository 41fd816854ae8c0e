// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"slices"
	"strings"
	"testing"
)

func TestValues_CoverEveryId(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(WatchFailedId) {
		t.Fatalf("catalog has %d issues, want %d", len(values), WatchFailedId)
	}
	seen := make(map[string]bool)
	for i, is := range values {
		if is.Id() != Id(i+1) {
			t.Errorf("Values()[%d] has id %d", i, is.Id())
		}
		if is.Name() == "" || seen[is.Name()] {
			t.Errorf("issue %d has an empty or duplicate name %q", is.Id(), is.Name())
		}
		seen[is.Name()] = true
		if !strings.HasPrefix(strings.TrimSpace(string(is.MarkdownMsg())), "# ") {
			t.Errorf("issue %s should start with a heading", is.Name())
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	i, ok := Lookup(" Missing-Dependency ")
	if !ok || i.Id() != MissingDependencyId {
		t.Errorf("Lookup = %v, %v", i, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("unknown name should not resolve")
	}
	if names := Names(); names[0] != "config-load-failed" || !slices.Contains(names, "unknown-extension") {
		t.Errorf("Names = %v", names)
	}
	if Get(Id(999)) != nil {
		t.Error("unknown id should be nil")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	out, err := Get(BucketUnavailableId).Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Bucket sources could not be reached", "See also", "min.io"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered issue missing %q:\n%s", want, out)
		}
	}
	if links := Get(BucketUnavailableId).ExtLinks(); len(links) != 1 {
		t.Errorf("ExtLinks = %v", links)
	}
	if len(Get(DependencyCycleId).DocLinks()) != 0 {
		t.Error("DocLinks should be empty")
	}
}
