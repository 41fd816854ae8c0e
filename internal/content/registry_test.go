// SPDX-License-Identifier: MPL-2.0

package content

import (
	"errors"
	"testing"
)

func script(id ID, source, text string) *Item {
	return NewItem(id, source, &Script{Lang: "lua", Text: text})
}

func TestRegistry_OverridePolicy(t *testing.T) {
	t.Parallel()

	order := []string{"base", "mod_a"}
	tests := []struct {
		name       string
		policy     OverridePolicy
		insertions []string
		want       string
	}{
		{"last wins in load order", LastWins, []string{"base", "mod_a"}, "mod_a"},
		{"last wins reversed arrival", LastWins, []string{"mod_a", "base"}, "mod_a"},
		{"first wins in load order", FirstWins, []string{"base", "mod_a"}, "base"},
		{"first wins reversed arrival", FirstWins, []string{"mod_a", "base"}, "base"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRegistry(tt.policy)
			r.SetSourceOrder(order)

			var rejected []*Item
			for _, src := range tt.insertions {
				if _, displaced := r.Put(script("scripts/init.lua", src, src)); displaced != nil {
					rejected = append(rejected, displaced)
				}
			}

			owner, ok := r.Owner("scripts/init.lua")
			if !ok || owner != tt.want {
				t.Errorf("owner = %q, want %q", owner, tt.want)
			}
			if r.Len() != 1 {
				t.Errorf("Len = %d, want 1", r.Len())
			}
			if len(rejected) != 1 || rejected[0].Source() == tt.want {
				t.Errorf("expected the losing item to be handed back, got %v", rejected)
			}
		})
	}
}

func TestRegistry_PutReportsKept(t *testing.T) {
	t.Parallel()
	r := NewRegistry(FirstWins)
	r.SetSourceOrder([]string{"base", "mod_a"})

	base := script("a.lua", "base", "1")
	if kept, displaced := r.Put(base); !kept || displaced != nil {
		t.Fatalf("first put: kept=%v displaced=%v", kept, displaced)
	}
	mod := script("a.lua", "mod_a", "2")
	kept, displaced := r.Put(mod)
	if kept || displaced != mod {
		t.Errorf("lower-priority put: kept=%v displaced=%v", kept, displaced)
	}

	// A source always replaces its own item.
	again := script("a.lua", "base", "3")
	kept, displaced = r.Put(again)
	if !kept || displaced != base {
		t.Errorf("same-source put: kept=%v displaced=%v", kept, displaced)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()
	r := NewRegistry(LastWins)
	r.SetSourceOrder([]string{"base", "mod_a"})
	r.Put(script("scripts/init.lua", "base", "a"))
	r.Put(script("scripts/init.lua", "mod_a", "b"))
	r.Put(script("scripts/only_base.lua", "base", "c"))

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"scripts/init.lua", "mod_a", true},
		{"mod_a:scripts/init.lua", "mod_a", true},
		{"base:scripts/init.lua", "", false},
		{"base:scripts/only_base.lua", "base", true},
		{"missing.lua", "", false},
		{"other:scripts/only_base.lua", "", false},
	}
	for _, tt := range tests {
		it, ok := r.Lookup(tt.ref)
		if ok != tt.wantOK {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.ref, ok, tt.wantOK)
			continue
		}
		if ok && it.Source() != tt.want {
			t.Errorf("Lookup(%q) source = %q, want %q", tt.ref, it.Source(), tt.want)
		}
	}
}

func TestRegistry_RemoveAndCounts(t *testing.T) {
	t.Parallel()
	r := NewRegistry(LastWins)
	r.SetSourceOrder([]string{"base"})
	r.Put(script("b.lua", "base", ""))
	r.Put(script("a.lua", "base", ""))
	r.Put(NewItem("t.png", "base", texture(1, 1)))

	items := r.Items()
	if len(items) != 3 || items[0].ID() != "a.lua" || items[2].ID() != "t.png" {
		t.Fatalf("Items not sorted: %v", items)
	}
	counts := r.CountByKind()
	if counts[KindScript] != 2 || counts[KindTexture] != 1 {
		t.Errorf("CountByKind = %v", counts)
	}

	if _, ok := r.Remove("a.lua", "other"); ok {
		t.Error("remove by a non-owner must fail")
	}
	if _, ok := r.Remove("a.lua", "base"); !ok {
		t.Error("remove by owner failed")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestParseOverridePolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    OverridePolicy
		wantErr bool
	}{
		{"", LastWins, false},
		{"last_wins", LastWins, false},
		{"First-Wins", FirstWins, false},
		{"random", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseOverridePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOverridePolicy(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseOverridePolicy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if FirstWins.String() != "first_wins" {
		t.Errorf("String = %q", FirstWins.String())
	}
}

func TestResult(t *testing.T) {
	t.Parallel()
	src := &Source{}
	src.Meta.Name = "base"
	cause := errors.New("boom")

	res := Failed(Entry{Source: src, Path: "shaders/ui.glsl"}, cause)
	if res.OK() {
		t.Fatal("failed result reports OK")
	}
	if got, want := res.Message(), "base:shaders/ui.glsl: boom"; got != want {
		t.Errorf("Message = %q, want %q", got, want)
	}
	var ee *EntryError
	if !errors.As(res.Err, &ee) || ee.Path != "shaders/ui.glsl" || !errors.Is(res.Err, cause) {
		t.Errorf("unexpected error chain %v", res.Err)
	}

	ok := Succeeded(script("x.lua", "base", ""))
	if !ok.OK() || ok.ID != "x.lua" || ok.Message() != "" {
		t.Errorf("unexpected success result %+v", ok)
	}

	if s, id := SplitRef("base:shaders/a.vert"); s != "base" || id != "shaders/a.vert" {
		t.Errorf("SplitRef = %q %q", s, id)
	}
}
