// SPDX-License-Identifier: MPL-2.0

package content

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Override policies.
const (
	// LastWins lets a source later in load order replace an item provided
	// by an earlier one. Dependents override their dependencies.
	LastWins OverridePolicy = iota
	// FirstWins keeps the item from the earliest source in load order.
	FirstWins
)

type (
	// OverridePolicy decides which source provides an ID offered by several.
	OverridePolicy int

	// Registry is the merged item set. Conflicts are decided by source rank
	// in load order, not by arrival order, so concurrent loading cannot
	// change the outcome.
	Registry struct {
		mu     sync.RWMutex
		policy OverridePolicy
		rank   map[string]int
		items  map[ID]*Item
	}
)

// String returns the config spelling of the policy.
func (p OverridePolicy) String() string {
	switch p {
	case LastWins:
		return "last_wins"
	case FirstWins:
		return "first_wins"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseOverridePolicy accepts "last_wins" and "first_wins" (case-insensitive,
// dashes allowed). An empty string selects LastWins.
func ParseOverridePolicy(s string) (OverridePolicy, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "_") {
	case "", "last_wins":
		return LastWins, nil
	case "first_wins":
		return FirstWins, nil
	default:
		return 0, fmt.Errorf("unknown override policy %q (want last_wins or first_wins)", s)
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(policy OverridePolicy) *Registry {
	return &Registry{policy: policy, rank: map[string]int{}, items: map[ID]*Item{}}
}

// Policy returns the override policy.
func (r *Registry) Policy() OverridePolicy { return r.policy }

// SetSourceOrder records the resolved load order used to rank sources.
func (r *Registry) SetSourceOrder(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rank = make(map[string]int, len(names))
	for i, n := range names {
		r.rank[n] = i
	}
}

// Put offers item to the registry. It returns whether the item was kept and
// the item it displaced, if any. A rejected item is returned unchanged as
// displaced so the caller can release it.
func (r *Registry) Put(item *Item) (kept bool, displaced *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[item.ID()]
	if !ok || existing == item {
		r.items[item.ID()] = item
		return true, nil
	}
	if r.wins(item.Source(), existing.Source()) {
		r.items[item.ID()] = item
		return true, existing
	}
	return false, item
}

// wins reports whether challenger replaces holder. The same source always
// replaces its own earlier item.
func (r *Registry) wins(challenger, holder string) bool {
	if challenger == holder {
		return true
	}
	cr, hr := r.rank[challenger], r.rank[holder]
	if r.policy == FirstWins {
		return cr < hr
	}
	return cr > hr
}

// Lookup finds an item by ID or by "source:id". A qualified ref only
// matches when that source provides the winning item.
func (r *Registry) Lookup(ref string) (*Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if it, ok := r.items[ID(ref)]; ok {
		return it, true
	}
	src, id := SplitRef(ref)
	if src == "" {
		return nil, false
	}
	it, ok := r.items[id]
	if !ok || it.Source() != src {
		return nil, false
	}
	return it, true
}

// Owner returns the source providing id.
func (r *Registry) Owner(id ID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return "", false
	}
	return it.Source(), true
}

// Remove deletes id if source provides it.
func (r *Registry) Remove(id ID, source string) (*Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Source() != source {
		return nil, false
	}
	delete(r.items, id)
	return it, true
}

// Items returns all items sorted by ID.
func (r *Registry) Items() []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b *Item) int { return strings.Compare(string(a.ID()), string(b.ID())) })
	return out
}

// Len returns the number of items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// CountByKind tallies items per kind.
func (r *Registry) CountByKind() map[Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Kind]int)
	for _, it := range r.items {
		counts[it.Kind()]++
	}
	return counts
}
