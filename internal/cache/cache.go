// Package cache holds lazily populated values that are reset together when
// the remote state they mirror changes.
package cache

import (
	"fmt"
	"strings"
)

// Entry is a resettable cache member.
type Entry interface {
	Reset()
	Populated() bool
}

// Slot memoizes a single value. It is either empty or populated.
// It is not safe for concurrent use; callers must confine a slot to one
// goroutine or synchronize externally.
type Slot[T any] struct {
	value     T
	populated bool
}

// Verify Slot satisfies Entry at compile time.
var _ Entry = (*Slot[int])(nil)

// Get returns the stored value, or the zero value and false when empty.
func (s *Slot[T]) Get() (T, bool) {
	return s.value, s.populated
}

// Set stores v, replacing any existing value.
func (s *Slot[T]) Set(v T) {
	s.value = v
	s.populated = true
}

// Load returns the stored value, calling fetch on a miss. A failed fetch
// leaves the slot empty so the next Load tries again.
func (s *Slot[T]) Load(fetch func() (T, error)) (T, error) {
	if s.populated {
		return s.value, nil
	}
	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(v)
	return v, nil
}

// Reset empties the slot.
func (s *Slot[T]) Reset() {
	var zero T
	s.value = zero
	s.populated = false
}

// Populated reports whether the slot holds a value.
func (s *Slot[T]) Populated() bool { return s.populated }

// Policy decides how much of a Group an invalidation resets.
type Policy int

const (
	// InvalidateAll resets every entry on any invalidation.
	InvalidateAll Policy = iota
	// InvalidateDependents resets only the changed entries and, transitively,
	// the entries that depend on them.
	InvalidateDependents
)

func (p Policy) String() string {
	if p == InvalidateDependents {
		return "dependents"
	}
	return "all"
}

// ParsePolicy maps "all" or "dependents" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return InvalidateAll, nil
	case "dependents":
		return InvalidateDependents, nil
	default:
		return InvalidateAll, fmt.Errorf("cache: unknown invalidation policy %q (want all or dependents)", s)
	}
}

// Group owns a set of named entries and the dependency graph between them.
// Names may also refer to remote resources that have no entry of their own;
// invalidating such a name still reaches the entries depending on it.
// It is not safe for concurrent use.
type Group struct {
	policy  Policy
	order   []string
	entries map[string]Entry
	deps    map[string][]string
}

// NewGroup creates an empty Group.
func NewGroup(policy Policy) *Group {
	return &Group{
		policy:  policy,
		entries: make(map[string]Entry),
		deps:    make(map[string][]string),
	}
}

// Policy returns the group's invalidation policy.
func (g *Group) Policy() Policy { return g.policy }

// Register adds a named entry that depends on the given names.
// Panics if name is empty, e is nil or name is already registered
// (programmer error).
func (g *Group) Register(name string, e Entry, dependsOn ...string) {
	if name == "" {
		panic("cache: Register called with empty name")
	}
	if e == nil {
		panic("cache: Register called with nil entry")
	}
	if _, ok := g.entries[name]; ok {
		panic(fmt.Sprintf("cache: %q registered twice", name))
	}
	g.entries[name] = e
	g.order = append(g.order, name)
	g.deps[name] = append([]string(nil), dependsOn...)
}

// Names returns registered entry names in registration order.
func (g *Group) Names() []string { return append([]string(nil), g.order...) }

// Populated reports whether the named entry holds a value.
func (g *Group) Populated(name string) bool {
	e, ok := g.entries[name]
	return ok && e.Populated()
}

// ResetAll empties every entry. It is idempotent.
func (g *Group) ResetAll() []string {
	for _, name := range g.order {
		g.entries[name].Reset()
	}
	return g.Names()
}

// Invalidate resets the entries affected by a change to the named resources
// and returns the names of the entries it reset.
func (g *Group) Invalidate(changed ...string) []string {
	if g.policy == InvalidateAll {
		return g.ResetAll()
	}
	affected := g.Dependents(changed...)
	for _, name := range affected {
		g.entries[name].Reset()
	}
	return affected
}

// Dependents returns, in registration order, the registered entries among
// changed plus every entry that transitively depends on one of them.
func (g *Group) Dependents(changed ...string) []string {
	hit := make(map[string]bool, len(changed))
	for _, c := range changed {
		hit[c] = true
	}
	for grew := true; grew; {
		grew = false
		for _, name := range g.order {
			if hit[name] {
				continue
			}
			for _, d := range g.deps[name] {
				if hit[d] {
					hit[name] = true
					grew = true
					break
				}
			}
		}
	}

	var out []string
	for _, name := range g.order {
		if hit[name] {
			out = append(out, name)
		}
	}
	return out
}
