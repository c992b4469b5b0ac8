package effects

import (
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ConstructKind identifies a structured-control construct for
// allow-list lookups.
type ConstructKind string

const (
	// ConstructCond is an N-way structured branch.
	ConstructCond ConstructKind = "cond"

	// ConstructWhile is a condition + body loop.
	ConstructWhile ConstructKind = "while"

	// ConstructScan is bounded iteration with carried state.
	ConstructScan ConstructKind = "scan"

	// ConstructReplicate is map-style replication across workers.
	ConstructReplicate ConstructKind = "replicate"
)

// ValidConstructKinds defines the allowed construct kinds.
var ValidConstructKinds = map[ConstructKind]bool{
	ConstructCond:      true,
	ConstructWhile:     true,
	ConstructScan:      true,
	ConstructReplicate: true,
}

// Registry holds the process classification tables for effects:
// the intern table, the lowerable and ordered sets, and the
// per-construct allow-lists.
//
// A Registry is initialized at setup time and read thereafter.
// All methods are safe for concurrent use; writes take the write lock
// but are not expected on any per-execution path.
type Registry struct {
	mu        sync.RWMutex
	interned  map[string]Effect
	lowerable map[Effect]bool
	ordered   map[Effect]bool
	allowed   map[ConstructKind]map[Effect]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		interned:  make(map[string]Effect),
		lowerable: make(map[Effect]bool),
		ordered:   make(map[Effect]bool),
		allowed:   make(map[ConstructKind]map[Effect]bool),
	}
}

// Intern returns the canonical handle for name, creating it on first use.
// Names are NFC normalized, so byte-distinct but canonically equivalent
// spellings intern to the same handle.
func (r *Registry) Intern(name string) Effect {
	name = norm.NFC.String(name)

	r.mu.RLock()
	e, ok := r.interned[name]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.interned[name]; ok {
		return e
	}
	e = Effect{name: name}
	r.interned[name] = e
	return e
}

// DeclareLowerable marks the effect as backend-compilable. Idempotent.
func (r *Registry) DeclareLowerable(e Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lowerable[e] = true
}

// DeclareOrdered marks the effect as requiring global sequencing.
// An ordered effect must also be lowerable to appear in compiled code;
// that is checked at lowering time, not here. Idempotent.
func (r *Registry) DeclareOrdered(e Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordered[e] = true
}

// IsLowerable reports whether the backend can compile the effect.
func (r *Registry) IsLowerable(e Effect) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lowerable[e]
}

// IsOrdered reports whether the effect requires token threading.
func (r *Registry) IsOrdered(e Effect) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ordered[e]
}

// AllowInConstruct whitelists the effect for the given construct kind.
func (r *Registry) AllowInConstruct(kind ConstructKind, e Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.allowed[kind]
	if !ok {
		set = make(map[Effect]bool)
		r.allowed[kind] = set
	}
	set[e] = true
}

// IsAllowedInConstruct reports whether the effect is whitelisted for the
// construct kind.
func (r *Registry) IsAllowedInConstruct(kind ConstructKind, e Effect) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowed[kind][e]
}

// Ordered returns the subset of s that is declared ordered,
// preserving s's first-added order.
func (r *Registry) Ordered(s Set) Set {
	return s.Filter(r.IsOrdered)
}

// Unordered returns the subset of s that is not declared ordered,
// preserving s's first-added order.
func (r *Registry) Unordered(s Set) Set {
	return s.Filter(func(e Effect) bool { return !r.IsOrdered(e) })
}

// Unlowerable returns the subset of s with no registered backend lowering.
func (r *Registry) Unlowerable(s Set) Set {
	return s.Filter(func(e Effect) bool { return !r.IsLowerable(e) })
}

// Clone returns a deep copy of the registry. Tests clone a fixture
// registry instead of mutating shared state, which keeps test cases
// isolated without a global setup/teardown dance.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry()
	for name, e := range r.interned {
		out.interned[name] = e
	}
	for e := range r.lowerable {
		out.lowerable[e] = true
	}
	for e := range r.ordered {
		out.ordered[e] = true
	}
	for kind, set := range r.allowed {
		cp := make(map[Effect]bool, len(set))
		for e := range set {
			cp[e] = true
		}
		out.allowed[kind] = cp
	}
	return out
}
