// Package classification maps building-element classification codes to
// amortization periods.
//
// Systems are registered under a string id and can be resolved by id or
// display name, case-insensitively. Only eBKP-H ships by default.
package classification

import (
	"sort"
	"strings"
	"sync"
)

// DefaultAmortizationYears is returned for unknown codes and unknown
// classification systems.
const DefaultAmortizationYears = 60

// System is one classification scheme with its amortization table.
type System interface {
	// ID is the registry key, e.g. "ebkp".
	ID() string
	// Name is the display name, e.g. "eBKP-H".
	Name() string
	// NormalizeCode canonicalizes authoring variants of a code.
	NormalizeCode(code string) string
	// AmortizationYears resolves a code by exact match, then longest
	// registered prefix, then DefaultAmortizationYears.
	AmortizationYears(code string) int
}

// Registry holds classification systems.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	systems   map[string]System
	defaultID string
}

// NewRegistry returns a registry containing systems. The first system
// becomes the default.
func NewRegistry(systems ...System) *Registry {
	r := &Registry{systems: make(map[string]System)}
	for _, s := range systems {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns a registry with eBKP-H as the default system.
func DefaultRegistry() *Registry {
	return NewRegistry(NewEBKP())
}

// Register adds or replaces s.
func (r *Registry) Register(s System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := strings.ToLower(s.ID())
	r.systems[id] = s
	if r.defaultID == "" {
		r.defaultID = id
	}
}

// Get resolves a system by id or display name, case-insensitively.
func (r *Registry) Get(idOrName string) (System, bool) {
	key := strings.ToLower(strings.TrimSpace(idOrName))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.systems[key]; ok {
		return s, true
	}
	for _, s := range r.systems {
		if strings.ToLower(s.Name()) == key {
			return s, true
		}
	}
	return nil, false
}

// Default returns the default system, or nil for an empty registry.
func (r *Registry) Default() System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.systems[r.defaultID]
}

// IDs returns the registered ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.systems))
	for id := range r.systems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AmortizationYears resolves code within the named system. An empty system
// name uses the default system. An unknown system yields
// DefaultAmortizationYears since system names may be free text.
func (r *Registry) AmortizationYears(system, code string) int {
	var s System
	if strings.TrimSpace(system) == "" {
		s = r.Default()
	} else {
		s, _ = r.Get(system)
	}
	if s == nil {
		return DefaultAmortizationYears
	}
	return s.AmortizationYears(code)
}
