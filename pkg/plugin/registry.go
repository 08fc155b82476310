package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/illmade-knight/go-inclusionfilter/pkg/selector"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
)

// Registry is the host's name registry for callable selectors.
type Registry interface {
	Register(name string, fn selector.Func) error
}

// MemoryRegistry is a thread-safe, in-process Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	funcs map[string]selector.Func
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{funcs: make(map[string]selector.Func)}
}

// Register adds fn under name. Names are unique.
func (r *MemoryRegistry) Register(name string, fn selector.Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("name and function are required: %w", types.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("function <%s> already registered: %w", name, types.ErrInvalidArgument)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the function registered under name.
func (r *MemoryRegistry) Lookup(name string) (selector.Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names lists the registered names in sorted order.
func (r *MemoryRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
