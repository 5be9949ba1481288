package module

import (
	"sort"
	"sync"
)

// simple global registry for cross wiring ports during bootstrap in main
// safe for tests and single process composition
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores a port set for a module name
func Register(name string, ports any) {
	mu.Lock()
	reg[name] = ports
	mu.Unlock()
}

// Names returns the registered module names, sorted for stable startup logs
func Names() []string {
	mu.RLock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	mu.RUnlock()
	sort.Strings(out)
	return out
}
