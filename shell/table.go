package shell

import (
	"sort"
	"sync"

	"github.com/smnsjas/go-shellcore/pipeline"
)

// CommandFactory creates a command instance from its positional arguments
// and key=value parameter bindings.
type CommandFactory func(args []string, params map[string]interface{}) (pipeline.Command, error)

// CommandTable maps command names to factories. Safe for concurrent use.
type CommandTable struct {
	mu        sync.RWMutex
	factories map[string]CommandFactory
}

// NewCommandTable creates an empty CommandTable.
func NewCommandTable() *CommandTable {
	return &CommandTable{
		factories: make(map[string]CommandFactory),
	}
}

// Register binds name to factory, replacing any previous binding.
func (t *CommandTable) Register(name string, factory CommandFactory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[name] = factory
}

// Lookup returns the factory for name.
func (t *CommandTable) Lookup(name string) (CommandFactory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[name]
	return f, ok
}

// Names returns the registered command names, sorted.
func (t *CommandTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.factories))
	for name := range t.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
