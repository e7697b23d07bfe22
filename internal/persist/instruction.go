package persist

import "github.com/illarion/haredb/internal/storage"

// Instruction is one message for the worker: Startup, Set, Delete or Shutdown.
type Instruction interface {
	kind() string
}

// Startup opens the store at Path. The worker owns the handle afterwards.
type Startup struct {
	Path    string
	Options storage.Options
}

// Set upserts a row.
type Set struct {
	Key   string
	Value string
}

// Delete removes a row if present.
type Delete struct {
	Key string
}

// Shutdown closes the store and stops the worker.
type Shutdown struct{}

func (Startup) kind() string  { return "startup" }
func (Set) kind() string      { return "set" }
func (Delete) kind() string   { return "delete" }
func (Shutdown) kind() string { return "shutdown" }
