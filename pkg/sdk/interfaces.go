// Package sdk provides the client-side library for the Hireloop Store.
// It supports both remote connections via TCP/TLS and local embedded mode.
package sdk

import "github.com/hireloop-dev/hireloop-store/internal/engine"

// --- Functional Interfaces (Interface Segregation) ---

// DocReader defines the basic read operations for the store.
type DocReader interface {
	Get(collection, id string) (engine.Document, error)
	Find(collection string, q engine.Query) ([]engine.Document, error)
}

// DocWriter defines the basic write and delete operations for the store.
type DocWriter interface {
	Insert(collection string, doc engine.Document) (string, error)
	Update(collection, id string, fields engine.Document) error
	Delete(collection, id string) error
}

// BatchWriter starts atomic multi-document writes.
type BatchWriter interface {
	NewBatch() engine.Batch
}

// Watcher opens live queries.
type Watcher interface {
	Watch(collection string, q engine.Query) (engine.Subscription, error)
}

// CollectionEnumeration allows discovering collections.
type CollectionEnumeration interface {
	Collections() ([]string, error)
}

// Store is the composite contract, identical to the engine's: application
// code never cares whether the backend is embedded or remote.
type Store = engine.Store
