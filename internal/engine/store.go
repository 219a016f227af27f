// Package engine defines the core document storage contracts for the Hireloop Store.
package engine

import "errors"

var (
	// ErrCollectionNotFound is returned when a requested collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDocumentNotFound is returned when a requested document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidQuery is returned when a query references an unusable field or operator.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrSubscriptionClosed is returned when operating on a closed subscription.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// Document is a single schemaless record. The "id" field is owned by the
// store: Insert stamps it and Update/Delete address documents by it.
type Document = map[string]any

// Filter is a single equality constraint on a document field.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Query selects documents within one collection. Filters are ANDed.
// OrderBy sorts by a single field; Descending flips the direction.
type Query struct {
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    string   `json:"order_by,omitempty"`
	Descending bool     `json:"descending,omitempty"`
}

// Snapshot is one delivery from a live query: the full matching result set,
// or a delivery error. A snapshot error does not terminate the subscription.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is a live query handle. Updates yields the current snapshot
// immediately after Watch and again after every commit that touches the
// watched collection. Close releases the underlying watch resource; it is
// safe to call more than once.
type Subscription interface {
	Updates() <-chan Snapshot
	Close()
}

// Batch accumulates mutations that commit atomically: after Commit either
// every operation is visible or none is.
type Batch interface {
	Update(collection, id string, fields Document)
	Delete(collection, id string)
	Commit() error
}

// Store is the primary interface for interacting with the document store.
// Both the local embedded engine and the remote network client implement
// this contract.
type Store interface {
	// Get retrieves a single document by id.
	Get(collection, id string) (Document, error)
	// Find returns every document in the collection matching the query.
	Find(collection string, q Query) ([]Document, error)
	// Insert stores a new document and returns its generated id.
	Insert(collection string, doc Document) (string, error)
	// Update merges fields into an existing document.
	Update(collection, id string, fields Document) error
	// Delete removes a document.
	Delete(collection, id string) error

	// NewBatch starts an atomic multi-document write.
	NewBatch() Batch

	// Watch opens a live query against the collection.
	Watch(collection string, q Query) (Subscription, error)

	// Collections returns the ids of all known collections.
	Collections() ([]string, error)

	// Close flushes pending work and releases the store.
	Close() error
}
