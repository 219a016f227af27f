package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemStore is the thread-safe embedded document engine.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [collection][documentID]Document
	data      map[string]map[string]Document
	persister *Persistence
	hub       *watchHub
	wg        sync.WaitGroup
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and a persister.
func NewMemStore(initialData map[string]map[string]Document, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]Document)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
		hub:       newWatchHub(),
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// --- Interface Implementation ---

func (m *MemStore) Get(collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.data[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	doc, ok := col[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return copyDoc(doc), nil
}

func (m *MemStore) Find(collection string, q Query) ([]Document, error) {
	if collection == "" {
		return nil, ErrInvalidQuery
	}
	m.mu.RLock()
	var results []Document
	for _, doc := range m.data[collection] {
		if matches(doc, q) {
			results = append(results, copyDoc(doc))
		}
	}
	m.mu.RUnlock()

	sortDocs(results, q)
	return results, nil
}

func (m *MemStore) Insert(collection string, doc Document) (string, error) {
	if collection == "" {
		return "", ErrInvalidQuery
	}
	// Keep a caller-supplied id so migrations between backends preserve
	// cross-document references.
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]Document)
	}
	stored := copyDoc(doc)
	stored["id"] = id
	m.data[collection][id] = stored
	m.mu.Unlock()

	m.persistAsync(collection)
	m.hub.notify(collection, m.Find)
	return id, nil
}

func (m *MemStore) Update(collection, id string, fields Document) error {
	m.mu.Lock()
	col, ok := m.data[collection]
	if !ok {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	doc, ok := col[id]
	if !ok {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = copyValue(v)
	}
	m.mu.Unlock()

	m.persistAsync(collection)
	m.hub.notify(collection, m.Find)
	return nil
}

// Delete removes a document. Deleting a document that does not exist is a
// no-op, matching the idempotent delete semantics of the write paths built
// on top of this engine.
func (m *MemStore) Delete(collection, id string) error {
	m.mu.Lock()
	if col, ok := m.data[collection]; ok {
		delete(col, id)
	}
	m.mu.Unlock()

	m.persistAsync(collection)
	m.hub.notify(collection, m.Find)
	return nil
}

func (m *MemStore) NewBatch() Batch {
	return &memBatch{store: m}
}

func (m *MemStore) Watch(collection string, q Query) (Subscription, error) {
	if collection == "" {
		return nil, ErrInvalidQuery
	}
	return m.hub.subscribe(collection, q, m.Find), nil
}

func (m *MemStore) Collections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []string
	for name := range m.data {
		list = append(list, name)
	}
	sort.Strings(list)
	return list, nil
}

func (m *MemStore) Close() error {
	m.wg.Wait()
	return nil
}

// persistAsync snapshots a collection and saves it in the background,
// the same way every foreground mutation returns without waiting on disk.
func (m *MemStore) persistAsync(collection string) {
	if m.persister == nil {
		return
	}
	m.mu.RLock()
	snapshot := m.copyCollection(collection)
	m.mu.RUnlock()

	m.wg.Add(1)
	go func(name string, docs map[string]Document) {
		defer m.wg.Done()
		m.persister.SaveCollection(name, docs)
	}(collection, snapshot)
}

// copyCollection creates a copy of a collection's documents.
// It MUST be called while holding m.mu.Lock or m.mu.RLock.
func (m *MemStore) copyCollection(collection string) map[string]Document {
	original, ok := m.data[collection]
	if !ok {
		return map[string]Document{}
	}
	cp := make(map[string]Document, len(original))
	for id, doc := range original {
		cp[id] = copyDoc(doc)
	}
	return cp
}

// copyDoc copies a document to prevent external mutation of engine-owned
// state. Nested maps and slices (the JSON object model) are copied too;
// other value types are treated as immutable.
func copyDoc(doc Document) Document {
	cp := make(Document, len(doc))
	for k, v := range doc {
		cp[k] = copyValue(v)
	}
	return cp
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = copyValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	}
	return v
}

// --- Atomic batches ---

type batchOpKind int

const (
	opUpdate batchOpKind = iota
	opDelete
)

type batchOp struct {
	kind       batchOpKind
	collection string
	id         string
	fields     Document
}

// memBatch applies all buffered operations under a single lock acquisition:
// no reader can observe a partially applied batch.
type memBatch struct {
	store *MemStore
	ops   []batchOp
}

func (b *memBatch) Update(collection, id string, fields Document) {
	b.ops = append(b.ops, batchOp{kind: opUpdate, collection: collection, id: id, fields: copyDoc(fields)})
}

func (b *memBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: opDelete, collection: collection, id: id})
}

func (b *memBatch) Commit() error {
	m := b.store

	m.mu.Lock()
	// Validate every update target first so a failed batch applies nothing.
	// Targets are resolved against the batch's own pending state, not just
	// the pre-batch data: an update that follows a delete of the same
	// document fails here instead of writing into a removed record.
	pendingDeletes := make(map[[2]string]bool)
	for _, op := range b.ops {
		key := [2]string{op.collection, op.id}
		if op.kind == opDelete {
			pendingDeletes[key] = true
			continue
		}
		if pendingDeletes[key] {
			m.mu.Unlock()
			return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, ErrDocumentNotFound)
		}
		col, ok := m.data[op.collection]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, ErrDocumentNotFound)
		}
		if _, ok := col[op.id]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, ErrDocumentNotFound)
		}
	}

	touched := make(map[string]bool)
	for _, op := range b.ops {
		touched[op.collection] = true
		switch op.kind {
		case opUpdate:
			doc := m.data[op.collection][op.id]
			for k, v := range op.fields {
				if k == "id" {
					continue
				}
				doc[k] = v
			}
		case opDelete:
			if col, ok := m.data[op.collection]; ok {
				delete(col, op.id)
			}
		}
	}
	m.mu.Unlock()

	for collection := range touched {
		m.persistAsync(collection)
		m.hub.notify(collection, m.Find)
	}
	return nil
}
