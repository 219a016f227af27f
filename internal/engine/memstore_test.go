package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMemStore_CRUD(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, err := ms.Insert("jobs", Document{"title": "Backend Engineer"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("Insert returned empty id")
	}

	doc, err := ms.Get("jobs", id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["title"] != "Backend Engineer" {
		t.Errorf("Expected title Backend Engineer, got %v", doc["title"])
	}
	if doc["id"] != id {
		t.Errorf("Expected stored id %s, got %v", id, doc["id"])
	}

	if err := ms.Update("jobs", id, Document{"title": "Staff Engineer"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	doc, _ = ms.Get("jobs", id)
	if doc["title"] != "Staff Engineer" {
		t.Errorf("Expected updated title, got %v", doc["title"])
	}

	if err := ms.Delete("jobs", id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := ms.Get("jobs", id); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound after delete, got %v", err)
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	ms := NewMemStore(nil, nil)

	if _, err := ms.Get("nope", "x"); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Expected ErrCollectionNotFound, got %v", err)
	}

	ms.Insert("jobs", Document{"title": "x"})
	if _, err := ms.Get("jobs", "missing"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestMemStore_InsertKeepsCallerID(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, err := ms.Insert("jobs", Document{"id": "job-1", "title": "x"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id != "job-1" {
		t.Errorf("Expected caller id to be kept, got %s", id)
	}
}

func TestMemStore_DeleteIsIdempotent(t *testing.T) {
	ms := NewMemStore(nil, nil)

	if err := ms.Delete("jobs", "never-existed"); err != nil {
		t.Errorf("Delete of missing document should be a no-op, got %v", err)
	}
}

func TestMemStore_UpdateCannotChangeID(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, _ := ms.Insert("jobs", Document{"title": "x"})
	if err := ms.Update("jobs", id, Document{"id": "hijacked", "title": "y"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	doc, _ := ms.Get("jobs", id)
	if doc["id"] != id {
		t.Errorf("Expected id %s to survive update, got %v", id, doc["id"])
	}
}

func TestMemStore_FindFiltersAndOrder(t *testing.T) {
	ms := NewMemStore(nil, nil)

	ms.Insert("candidates", Document{"name": "Ada", "companyId": "c1", "createdAt": "2026-01-01T00:00:00Z"})
	ms.Insert("candidates", Document{"name": "Bob", "companyId": "c1", "createdAt": "2026-01-03T00:00:00Z"})
	ms.Insert("candidates", Document{"name": "Eve", "companyId": "c2", "createdAt": "2026-01-02T00:00:00Z"})

	docs, err := ms.Find("candidates", Query{
		Filters:    []Filter{{Field: "companyId", Value: "c1"}},
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(docs))
	}
	if docs[0]["name"] != "Bob" || docs[1]["name"] != "Ada" {
		t.Errorf("Wrong order: %v then %v", docs[0]["name"], docs[1]["name"])
	}
}

func TestMemStore_FindNumericEquality(t *testing.T) {
	ms := NewMemStore(nil, nil)

	// JSON decoding turns ints into float64; equality must not care.
	ms.Insert("candidates", Document{"name": "Ada", "rating": float64(5)})
	docs, err := ms.Find("candidates", Query{Filters: []Filter{{Field: "rating", Value: 5}}})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("Expected numeric filter to match, got %d results", len(docs))
	}
}

func TestMemStore_FindEmptyCollection(t *testing.T) {
	ms := NewMemStore(nil, nil)

	docs, err := ms.Find("nothing", Query{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("Expected empty result, got %d", len(docs))
	}

	if _, err := ms.Find("", Query{}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Expected ErrInvalidQuery for empty collection name, got %v", err)
	}
}

func TestMemStore_ReturnedDocsAreCopies(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, _ := ms.Insert("jobs", Document{"title": "x"})
	doc, _ := ms.Get("jobs", id)
	doc["title"] = "mutated"

	again, _ := ms.Get("jobs", id)
	if again["title"] != "x" {
		t.Errorf("Caller mutation leaked into the store: %v", again["title"])
	}
}

func TestMemStore_NestedValuesAreCopies(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, _ := ms.Insert("jobs", Document{
		"archiveMetadata": map[string]any{"reason": "other"},
		"requirements":    []any{"go"},
	})

	doc, _ := ms.Get("jobs", id)
	doc["archiveMetadata"].(map[string]any)["reason"] = "mutated"
	doc["requirements"].([]any)[0] = "mutated"

	again, _ := ms.Get("jobs", id)
	if again["archiveMetadata"].(map[string]any)["reason"] != "other" {
		t.Error("Nested map mutation leaked into the store")
	}
	if again["requirements"].([]any)[0] != "go" {
		t.Error("Nested slice mutation leaked into the store")
	}
}

func TestMemStore_BatchAtomicity(t *testing.T) {
	ms := NewMemStore(nil, nil)

	jobID, _ := ms.Insert("jobs", Document{"status": "active"})
	relID, _ := ms.Insert("candidateJobs", Document{"jobId": jobID, "status": "in_progress"})

	batch := ms.NewBatch()
	batch.Update("jobs", jobID, Document{"status": "archived"})
	batch.Update("candidateJobs", relID, Document{"status": "inactive"})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	job, _ := ms.Get("jobs", jobID)
	rel, _ := ms.Get("candidateJobs", relID)
	if job["status"] != "archived" || rel["status"] != "inactive" {
		t.Errorf("Batch did not apply both updates: %v / %v", job["status"], rel["status"])
	}
}

func TestMemStore_FailedBatchAppliesNothing(t *testing.T) {
	ms := NewMemStore(nil, nil)

	jobID, _ := ms.Insert("jobs", Document{"status": "active"})

	batch := ms.NewBatch()
	batch.Update("jobs", jobID, Document{"status": "archived"})
	batch.Update("jobs", "does-not-exist", Document{"status": "archived"})
	err := batch.Commit()
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("Expected ErrDocumentNotFound, got %v", err)
	}

	job, _ := ms.Get("jobs", jobID)
	if job["status"] != "active" {
		t.Errorf("Failed batch must leave records untouched, got %v", job["status"])
	}
}

func TestMemStore_BatchUpdateAfterDeleteFails(t *testing.T) {
	ms := NewMemStore(nil, nil)

	jobID, _ := ms.Insert("jobs", Document{"status": "active"})

	// The update targets a document the same batch already deletes; the
	// whole batch must fail cleanly instead of touching removed state.
	batch := ms.NewBatch()
	batch.Delete("jobs", jobID)
	batch.Update("jobs", jobID, Document{"status": "archived"})
	err := batch.Commit()
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("Expected ErrDocumentNotFound, got %v", err)
	}

	job, err := ms.Get("jobs", jobID)
	if err != nil {
		t.Fatalf("Failed batch must leave the document in place: %v", err)
	}
	if job["status"] != "active" {
		t.Errorf("Failed batch must leave records untouched, got %v", job["status"])
	}
}

func TestMemStore_BatchDelete(t *testing.T) {
	ms := NewMemStore(nil, nil)

	jobID, _ := ms.Insert("jobs", Document{"title": "x"})
	relID, _ := ms.Insert("candidateJobs", Document{"jobId": jobID})

	batch := ms.NewBatch()
	batch.Delete("candidateJobs", relID)
	batch.Delete("jobs", jobID)
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := ms.Get("jobs", jobID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected job gone, got %v", err)
	}
	if _, err := ms.Get("candidateJobs", relID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected relationship gone, got %v", err)
	}
}

func TestMemStore_WatchDeliversSnapshots(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ms.Insert("jobs", Document{"title": "first", "companyId": "c1"})

	sub, err := ms.Watch("jobs", Query{Filters: []Filter{{Field: "companyId", Value: "c1"}}})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer sub.Close()

	snap := <-sub.Updates()
	if snap.Err != nil {
		t.Fatalf("Initial snapshot error: %v", snap.Err)
	}
	if len(snap.Docs) != 1 {
		t.Fatalf("Expected 1 doc in initial snapshot, got %d", len(snap.Docs))
	}

	ms.Insert("jobs", Document{"title": "second", "companyId": "c1"})
	snap = <-sub.Updates()
	if len(snap.Docs) != 2 {
		t.Errorf("Expected 2 docs after insert, got %d", len(snap.Docs))
	}

	// Insert in another tenant still triggers a recompute, but the filter
	// keeps the result set stable at 2.
	ms.Insert("jobs", Document{"title": "other", "companyId": "c2"})
	snap = <-sub.Updates()
	if len(snap.Docs) != 2 {
		t.Errorf("Expected filter to exclude other tenant, got %d docs", len(snap.Docs))
	}
}

func TestMemStore_WatchLatestWins(t *testing.T) {
	ms := NewMemStore(nil, nil)

	sub, err := ms.Watch("jobs", Query{})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer sub.Close()

	// Do not read the initial snapshot; pile up writes so intermediate
	// snapshots get displaced.
	for i := 0; i < 5; i++ {
		ms.Insert("jobs", Document{"n": i})
	}

	snap := <-sub.Updates()
	if len(snap.Docs) != 5 {
		t.Errorf("Expected the latest snapshot with 5 docs, got %d", len(snap.Docs))
	}
}

func TestMemStore_WatchCloseTwice(t *testing.T) {
	ms := NewMemStore(nil, nil)

	sub, _ := ms.Watch("jobs", Query{})
	sub.Close()
	sub.Close() // must not panic

	if _, ok := <-sub.Updates(); ok {
		// The initial snapshot may still be buffered; drain until closed.
		for range sub.Updates() {
		}
	}
}

func TestMemStore_Persistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "hireloop-persistence-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	p, _ := NewPersistence(tmpDir)
	ms := NewMemStore(nil, p)

	id, err := ms.Insert("jobs", Document{"title": "persisted"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	ms.Wait()

	if _, err := os.Stat(filepath.Join(tmpDir, "jobs.json")); os.IsNotExist(err) {
		t.Fatal("Collection file was not created")
	}

	// Reload into a fresh store.
	p2, _ := NewPersistence(tmpDir)
	data, err := p2.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	ms2 := NewMemStore(data, nil)
	doc, err := ms2.Get("jobs", id)
	if err != nil {
		t.Fatalf("Get after reload failed: %v", err)
	}
	if doc["title"] != "persisted" {
		t.Errorf("Expected persisted title, got %v", doc["title"])
	}
}

func TestPersistence_SkipsCorruptFiles(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "hireloop-corrupt-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	os.WriteFile(filepath.Join(tmpDir, "bad.json"), []byte("{not json"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "good.json"), []byte(`{"a":{"id":"a"}}`), 0644)

	p, _ := NewPersistence(tmpDir)
	data, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(data) != 1 {
		t.Errorf("Expected corrupt file skipped, got %d collections", len(data))
	}
	if _, ok := data["good"]; !ok {
		t.Error("Expected good collection to load")
	}
}

func TestMemStore_ConcurrentWrites(t *testing.T) {
	ms := NewMemStore(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ms.Insert("jobs", Document{"title": "x"})
		}()
	}
	wg.Wait()

	docs, _ := ms.Find("jobs", Query{})
	if len(docs) != 50 {
		t.Errorf("Expected 50 docs, got %d", len(docs))
	}
}

func TestMemStore_Collections(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ms.Insert("jobs", Document{})
	ms.Insert("candidates", Document{})

	list, err := ms.Collections()
	if err != nil {
		t.Fatalf("Collections failed: %v", err)
	}
	if len(list) != 2 || list[0] != "candidates" || list[1] != "jobs" {
		t.Errorf("Expected sorted [candidates jobs], got %v", list)
	}
}

func TestMigrate(t *testing.T) {
	src := NewMemStore(nil, nil)
	src.Insert("jobs", Document{"id": "job-1", "title": "x"})
	src.Insert("candidateJobs", Document{"id": "rel-1", "jobId": "job-1"})

	dst := NewMemStore(nil, nil)
	if err := Migrate(src, dst); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	// Cross-document references must survive: the relationship still points
	// at the job's original id.
	rel, err := dst.Get("candidateJobs", "rel-1")
	if err != nil {
		t.Fatalf("Get after migrate failed: %v", err)
	}
	if rel["jobId"] != "job-1" {
		t.Errorf("Expected jobId job-1, got %v", rel["jobId"])
	}
	if _, err := dst.Get("jobs", "job-1"); err != nil {
		t.Errorf("Expected job under original id, got %v", err)
	}
}
