package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
	"github.com/hireloop-dev/hireloop-store/pkg/ats"
)

func setupTestRouter() (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	store := engine.NewMemStore(nil, nil)
	h := NewHandler(store, nil)
	r := gin.New()
	h.Register(r)

	// Two users in two companies, plus one user with no company role.
	store.Insert(ats.CollectionUsers, engine.Document{
		"id": "u1", "email": "one@acme.test",
		"roles": []any{map[string]any{"companyId": "c1", "teamId": "t1", "role": "recruiter"}},
	})
	store.Insert(ats.CollectionUsers, engine.Document{
		"id": "u2", "email": "two@globex.test",
		"roles": []any{map[string]any{"companyId": "c2", "role": "recruiter"}},
	})
	store.Insert(ats.CollectionUsers, engine.Document{
		"id": "u3", "email": "lost@nowhere.test",
	})

	return r, h
}

func do(r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJobsEndToEnd(t *testing.T) {
	r, _ := setupTestRouter()

	w := do(r, "POST", "/api/jobs", "u1", map[string]any{"title": "Backend Engineer", "department": "Core"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)
	if created["id"] == "" {
		t.Fatal("Expected job id in response")
	}

	w = do(r, "GET", "/api/jobs", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var jobs []ats.Job
	json.Unmarshal(w.Body.Bytes(), &jobs)
	if len(jobs) != 1 || jobs[0].Title != "Backend Engineer" {
		t.Errorf("Expected the created job, got %v", jobs)
	}
	if jobs[0].CompanyID != "c1" {
		t.Errorf("Expected tenant stamp c1, got %q", jobs[0].CompanyID)
	}
}

func TestTenantIsolation(t *testing.T) {
	r, _ := setupTestRouter()

	do(r, "POST", "/api/jobs", "u1", map[string]any{"title": "Acme Job"})
	do(r, "POST", "/api/jobs", "u2", map[string]any{"title": "Globex Job"})

	w := do(r, "GET", "/api/jobs", "u2", nil)
	var jobs []ats.Job
	json.Unmarshal(w.Body.Bytes(), &jobs)
	if len(jobs) != 1 || jobs[0].Title != "Globex Job" {
		t.Errorf("Expected only Globex Job, got %v", jobs)
	}
}

func TestMissingTenantRejectsWrites(t *testing.T) {
	r, _ := setupTestRouter()

	w := do(r, "POST", "/api/jobs", "u3", map[string]any{"title": "Orphan Job"})
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("Expected 412 for missing tenant, got %d: %s", w.Code, w.Body.String())
	}

	w = do(r, "POST", "/api/jobs", "", map[string]any{"title": "Anonymous Job"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous write, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCrossTenantUpdateDenied(t *testing.T) {
	r, _ := setupTestRouter()

	w := do(r, "POST", "/api/jobs", "u1", map[string]any{"title": "Acme Job"})
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)

	w = do(r, "PATCH", "/api/jobs/"+created["id"], "u2", map[string]any{"title": "Hijacked"})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRelationshipConflict(t *testing.T) {
	r, _ := setupTestRouter()

	link := map[string]any{"candidateId": "cand-1", "jobId": "job-1"}
	w := do(r, "POST", "/api/relationships", "u1", link)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(r, "POST", "/api/relationships", "u1", link)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate pair, got %d: %s", w.Code, w.Body.String())
	}
}

func TestArchiveJobCascades(t *testing.T) {
	r, h := setupTestRouter()

	w := do(r, "POST", "/api/jobs", "u1", map[string]any{"title": "Acme Job"})
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)
	jobID := created["id"]

	do(r, "POST", "/api/relationships", "u1", map[string]any{"candidateId": "cand-1", "jobId": jobID})
	do(r, "POST", "/api/relationships", "u1", map[string]any{"candidateId": "cand-2", "jobId": jobID})

	w = do(r, "POST", "/api/jobs/"+jobID+"/archive", "u1", map[string]any{"reason": "position_filled"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	job, _ := h.Store.Get(ats.CollectionJobs, jobID)
	if job["status"] != ats.StatusArchived {
		t.Errorf("Expected archived job, got %v", job["status"])
	}
	rels, _ := h.Store.Find(ats.CollectionCandidateJobs, engine.Query{
		Filters: []engine.Filter{{Field: "jobId", Value: jobID}},
	})
	for _, rel := range rels {
		if rel["status"] != ats.RelationshipInactive {
			t.Errorf("Expected inactive relationship, got %v", rel["status"])
		}
	}
}

func TestDeleteJobReportsAssociations(t *testing.T) {
	r, _ := setupTestRouter()

	w := do(r, "POST", "/api/jobs", "u1", map[string]any{"title": "Acme Job"})
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)
	jobID := created["id"]

	do(r, "POST", "/api/relationships", "u1", map[string]any{"candidateId": "cand-1", "jobId": jobID})

	w = do(r, "DELETE", "/api/jobs/"+jobID, "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result ats.DeletionResult
	json.Unmarshal(w.Body.Bytes(), &result)
	if !result.Success || result.DeletedAssociations != 1 {
		t.Errorf("Expected success with 1 association, got %+v", result)
	}
}

func TestMoveCandidateStage(t *testing.T) {
	r, h := setupTestRouter()

	w := do(r, "POST", "/api/candidates", "u1", map[string]any{"name": "Ada", "surname": "Lovelace"})
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)
	id := created["id"]

	w = do(r, "POST", "/api/candidates/"+id+"/stage", "u1", map[string]any{"stage": ats.StageInterview})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	doc, _ := h.Store.Get(ats.CollectionCandidates, id)
	if doc["stage"] != ats.StageInterview {
		t.Errorf("Expected interview stage, got %v", doc["stage"])
	}

	// Unknown stages are rejected before any write.
	w = do(r, "POST", "/api/candidates/"+id+"/stage", "u1", map[string]any{"stage": "limbo"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown stage, got %d", w.Code)
	}
	doc, _ = h.Store.Get(ats.CollectionCandidates, id)
	if doc["stage"] != ats.StageInterview {
		t.Errorf("Rejected move must not write, got %v", doc["stage"])
	}
}

func TestActivitiesFeed(t *testing.T) {
	r, _ := setupTestRouter()

	do(r, "POST", "/api/jobs", "u1", map[string]any{"title": "Acme Job"})
	do(r, "POST", "/api/candidates", "u1", map[string]any{"name": "Ada"})

	w := do(r, "GET", "/api/activities", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var activities []ats.Activity
	json.Unmarshal(w.Body.Bytes(), &activities)
	if len(activities) != 2 {
		t.Errorf("Expected 2 activities, got %d", len(activities))
	}

	// The other tenant sees nothing.
	w = do(r, "GET", "/api/activities", "u2", nil)
	json.Unmarshal(w.Body.Bytes(), &activities)
	if len(activities) != 0 {
		t.Errorf("Expected no cross-tenant activities, got %d", len(activities))
	}
}

func TestNotesRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := engine.NewMemStore(nil, nil)
	h := NewHandler(store, []byte("thisis32byteslongsecretkey123456"))
	r := gin.New()
	h.Register(r)
	store.Insert(ats.CollectionUsers, engine.Document{
		"id": "u1",
		"roles": []any{map[string]any{"companyId": "c1", "role": "recruiter"}},
	})

	w := do(r, "POST", "/api/candidates/cand-1/notes", "u1", map[string]any{"content": "Great SQL depth"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Stored body is ciphertext.
	docs, _ := store.Find(ats.CollectionCandidateNotes, engine.Query{})
	if len(docs) != 1 {
		t.Fatalf("Expected 1 stored note, got %d", len(docs))
	}
	if docs[0]["content"] == "Great SQL depth" {
		t.Error("Expected stored note body to be encrypted")
	}

	w = do(r, "GET", "/api/candidates/cand-1/notes", "u1", nil)
	var notes []ats.CandidateNote
	json.Unmarshal(w.Body.Bytes(), &notes)
	if len(notes) != 1 || notes[0].Content != "Great SQL depth" {
		t.Errorf("Expected decrypted note, got %v", notes)
	}
}
