package ats

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

func TestRelationshipAddDefaults(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	id, err := rels.Add(testContext(), "cand-1", "job-1", "")
	c.Assert(err, qt.IsNil)

	doc, err := store.Get(CollectionCandidateJobs, id)
	c.Assert(err, qt.IsNil)
	c.Assert(doc["status"], qt.Equals, RelationshipInProgress)
	c.Assert(doc["companyId"], qt.Equals, "c1")
	c.Assert(doc["candidateId"], qt.Equals, "cand-1")
	c.Assert(doc["jobId"], qt.Equals, "job-1")
}

func TestRelationshipAddDuplicateRejected(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	_, err := rels.Add(testContext(), "cand-1", "job-1", RelationshipMatched)
	c.Assert(err, qt.IsNil)

	_, err = rels.Add(testContext(), "cand-1", "job-1", "")
	c.Assert(err, qt.ErrorIs, ErrRelationshipExists)

	docs, _ := store.Find(CollectionCandidateJobs, engine.Query{})
	c.Assert(docs, qt.HasLen, 1)
}

func TestRelationshipUniquenessIsGlobal(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	_, err := rels.Add(testContext(), "cand-1", "job-1", "")
	c.Assert(err, qt.IsNil)

	// The existence check runs across tenants: the same pair written by
	// another company is still a conflict.
	_, err = rels.Add(otherTenant(), "cand-1", "job-1", "")
	c.Assert(err, qt.ErrorIs, ErrRelationshipExists)
}

func TestRelationshipAddRequiresTenant(t *testing.T) {
	c := qt.New(t)
	rels := NewRelationships(engine.NewMemStore(nil, nil))

	_, err := rels.Add(Context{UserID: "u1"}, "cand-1", "job-1", "")
	c.Assert(err, qt.ErrorIs, ErrNoTenant)
}

func TestRelationshipForCandidateAndJob(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	rels.Add(testContext(), "cand-1", "job-1", "")
	rels.Add(testContext(), "cand-1", "job-2", "")
	rels.Add(testContext(), "cand-2", "job-1", "")

	byCandidate, err := rels.ForCandidate(testContext(), "cand-1")
	c.Assert(err, qt.IsNil)
	c.Assert(byCandidate, qt.HasLen, 2)

	byJob, err := rels.ForJob(testContext(), "job-1")
	c.Assert(err, qt.IsNil)
	c.Assert(byJob, qt.HasLen, 2)
}

func TestRelationshipListScopedToTenant(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	rels.Add(testContext(), "cand-1", "job-1", "")
	rels.Add(otherTenant(), "cand-9", "job-9", "")

	links, err := rels.List(testContext(), "", "")
	c.Assert(err, qt.IsNil)
	c.Assert(links, qt.HasLen, 1)
	c.Assert(links[0].CandidateID, qt.Equals, "cand-1")
}

func TestRelationshipUpdateStatusCrossTenantDenied(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	id, _ := rels.Add(testContext(), "cand-1", "job-1", "")

	err := rels.UpdateStatus(otherTenant(), id, RelationshipRejected)
	c.Assert(err, qt.ErrorIs, ErrAccessDenied)

	err = rels.UpdateStatus(testContext(), id, RelationshipRejected)
	c.Assert(err, qt.IsNil)

	doc, _ := store.Get(CollectionCandidateJobs, id)
	c.Assert(doc["status"], qt.Equals, RelationshipRejected)
}

func TestRelationshipRemove(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	id, _ := rels.Add(testContext(), "cand-1", "job-1", "")

	err := rels.Remove(testContext(), id)
	c.Assert(err, qt.IsNil)

	_, err = store.Get(CollectionCandidateJobs, id)
	c.Assert(err, qt.ErrorIs, engine.ErrDocumentNotFound)
}

func TestRelationshipSubscribeNarrowed(t *testing.T) {
	c := qt.New(t)
	store := engine.NewMemStore(nil, nil)
	rels := NewRelationships(store)

	rels.Add(testContext(), "cand-1", "job-1", "")
	rels.Add(testContext(), "cand-2", "job-1", "")

	sub := rels.Subscribe(testContext(), "cand-1", "")
	defer sub.Close()

	snap := <-sub.Updates()
	c.Assert(snap.Err, qt.IsNil)
	c.Assert(snap.Docs, qt.HasLen, 1)
	c.Assert(snap.Docs[0]["candidateId"], qt.Equals, "cand-1")
}
