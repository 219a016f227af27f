package ats

import (
	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// Relationships manages the candidate/job join records. The uniqueness of a
// (candidateId, jobId) pair is enforced by a pre-write existence check, not
// by a storage constraint: two concurrent writers racing on the same pair
// can both pass the check. Deployments that need hard uniqueness must
// serialize writes per pair.
type Relationships struct {
	store engine.Store
	col   *Collection
}

func NewRelationships(store engine.Store) *Relationships {
	return &Relationships{
		store: store,
		col:   NewCollection(store, CollectionCandidateJobs, true),
	}
}

// Add links a candidate to a job. The pair is checked across all tenants
// before writing; an existing relationship fails with ErrRelationshipExists
// and performs no write. Status defaults to in_progress and the record is
// stamped with the caller's company and timestamps.
func (r *Relationships) Add(ctx Context, candidateID, jobID, status string) (string, error) {
	if ctx.CompanyID == "" {
		return "", ErrNoTenant
	}

	existing, err := r.store.Find(CollectionCandidateJobs, engine.Query{Filters: []engine.Filter{
		{Field: "candidateId", Value: candidateID},
		{Field: "jobId", Value: jobID},
	}})
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return "", ErrRelationshipExists
	}

	if status == "" {
		status = RelationshipInProgress
	}
	return r.col.Add(ctx, engine.Document{
		"candidateId": candidateID,
		"jobId":       jobID,
		"status":      status,
	})
}

// UpdateStatus changes one relationship's status through the tenant-enforced
// update path.
func (r *Relationships) UpdateStatus(ctx Context, id, status string) error {
	return r.col.Update(ctx, id, engine.Document{"status": status})
}

// Remove deletes one relationship through the tenant-enforced remove path.
func (r *Relationships) Remove(ctx Context, id string) error {
	return r.col.Remove(ctx, id)
}

// ForCandidate answers "which jobs is this candidate attached to".
func (r *Relationships) ForCandidate(ctx Context, candidateID string) ([]CandidateJob, error) {
	return r.find(ctx, engine.Filter{Field: "candidateId", Value: candidateID})
}

// ForJob answers "which candidates are attached to this job".
func (r *Relationships) ForJob(ctx Context, jobID string) ([]CandidateJob, error) {
	return r.find(ctx, engine.Filter{Field: "jobId", Value: jobID})
}

// List returns the caller's relationships, optionally narrowed to one
// candidate and/or one job, newest first.
func (r *Relationships) List(ctx Context, candidateID, jobID string) ([]CandidateJob, error) {
	var filters []engine.Filter
	if candidateID != "" {
		filters = append(filters, engine.Filter{Field: "candidateId", Value: candidateID})
	}
	if jobID != "" {
		filters = append(filters, engine.Filter{Field: "jobId", Value: jobID})
	}
	return r.find(ctx, filters...)
}

func (r *Relationships) find(ctx Context, filters ...engine.Filter) ([]CandidateJob, error) {
	docs, err := r.col.Find(ctx, engine.Query{
		Filters:    filters,
		OrderBy:    "updatedAt",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	links := make([]CandidateJob, 0, len(docs))
	for _, doc := range docs {
		var link CandidateJob
		if err := FromDocument(doc, &link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

// Subscribe opens a live query over the caller's relationships, optionally
// narrowed to one candidate and/or one job, newest first.
func (r *Relationships) Subscribe(ctx Context, candidateID, jobID string) engine.Subscription {
	var filters []engine.Filter
	if candidateID != "" {
		filters = append(filters, engine.Filter{Field: "candidateId", Value: candidateID})
	}
	if jobID != "" {
		filters = append(filters, engine.Filter{Field: "jobId", Value: jobID})
	}
	return r.col.Subscribe(ctx, engine.Query{
		Filters:    filters,
		OrderBy:    "updatedAt",
		Descending: true,
	})
}
