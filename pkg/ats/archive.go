package ats

import (
	"fmt"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// EntityType selects which parent entity an archive operation targets.
type EntityType string

const (
	EntityJob       EntityType = "job"
	EntityCandidate EntityType = "candidate"
)

func (e EntityType) collection() string {
	if e == EntityCandidate {
		return CollectionCandidates
	}
	return CollectionJobs
}

func (e EntityType) relationshipField() string {
	if e == EntityCandidate {
		return "candidateId"
	}
	return "jobId"
}

// DeletionResult reports the outcome of a hard delete. Callers branch on
// Success instead of catching; Error carries the human-readable failure.
type DeletionResult struct {
	Success             bool   `json:"success"`
	Error               string `json:"error,omitempty"`
	DeletedAssociations int    `json:"deletedAssociations"`
}

// Archiver orchestrates the multi-record transitions around archival and
// hard deletion. The parent entity and its relationships change inside one
// atomic batch: no reader observes the parent archived while a relationship
// is still active, or the other way round.
type Archiver struct {
	store  engine.Store
	logger *ActivityLogger
	cols   map[EntityType]*Collection
}

func NewArchiver(store engine.Store, logger *ActivityLogger) *Archiver {
	return &Archiver{
		store:  store,
		logger: logger,
		cols: map[EntityType]*Collection{
			EntityJob:       NewCollection(store, CollectionJobs, true),
			EntityCandidate: NewCollection(store, CollectionCandidates, true),
		},
	}
}

// ArchiveJob soft-deactivates a job and every relationship attached to it.
func (a *Archiver) ArchiveJob(ctx Context, jobID string, reason ArchiveReason, notes string) error {
	return a.archive(ctx, EntityJob, jobID, reason, notes)
}

// ArchiveCandidate soft-deactivates a candidate and every relationship
// attached to them.
func (a *Archiver) ArchiveCandidate(ctx Context, candidateID string, reason ArchiveReason, notes string) error {
	return a.archive(ctx, EntityCandidate, candidateID, reason, notes)
}

func (a *Archiver) archive(ctx Context, entity EntityType, id string, reason ArchiveReason, notes string) error {
	if ctx.UserID == "" {
		return ErrNotAuthenticated
	}
	if ctx.CompanyID == "" {
		return ErrNoTenant
	}

	// Tenant check on the parent before anything is staged.
	if _, err := a.cols[entity].Get(ctx, id); err != nil {
		return fmt.Errorf("archive %s %s: %w", entity, id, err)
	}

	// Company filter on top of the parent match, so a stray relationship
	// from another tenant can never be flipped.
	rels, err := a.store.Find(CollectionCandidateJobs, engine.Query{Filters: []engine.Filter{
		{Field: entity.relationshipField(), Value: id},
		{Field: "companyId", Value: ctx.CompanyID},
	}})
	if err != nil {
		return fmt.Errorf("archive %s %s: %w", entity, id, err)
	}

	now := nowISO()
	meta := engine.Document{
		"archivedAt": now,
		"archivedBy": ctx.UserID,
		"reason":     string(reason),
	}
	if notes != "" {
		meta["notes"] = notes
	}

	batch := a.store.NewBatch()
	batch.Update(entity.collection(), id, engine.Document{
		"status":          StatusArchived,
		"active":          false,
		"archiveMetadata": meta,
		"updatedAt":       now,
	})
	for _, rel := range rels {
		relID, _ := rel["id"].(string)
		batch.Update(CollectionCandidateJobs, relID, engine.Document{
			"status":    RelationshipInactive,
			"updatedAt": now,
		})
	}
	// A failed commit leaves every record untouched; there is no
	// "partially archived" state to report.
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("archive %s %s: %w", entity, id, err)
	}

	activityType := ActivityJobArchived
	metadata := map[string]any{
		"jobId":                 id,
		"reason":                string(reason),
		"notes":                 notes,
		"status":                StatusArchived,
		"affectedCandidateJobs": len(rels),
	}
	if entity == EntityCandidate {
		activityType = ActivityCandidateArchived
		delete(metadata, "jobId")
		metadata["candidateId"] = id
	}
	return a.logger.Log(Activity{
		UserID:      ctx.UserID,
		CompanyID:   ctx.CompanyID,
		Type:        activityType,
		Description: DescribeActivity(activityType, metadata),
		Metadata:    metadata,
	})
}

// SetStatus flips only the parent's lifecycle status; used to un-archive.
// Deliberately asymmetric with archive: re-activating a parent does not
// reactivate the relationships that were set inactive when it was archived.
func (a *Archiver) SetStatus(ctx Context, entity EntityType, id, status string) error {
	if ctx.UserID == "" {
		return ErrNotAuthenticated
	}
	if ctx.CompanyID == "" {
		return ErrNoTenant
	}

	if err := a.cols[entity].Update(ctx, id, engine.Document{
		"status": status,
		"active": status == StatusActive,
	}); err != nil {
		return fmt.Errorf("set %s %s status: %w", entity, id, err)
	}

	activityType := ActivityJobStatusUpdated
	if entity == EntityCandidate {
		activityType = ActivityCandidateStatusUpdated
	}
	previous := StatusArchived
	if status == StatusArchived {
		previous = StatusActive
	}
	metadata := map[string]any{"id": id, "status": status, "previousStatus": previous}
	return a.logger.Log(Activity{
		UserID:      ctx.UserID,
		CompanyID:   ctx.CompanyID,
		Type:        activityType,
		Description: DescribeActivity(activityType, metadata),
		Metadata:    metadata,
	})
}

// DeleteJob hard-deletes a job and every relationship referencing it in one
// batch, and reports how many relationships went with it. Candidates are
// never hard-deleted through this path. Failures come back as a structured
// result, not an error.
func (a *Archiver) DeleteJob(ctx Context, jobID string) DeletionResult {
	if _, err := a.cols[EntityJob].Get(ctx, jobID); err != nil {
		return DeletionResult{Success: false, Error: UserMessage(err)}
	}

	rels, err := a.store.Find(CollectionCandidateJobs, engine.Query{Filters: []engine.Filter{
		{Field: "jobId", Value: jobID},
	}})
	if err != nil {
		return DeletionResult{Success: false, Error: UserMessage(err)}
	}

	batch := a.store.NewBatch()
	for _, rel := range rels {
		relID, _ := rel["id"].(string)
		batch.Delete(CollectionCandidateJobs, relID)
	}
	batch.Delete(CollectionJobs, jobID)

	if err := batch.Commit(); err != nil {
		return DeletionResult{Success: false, Error: UserMessage(err)}
	}
	return DeletionResult{Success: true, DeletedAssociations: len(rels)}
}
