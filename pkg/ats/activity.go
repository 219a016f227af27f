package ats

import (
	"fmt"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// Activity is one append-only audit record. The core never updates or
// deletes activities.
type Activity struct {
	UserID      string         `json:"userId"`
	CompanyID   string         `json:"companyId"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// Activity types emitted by the core.
const (
	ActivityJobCreated             = "job_created"
	ActivityCandidateCreated       = "candidate_created"
	ActivityStageChanged           = "stage_changed"
	ActivityJobArchived            = "job_archived"
	ActivityCandidateArchived      = "candidate_archived"
	ActivityJobStatusUpdated       = "job_status_updated"
	ActivityCandidateStatusUpdated = "candidate_status_updated"
)

// ActivityLogger is the append-only write sink for audit records.
type ActivityLogger struct {
	store engine.Store
}

func NewActivityLogger(store engine.Store) *ActivityLogger {
	return &ActivityLogger{store: store}
}

// Log appends one activity record. User and company are required; the
// timestamp is stamped here so entries sort by write time.
func (l *ActivityLogger) Log(a Activity) error {
	if a.UserID == "" || a.CompanyID == "" {
		return fmt.Errorf("log activity %q: missing userId or companyId", a.Type)
	}

	doc, err := ToDocument(a)
	if err != nil {
		return err
	}
	now := nowISO()
	doc["timestamp"] = now
	doc["createdAt"] = now

	if _, err := l.store.Insert(CollectionActivities, doc); err != nil {
		return fmt.Errorf("log activity %q: %w", a.Type, err)
	}
	return nil
}

// Recent returns the newest activity records for a company.
func (l *ActivityLogger) Recent(ctx Context, limit int) ([]Activity, error) {
	if ctx.CompanyID == "" && !ctx.IsAdmin {
		return nil, ErrNoTenant
	}
	q := engine.Query{OrderBy: "timestamp", Descending: true}
	if ctx.CompanyID != "" {
		q.Filters = []engine.Filter{{Field: "companyId", Value: ctx.CompanyID}}
	}

	docs, err := l.store.Find(CollectionActivities, q)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	activities := make([]Activity, 0, len(docs))
	for _, doc := range docs {
		var a Activity
		if err := FromDocument(doc, &a); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// DescribeActivity renders a human-readable description for an activity
// type from its metadata.
func DescribeActivity(activityType string, metadata map[string]any) string {
	switch activityType {
	case ActivityJobCreated:
		return fmt.Sprintf("Created new job position: %v", metadata["jobTitle"])
	case ActivityCandidateCreated:
		return fmt.Sprintf("Added new candidate: %v", metadata["candidateName"])
	case ActivityStageChanged:
		return fmt.Sprintf("Moved %v to %v stage", metadata["candidateName"], metadata["newStage"])
	case ActivityJobArchived:
		return fmt.Sprintf("Archived job %v (%v)", metadata["jobId"], metadata["reason"])
	case ActivityCandidateArchived:
		return fmt.Sprintf("Archived candidate %v (%v)", metadata["candidateId"], metadata["reason"])
	case ActivityJobStatusUpdated:
		return fmt.Sprintf("Job %v status changed to %v", metadata["id"], metadata["status"])
	case ActivityCandidateStatusUpdated:
		return fmt.Sprintf("Candidate %v status changed to %v", metadata["id"], metadata["status"])
	default:
		return "Unknown activity"
	}
}
