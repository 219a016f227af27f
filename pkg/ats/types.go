// Package ats implements the tenant-scoped data layer of the Hireloop
// recruiting platform: live collection subscriptions, the candidate/job
// relationship store, archive and cascading deletion, pipeline stage
// transitions, and the activity log.
package ats

import (
	"encoding/json"
	"time"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// Collection names used across the platform.
const (
	CollectionJobs           = "jobs"
	CollectionCandidates     = "candidates"
	CollectionCandidateJobs  = "candidateJobs"
	CollectionCandidateNotes = "candidateNotes"
	CollectionActivities     = "activities"
	CollectionCompanies      = "companies"
	CollectionTeams          = "teams"
	CollectionUsers          = "users"
	CollectionAdminUsers     = "admin_users"
)

// Lifecycle status of jobs and candidates.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Relationship status of a candidate/job link.
const (
	RelationshipMatched    = "matched"
	RelationshipInProgress = "in_progress"
	RelationshipRejected   = "rejected"
	RelationshipInactive   = "inactive"
)

// Pipeline stages, in board order.
const (
	StageNew       = "new"
	StageScreening = "screening"
	StageInterview = "interview"
	StageSubmitted = "submitted"
	StageHR        = "hr"
	StageManager   = "manager"
)

// Stages lists every known pipeline stage in board order.
var Stages = []string{StageNew, StageScreening, StageInterview, StageSubmitted, StageHR, StageManager}

// ValidStage reports whether s is a known pipeline stage.
func ValidStage(s string) bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// ArchiveReason explains why an entity was archived.
type ArchiveReason string

const (
	ReasonHired             ArchiveReason = "hired"
	ReasonPositionFilled    ArchiveReason = "position_filled"
	ReasonPositionCancelled ArchiveReason = "position_cancelled"
	ReasonRejected          ArchiveReason = "rejected"
	ReasonWithdrawn         ArchiveReason = "withdrawn"
	ReasonOther             ArchiveReason = "other"
)

// ArchiveMetadata records who archived an entity, when and why.
type ArchiveMetadata struct {
	ArchivedAt string        `json:"archivedAt"`
	ArchivedBy string        `json:"archivedBy"`
	Reason     ArchiveReason `json:"reason"`
	Notes      string        `json:"notes,omitempty"`
}

// Job is an open (or archived) position owned by one company.
type Job struct {
	ID              string           `json:"id,omitempty"`
	CompanyID       string           `json:"companyId,omitempty"`
	TeamID          string           `json:"teamId,omitempty"`
	Title           string           `json:"title"`
	Company         string           `json:"company,omitempty"`
	Department      string           `json:"department,omitempty"`
	Location        string           `json:"location,omitempty"`
	Type            string           `json:"type,omitempty"`
	Status          string           `json:"status,omitempty"`
	Description     string           `json:"description,omitempty"`
	Requirements    []string         `json:"requirements,omitempty"`
	CreatedAt       string           `json:"createdAt,omitempty"`
	UpdatedAt       string           `json:"updatedAt,omitempty"`
	ArchiveMetadata *ArchiveMetadata `json:"archiveMetadata,omitempty"`
}

// Candidate is a person moving through the hiring pipeline.
type Candidate struct {
	ID              string           `json:"id,omitempty"`
	CompanyID       string           `json:"companyId,omitempty"`
	TeamID          string           `json:"teamId,omitempty"`
	Name            string           `json:"name"`
	Surname         string           `json:"surname,omitempty"`
	Position        string           `json:"position,omitempty"`
	Email           string           `json:"email,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Location        string           `json:"location,omitempty"`
	Status          string           `json:"status,omitempty"`
	Stage           string           `json:"stage,omitempty"`
	Skills          []string         `json:"skills,omitempty"`
	Rating          float64          `json:"rating,omitempty"`
	Source          string           `json:"source,omitempty"`
	CreatedAt       string           `json:"createdAt,omitempty"`
	UpdatedAt       string           `json:"updatedAt,omitempty"`
	ArchiveMetadata *ArchiveMetadata `json:"archiveMetadata,omitempty"`
}

// CandidateJob links one candidate to one job. At most one relationship
// exists per (candidateId, jobId) pair; see Relationships.Add.
type CandidateJob struct {
	ID          string `json:"id,omitempty"`
	CandidateID string `json:"candidateId"`
	JobID       string `json:"jobId"`
	CompanyID   string `json:"companyId,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// CandidateNote is a free-text note attached to a candidate. The body may
// be stored encrypted; see Notes.
type CandidateNote struct {
	ID          string `json:"id,omitempty"`
	CandidateID string `json:"candidateId"`
	Content     string `json:"content"`
	AuthorID    string `json:"authorId,omitempty"`
	AuthorName  string `json:"authorName,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// nowISO returns the current time as an RFC 3339 UTC string. All document
// timestamps are stored in this form so lexicographic order is time order.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ToDocument converts a typed value into an engine document via JSON.
func ToDocument(v any) (engine.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc engine.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes an engine document into a typed value via JSON.
func FromDocument(doc engine.Document, target any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
