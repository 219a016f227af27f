package ats

import (
	"strings"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// Jobs is the tenant-scoped job directory.
type Jobs struct {
	col    *Collection
	logger *ActivityLogger
}

func NewJobs(store engine.Store, logger *ActivityLogger) *Jobs {
	return &Jobs{
		col:    NewCollection(store, CollectionJobs, true),
		logger: logger,
	}
}

// Add creates a job and appends a job_created activity.
func (j *Jobs) Add(ctx Context, job Job) (string, error) {
	job.ID = ""
	doc, err := ToDocument(job)
	if err != nil {
		return "", err
	}

	id, err := j.col.Add(ctx, doc)
	if err != nil {
		return "", err
	}

	metadata := map[string]any{"jobId": id, "jobTitle": job.Title, "department": job.Department}
	if err := j.logger.Log(Activity{
		UserID:      ctx.UserID,
		CompanyID:   ctx.CompanyID,
		Type:        ActivityJobCreated,
		Description: DescribeActivity(ActivityJobCreated, metadata),
		Metadata:    metadata,
	}); err != nil {
		return id, err
	}
	return id, nil
}

// Get loads one job.
func (j *Jobs) Get(ctx Context, id string) (Job, error) {
	doc, err := j.col.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	var job Job
	err = FromDocument(doc, &job)
	return job, err
}

// Update merges fields into a job through the tenant-enforced path.
func (j *Jobs) Update(ctx Context, id string, fields engine.Document) error {
	return j.col.Update(ctx, id, fields)
}

// Subscribe opens a live query over the caller's jobs, newest first.
func (j *Jobs) Subscribe(ctx Context) engine.Subscription {
	return j.col.Subscribe(ctx, engine.Query{OrderBy: "createdAt", Descending: true})
}

// List returns the caller's jobs, newest first.
func (j *Jobs) List(ctx Context) ([]Job, error) {
	docs, err := j.col.Find(ctx, engine.Query{OrderBy: "createdAt", Descending: true})
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(docs))
	for _, doc := range docs {
		var job Job
		if err := FromDocument(doc, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Candidates is the tenant-scoped candidate directory.
type Candidates struct {
	col    *Collection
	logger *ActivityLogger
}

func NewCandidates(store engine.Store, logger *ActivityLogger) *Candidates {
	return &Candidates{
		col:    NewCollection(store, CollectionCandidates, true),
		logger: logger,
	}
}

// Add creates a candidate with board defaults (stage new, source Manual
// Web) and appends a candidate_created activity.
func (c *Candidates) Add(ctx Context, candidate Candidate) (string, error) {
	candidate.ID = ""
	if candidate.Stage == "" {
		candidate.Stage = StageNew
	}
	if candidate.Status == "" {
		candidate.Status = StatusActive
	}
	if candidate.Source == "" {
		candidate.Source = "Manual Web"
	}

	doc, err := ToDocument(candidate)
	if err != nil {
		return "", err
	}
	id, err := c.col.Add(ctx, doc)
	if err != nil {
		return "", err
	}

	fullName := strings.TrimSpace(candidate.Name + " " + candidate.Surname)
	metadata := map[string]any{"candidateId": id, "candidateName": fullName, "position": candidate.Position}
	if err := c.logger.Log(Activity{
		UserID:      ctx.UserID,
		CompanyID:   ctx.CompanyID,
		Type:        ActivityCandidateCreated,
		Description: DescribeActivity(ActivityCandidateCreated, metadata),
		Metadata:    metadata,
	}); err != nil {
		return id, err
	}
	return id, nil
}

// Get loads one candidate.
func (c *Candidates) Get(ctx Context, id string) (Candidate, error) {
	doc, err := c.col.Get(ctx, id)
	if err != nil {
		return Candidate{}, err
	}
	var candidate Candidate
	err = FromDocument(doc, &candidate)
	return candidate, err
}

// Update merges fields into a candidate through the tenant-enforced path.
func (c *Candidates) Update(ctx Context, id string, fields engine.Document) error {
	return c.col.Update(ctx, id, fields)
}

// Subscribe opens a live query over the caller's candidates.
func (c *Candidates) Subscribe(ctx Context) engine.Subscription {
	return c.col.Subscribe(ctx, engine.Query{OrderBy: "createdAt", Descending: true})
}

// List returns the caller's candidates, newest first.
func (c *Candidates) List(ctx Context) ([]Candidate, error) {
	docs, err := c.col.Find(ctx, engine.Query{OrderBy: "createdAt", Descending: true})
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(docs))
	for _, doc := range docs {
		var candidate Candidate
		if err := FromDocument(doc, &candidate); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
