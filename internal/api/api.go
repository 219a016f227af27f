// Package api exposes the tenant-scoped data layer over HTTP for the
// dashboard UI. The caller identifies itself with the X-User-ID header;
// the tenant context is resolved from the stored user profile on every
// request, never from ambient state.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
	"github.com/hireloop-dev/hireloop-store/pkg/ats"
)

type Handler struct {
	Store         engine.Store
	Jobs          *ats.Jobs
	Candidates    *ats.Candidates
	Relationships *ats.Relationships
	Archiver      *ats.Archiver
	Mover         *ats.StageMover
	Logger        *ats.ActivityLogger
	Notes         *ats.Notes
}

// NewHandler wires the domain services over one store. notesKey enables
// encrypted candidate notes when non-empty.
func NewHandler(store engine.Store, notesKey []byte) *Handler {
	logger := ats.NewActivityLogger(store)
	return &Handler{
		Store:         store,
		Jobs:          ats.NewJobs(store, logger),
		Candidates:    ats.NewCandidates(store, logger),
		Relationships: ats.NewRelationships(store),
		Archiver:      ats.NewArchiver(store, logger),
		Mover:         ats.NewStageMover(store, logger),
		Logger:        logger,
		Notes:         ats.NewNotes(store, notesKey),
	}
}

// Register mounts all routes under /api.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/jobs", h.ListJobs)
		api.POST("/jobs", h.AddJob)
		api.PATCH("/jobs/:id", h.UpdateJob)
		api.DELETE("/jobs/:id", h.DeleteJob)
		api.POST("/jobs/:id/archive", h.ArchiveJob)
		api.POST("/jobs/:id/status", h.SetJobStatus)

		api.GET("/candidates", h.ListCandidates)
		api.POST("/candidates", h.AddCandidate)
		api.PATCH("/candidates/:id", h.UpdateCandidate)
		api.POST("/candidates/:id/archive", h.ArchiveCandidate)
		api.POST("/candidates/:id/status", h.SetCandidateStatus)
		api.POST("/candidates/:id/stage", h.MoveCandidateStage)
		api.GET("/candidates/:id/notes", h.ListNotes)
		api.POST("/candidates/:id/notes", h.AddNote)

		api.GET("/relationships", h.ListRelationships)
		api.POST("/relationships", h.AddRelationship)
		api.PATCH("/relationships/:id/status", h.UpdateRelationshipStatus)
		api.DELETE("/relationships/:id", h.DeleteRelationship)

		api.GET("/activities", h.ListActivities)
	}
}

// context resolves the caller's tenant scope from the X-User-ID header.
// An unknown or missing user resolves to the zero context; the data layer
// then rejects whatever needs more.
func (h *Handler) context(c *gin.Context) ats.Context {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		return ats.Context{}
	}

	doc, err := h.Store.Get(ats.CollectionUsers, userID)
	if err != nil {
		return ats.Context{}
	}
	var profile ats.UserProfile
	if err := ats.FromDocument(doc, &profile); err != nil {
		return ats.Context{}
	}
	profile.ID = userID
	ctx := ats.Resolve(&profile)
	return ctx
}

// fail maps the data layer's error taxonomy onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch ats.Categorize(err) {
	case ats.CategoryUnauthorized:
		status = http.StatusUnauthorized
	case ats.CategoryAccessDenied:
		status = http.StatusForbidden
	case ats.CategoryMissingTenant:
		status = http.StatusPreconditionFailed
	case ats.CategoryConflict:
		status = http.StatusConflict
	case ats.CategoryNotFound:
		status = http.StatusNotFound
	case ats.CategoryInvalidQuery:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": ats.UserMessage(err), "category": ats.Categorize(err)})
}

// --- Jobs ---

func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.Jobs.List(h.context(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) AddJob(c *gin.Context) {
	var job ats.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.Jobs.Add(h.context(c), job)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) UpdateJob(c *gin.Context) {
	var fields engine.Document
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Jobs.Update(h.context(c), c.Param("id"), fields); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) DeleteJob(c *gin.Context) {
	result := h.Archiver.DeleteJob(h.context(c), c.Param("id"))
	if !result.Success {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type archiveRequest struct {
	Reason ats.ArchiveReason `json:"reason" binding:"required"`
	Notes  string            `json:"notes"`
}

func (h *Handler) ArchiveJob(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Archiver.ArchiveJob(h.context(c), c.Param("id"), req.Reason, req.Notes); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetJobStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Archiver.SetStatus(h.context(c), ats.EntityJob, c.Param("id"), req.Status); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// --- Candidates ---

func (h *Handler) ListCandidates(c *gin.Context) {
	candidates, err := h.Candidates.List(h.context(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

func (h *Handler) AddCandidate(c *gin.Context) {
	var candidate ats.Candidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.Candidates.Add(h.context(c), candidate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) UpdateCandidate(c *gin.Context) {
	var fields engine.Document
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Candidates.Update(h.context(c), c.Param("id"), fields); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ArchiveCandidate(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Archiver.ArchiveCandidate(h.context(c), c.Param("id"), req.Reason, req.Notes); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) SetCandidateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Archiver.SetStatus(h.context(c), ats.EntityCandidate, c.Param("id"), req.Status); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type stageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// MoveCandidateStage is the HTTP end of a board drop: the UI reports the
// column the candidate landed on.
func (h *Handler) MoveCandidateStage(c *gin.Context) {
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	h.Mover.DragStart(id)
	if err := h.Mover.DragEnd(h.context(c), id, req.Stage); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// --- Notes ---

func (h *Handler) ListNotes(c *gin.Context) {
	notes, err := h.Notes.List(h.context(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

type noteRequest struct {
	Content    string `json:"content" binding:"required"`
	AuthorName string `json:"authorName"`
}

func (h *Handler) AddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.Notes.Add(h.context(c), c.Param("id"), req.AuthorName, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// --- Relationships ---

func (h *Handler) ListRelationships(c *gin.Context) {
	links, err := h.Relationships.List(h.context(c), c.Query("candidateId"), c.Query("jobId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

type relationshipRequest struct {
	CandidateID string `json:"candidateId" binding:"required"`
	JobID       string `json:"jobId" binding:"required"`
	Status      string `json:"status"`
}

func (h *Handler) AddRelationship(c *gin.Context) {
	var req relationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.Relationships.Add(h.context(c), req.CandidateID, req.JobID, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) UpdateRelationshipStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Relationships.UpdateStatus(h.context(c), c.Param("id"), req.Status); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) DeleteRelationship(c *gin.Context) {
	if err := h.Relationships.Remove(h.context(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// --- Activities ---

func (h *Handler) ListActivities(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	activities, err := h.Logger.Recent(h.context(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}
