package ats

import (
	"errors"
	"sync"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// exemptCollections are organization-level directories that are readable
// and writable without a company scope.
var exemptCollections = map[string]bool{
	CollectionCompanies:  true,
	CollectionTeams:      true,
	CollectionUsers:      true,
	CollectionAdminUsers: true,
}

// Collection is a tenant-enforced handle on one backend collection. Every
// read and write is scoped to the caller's company before it reaches the
// store; nothing in this package writes around it.
type Collection struct {
	store   engine.Store
	name    string
	enforce bool
}

// NewCollection wraps a backend collection. With enforce set, subscriptions
// are filtered to the caller's company and mutations are access-checked;
// without it the collection behaves as a plain passthrough.
func NewCollection(store engine.Store, name string, enforce bool) *Collection {
	return &Collection{store: store, name: name, enforce: enforce}
}

// Name returns the backend collection name.
func (c *Collection) Name() string { return c.name }

// tenantRequired reports whether this caller needs a company scope for the
// operation to proceed. Admins and exempt collections bypass it.
func (c *Collection) tenantRequired(ctx Context) bool {
	return c.enforce && !exemptCollections[c.name] && !ctx.IsAdmin
}

// Subscribe opens a live query. When tenant enforcement applies, a company
// filter is prepended to the caller's query. With enforcement required but
// no company resolvable the subscription yields an empty result set and
// ErrNoTenant instead of cross-tenant data; it never panics past the caller.
// The returned subscription must be closed when the consumer goes away.
func (c *Collection) Subscribe(ctx Context, q engine.Query) engine.Subscription {
	if c.tenantRequired(ctx) {
		if ctx.CompanyID == "" {
			return newStaticSubscription(engine.Snapshot{Err: ErrNoTenant})
		}
		q.Filters = append([]engine.Filter{{Field: "companyId", Value: ctx.CompanyID}}, q.Filters...)
	}

	sub, err := c.store.Watch(c.name, q)
	if err != nil {
		return newStaticSubscription(engine.Snapshot{Err: err})
	}
	return sub
}

// Get loads one document, verifying tenant access on enforced collections.
func (c *Collection) Get(ctx Context, id string) (engine.Document, error) {
	doc, err := c.store.Get(c.name, id)
	if err != nil {
		return nil, err
	}
	if c.enforce {
		if err := c.validateAccess(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Find runs a one-shot query with the same company scoping as Subscribe.
func (c *Collection) Find(ctx Context, q engine.Query) ([]engine.Document, error) {
	if c.tenantRequired(ctx) {
		if ctx.CompanyID == "" {
			return nil, ErrNoTenant
		}
		q.Filters = append([]engine.Filter{{Field: "companyId", Value: ctx.CompanyID}}, q.Filters...)
	}
	return c.store.Find(c.name, q)
}

// Add inserts a document stamped with the caller's tenant scope: company,
// first team, creator and timestamps, plus a default lifecycle status.
// It rejects with ErrNoTenant when enforcement applies and no company is
// resolvable, which is distinct from ErrNotAuthenticated.
func (c *Collection) Add(ctx Context, doc engine.Document) (string, error) {
	enriched := make(engine.Document, len(doc)+6)
	for k, v := range doc {
		enriched[k] = v
	}

	exempt := exemptCollections[c.name]
	if c.enforce {
		if ctx.UserID == "" {
			return "", ErrNotAuthenticated
		}
		if !exempt && ctx.CompanyID == "" {
			return "", ErrNoTenant
		}

		now := nowISO()
		enriched["createdBy"] = ctx.UserID
		enriched["createdAt"] = now
		enriched["updatedAt"] = now
		if !exempt {
			enriched["companyId"] = ctx.CompanyID
			if _, ok := enriched["teamId"]; !ok && len(ctx.TeamIDs) > 0 {
				enriched["teamId"] = ctx.TeamIDs[0]
			}
			if _, ok := enriched["status"]; !ok {
				enriched["status"] = StatusActive
			}
		}
	}

	return c.store.Insert(c.name, enriched)
}

// Update merges fields into a document after verifying the caller may touch
// it. A company or team mismatch fails with ErrAccessDenied before any
// write; it is never a silent no-op.
func (c *Collection) Update(ctx Context, id string, fields engine.Document) error {
	if c.enforce {
		if err := c.checkExisting(ctx, id); err != nil {
			return err
		}
	}

	merged := make(engine.Document, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updatedAt"] = nowISO()
	return c.store.Update(c.name, id, merged)
}

// Remove deletes a document with the same access check as Update.
func (c *Collection) Remove(ctx Context, id string) error {
	if c.enforce {
		if err := c.checkExisting(ctx, id); err != nil {
			return err
		}
	}
	return c.store.Delete(c.name, id)
}

// checkExisting validates tenant access against the stored record. A record
// that does not exist yet passes; the underlying write will report that.
func (c *Collection) checkExisting(ctx Context, id string) error {
	existing, err := c.store.Get(c.name, id)
	if err != nil {
		if errors.Is(err, engine.ErrDocumentNotFound) || errors.Is(err, engine.ErrCollectionNotFound) {
			return nil
		}
		return err
	}
	return c.validateAccess(ctx, existing)
}

// validateAccess enforces the tenant-isolation contract: a record carrying
// a company must match the caller's company, and a record carrying a team
// must be in the caller's team list when that list is non-empty.
func (c *Collection) validateAccess(ctx Context, doc engine.Document) error {
	docCompany, _ := doc["companyId"].(string)
	if docCompany == "" {
		return nil
	}
	if ctx.CompanyID != "" && docCompany != ctx.CompanyID {
		return ErrAccessDenied
	}

	docTeam, _ := doc["teamId"].(string)
	if docTeam != "" && len(ctx.TeamIDs) > 0 {
		found := false
		for _, teamID := range ctx.TeamIDs {
			if teamID == docTeam {
				found = true
				break
			}
		}
		if !found {
			return ErrAccessDenied
		}
	}
	return nil
}

// staticSubscription delivers a single fixed snapshot and then stays quiet.
// It stands in for a live query that could not be opened.
type staticSubscription struct {
	ch   chan engine.Snapshot
	once sync.Once
}

func newStaticSubscription(snap engine.Snapshot) *staticSubscription {
	s := &staticSubscription{ch: make(chan engine.Snapshot, 1)}
	s.ch <- snap
	return s
}

func (s *staticSubscription) Updates() <-chan engine.Snapshot { return s.ch }

func (s *staticSubscription) Close() {
	s.once.Do(func() { close(s.ch) })
}
