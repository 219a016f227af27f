package ats

// UserRole is one role assignment on a user profile: membership in a
// company, optionally narrowed to a team.
type UserRole struct {
	CompanyID string `json:"companyId,omitempty"`
	TeamID    string `json:"teamId,omitempty"`
	Role      string `json:"role"`
}

// UserProfile is the stored identity a tenant context is derived from.
type UserProfile struct {
	ID    string     `json:"id,omitempty"`
	Email string     `json:"email,omitempty"`
	Name  string     `json:"name,omitempty"`
	Roles []UserRole `json:"roles,omitempty"`
}

// Context is the caller's tenant scope. It is derived, never persisted,
// and passed explicitly to every data-access call. Components read it but
// never mutate it.
type Context struct {
	CompanyID string
	TeamIDs   []string
	UserID    string
	IsAdmin   bool
	Role      string
}

// Resolve derives a tenant context from a user profile. An admin role sets
// IsAdmin; the first role carrying a company sets CompanyID and Role.
// TeamIDs collects every team assignment in order, duplicates allowed.
// A nil profile resolves to the zero context: absence of a company is a
// valid result that callers must check before mutating.
func Resolve(profile *UserProfile) Context {
	if profile == nil {
		return Context{}
	}

	ctx := Context{UserID: profile.ID}
	for _, role := range profile.Roles {
		if role.Role == "admin" {
			ctx.IsAdmin = true
		}
		if ctx.CompanyID == "" && role.CompanyID != "" {
			ctx.CompanyID = role.CompanyID
			ctx.Role = role.Role
		}
		if role.TeamID != "" {
			ctx.TeamIDs = append(ctx.TeamIDs, role.TeamID)
		}
	}
	return ctx
}
