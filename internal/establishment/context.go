package establishment

import (
	"time"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
)

// Context is the resolved authorization context of one professional. It is
// never modified after publication; every change produces a new value. The
// zero value and a nil *Context grant nothing.
type Context struct {
	professionalID string
	state          State
	lastGoodState  State
	active         *affiliation.Affiliation
	suggested      *affiliation.Affiliation
	affiliations   []affiliation.Affiliation
	permissions    authz.Set
	err            error
	stale          bool
	version        uint64
	resolvedAt     time.Time
}

func (c *Context) ProfessionalID() string {
	if c == nil {
		return ""
	}
	return c.professionalID
}

func (c *Context) State() State {
	if c == nil {
		return StateUninitialized
	}
	return c.state
}

// LastGoodState is the state the stale data was resolved in. It equals State
// outside StateError.
func (c *Context) LastGoodState() State {
	if c == nil {
		return StateUninitialized
	}
	return c.lastGoodState
}

// Active returns a copy of the working affiliation, or nil.
func (c *Context) Active() *affiliation.Affiliation {
	if c == nil || c.active == nil {
		return nil
	}
	a := *c.active
	return &a
}

// Suggested is the advisory default offered while awaiting a selection.
func (c *Context) Suggested() *affiliation.Affiliation {
	if c == nil || c.suggested == nil {
		return nil
	}
	a := *c.suggested
	return &a
}

// Affiliations returns a copy of every known affiliation, including the ones
// that cannot become active.
func (c *Context) Affiliations() []affiliation.Affiliation {
	if c == nil {
		return nil
	}
	out := make([]affiliation.Affiliation, len(c.affiliations))
	copy(out, c.affiliations)
	return out
}

// Selectable returns the active affiliations in suggestion order.
func (c *Context) Selectable() []affiliation.Affiliation {
	if c == nil {
		return nil
	}
	return affiliation.SortForSuggestion(affiliation.Active(c.affiliations))
}

func (c *Context) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// Stale is true when the data predates a failed refresh.
func (c *Context) Stale() bool {
	return c != nil && c.stale
}

func (c *Context) Version() uint64 {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *Context) ResolvedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.resolvedAt
}

// Permissions is the effective set of the active affiliation.
func (c *Context) Permissions() authz.Set {
	if c == nil || c.active == nil {
		return authz.Set{}
	}
	return c.permissions
}

// Has never fails: without an active affiliation it is false.
func (c *Context) Has(p authz.Permission) bool {
	if c == nil || c.active == nil {
		return false
	}
	return c.permissions.Has(p)
}

// HasName checks a permission by its string form. Names outside the
// vocabulary are never granted, even by the wildcard.
func (c *Context) HasName(name string) bool {
	p, err := authz.ParsePermission(name)
	if err != nil {
		return false
	}
	return c.Has(p)
}

func (c *Context) HasAny(perms ...authz.Permission) bool {
	if c == nil || c.active == nil {
		return false
	}
	return c.permissions.HasAny(perms...)
}

func (c *Context) HasAll(perms ...authz.Permission) bool {
	if c == nil || c.active == nil {
		return false
	}
	return c.permissions.HasAll(perms...)
}

func (c *Context) roleIs(r authz.Role) bool {
	return c != nil && c.active != nil && c.active.Role == r
}

func (c *Context) IsDirector() bool      { return c.roleIs(authz.RoleDirector) }
func (c *Context) IsDoctor() bool        { return c.roleIs(authz.RoleDoctor) }
func (c *Context) IsNurse() bool         { return c.roleIs(authz.RoleNurse) }
func (c *Context) IsMidwife() bool       { return c.roleIs(authz.RoleMidwife) }
func (c *Context) IsPharmacist() bool    { return c.roleIs(authz.RolePharmacist) }
func (c *Context) IsLabTechnician() bool { return c.roleIs(authz.RoleLabTechnician) }
func (c *Context) IsRadiologist() bool   { return c.roleIs(authz.RoleRadiologist) }
func (c *Context) IsReceptionist() bool  { return c.roleIs(authz.RoleReceptionist) }
func (c *Context) IsAccountant() bool    { return c.roleIs(authz.RoleAccountant) }

// IsAdmin is true for the admin role and for anyone carrying the
// establishment-level administrative flag.
func (c *Context) IsAdmin() bool {
	return c.roleIs(authz.RoleAdmin) || (c != nil && c.active != nil && c.active.IsAdmin)
}

func (c *Context) IsDepartmentHead() bool {
	return c != nil && c.active != nil && c.active.IsDepartmentHead
}

// NeedsOnboarding means the professional has no active affiliation at all.
func (c *Context) NeedsOnboarding() bool {
	return c.State() == StateNoEstablishment
}

// NeedsSelection means a picker must be shown before anything is granted.
func (c *Context) NeedsSelection() bool {
	return c.State() == StateAwaitingSelection
}

func (c *Context) Failed() bool {
	return c.State() == StateError
}

// Multiple reports whether more than one affiliation is selectable.
func (c *Context) Multiple() bool {
	if c == nil {
		return false
	}
	return len(affiliation.Active(c.affiliations)) > 1
}
