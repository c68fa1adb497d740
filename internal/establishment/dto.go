package establishment

import (
	"time"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
)

type ContextResponse struct {
	ProfessionalID       string                    `json:"professional_id"`
	State                State                     `json:"state"`
	LastGoodState        State                     `json:"last_good_state"`
	ActiveAffiliation    *affiliation.Affiliation  `json:"active_affiliation,omitempty"`
	SuggestedAffiliation *affiliation.Affiliation  `json:"suggested_affiliation,omitempty"`
	Affiliations         []affiliation.Affiliation `json:"affiliations"`
	Permissions          authz.Set                 `json:"permissions"`
	IsAdmin              bool                      `json:"is_admin"`
	IsDepartmentHead     bool                      `json:"is_department_head"`
	Stale                bool                      `json:"stale"`
	Error                *ErrorBody                `json:"error,omitempty"`
	Version              uint64                    `json:"version"`
	ResolvedAt           time.Time                 `json:"resolved_at"`
}

type ErrorBody struct {
	Code    internal.ErrorCode `json:"code"`
	Message string             `json:"message"`
}

type AffiliationsResponse struct {
	Affiliations []affiliation.Affiliation `json:"affiliations"`
	Selectable   []affiliation.Affiliation `json:"selectable"`
}

type SwitchRequest struct {
	AffiliationID string `json:"affiliation_id" validate:"required"`
}

type SwitchResponse struct {
	Context             ContextResponse `json:"context"`
	PreferencePersisted bool            `json:"preference_persisted"`
}

type PermissionResponse struct {
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
}

type SessionsResponse struct {
	ActiveSessions int `json:"active_sessions"`
}

// ToContextResponse renders a context snapshot for the API.
func ToContextResponse(c *Context) ContextResponse {
	resp := ContextResponse{
		ProfessionalID:       c.ProfessionalID(),
		State:                c.State(),
		LastGoodState:        c.LastGoodState(),
		ActiveAffiliation:    c.Active(),
		SuggestedAffiliation: c.Suggested(),
		Affiliations:         c.Affiliations(),
		Permissions:          c.Permissions(),
		IsAdmin:              c.IsAdmin(),
		IsDepartmentHead:     c.IsDepartmentHead(),
		Stale:                c.Stale(),
		Version:              c.Version(),
		ResolvedAt:           c.ResolvedAt(),
	}
	if resp.Affiliations == nil {
		resp.Affiliations = []affiliation.Affiliation{}
	}
	if err := c.Err(); err != nil {
		resp.Error = &ErrorBody{Code: "INTERNAL_ERROR", Message: "directory fetch failed"}
		if appErr, ok := internal.IsAppError(err); ok {
			resp.Error = &ErrorBody{Code: appErr.Code, Message: appErr.Message}
		}
	}
	return resp
}
