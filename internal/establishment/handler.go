package establishment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/auth"
	"github.com/frahmantamala/santega-authz/internal/transport"
	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SessionManager is the part of Manager the HTTP layer needs.
type SessionManager interface {
	SignIn(ctx context.Context, identity affiliation.ProfessionalIdentity) (*Session, error)
	Len() int
}

type Handler struct {
	*transport.BaseHandler
	Sessions SessionManager
}

func NewHandler(baseHandler *transport.BaseHandler, sessions SessionManager) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Sessions:    sessions,
	}
}

func (h *Handler) GetContext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, ToContextResponse(s.Resolver.Context()))
}

func (h *Handler) GetAffiliations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx := s.Resolver.Context()
	resp := AffiliationsResponse{
		Affiliations: ctx.Affiliations(),
		Selectable:   ctx.Selectable(),
	}
	if resp.Affiliations == nil {
		resp.Affiliations = []affiliation.Affiliation{}
	}
	if resp.Selectable == nil {
		resp.Selectable = []affiliation.Affiliation{}
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Switch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("body", "invalid request body", internal.ErrCodeValidationFailed))
		return
	}
	req.AffiliationID = strings.TrimSpace(req.AffiliationID)
	if err := validate.Struct(req); err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("affiliation_id", "affiliation_id is required", internal.ErrCodeValidationFailed))
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	next, err := s.Switcher.SwitchTo(r.Context(), req.AffiliationID)
	switch {
	case err == nil:
		h.WriteJSON(w, http.StatusOK, SwitchResponse{Context: ToContextResponse(next), PreferencePersisted: true})
	case errors.Is(err, ErrPreferenceNotPersisted) && next != nil:
		h.WriteJSON(w, http.StatusOK, SwitchResponse{Context: ToContextResponse(next), PreferencePersisted: false})
	default:
		h.WriteAppError(w, err)
	}
}

// Refresh re-fetches the caller's affiliations. A failed fetch reports the
// directory error; the context keeps its last good data.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	next, err := s.Resolver.Refresh(r.Context())
	switch {
	case err == nil:
		h.WriteJSON(w, http.StatusOK, ToContextResponse(next))
	case errors.Is(err, ErrSuperseded):
		h.WriteJSON(w, http.StatusOK, ToContextResponse(s.Resolver.Context()))
	case errors.Is(err, context.Canceled):
		h.Logger.Debug("refresh abandoned by caller", "professional_id", s.Identity.ID)
	default:
		h.WriteAppError(w, err)
	}
}

func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "permission")

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionResponse{
		Permission: name,
		Granted:    s.Resolver.Context().HasName(name),
	})
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, SessionsResponse{ActiveSessions: h.Sessions.Len()})
}

// session signs the caller in on first use. A session whose first fetch
// failed is still returned; its context carries the error.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, auth.ErrInvalidToken)
		return nil, false
	}

	s, err := h.Sessions.SignIn(r.Context(), identity)
	if s != nil {
		return s, true
	}
	if errors.Is(err, context.Canceled) {
		return nil, false
	}
	if err == nil {
		err = ErrNoSession
	}
	h.WriteAppError(w, err)
	return nil, false
}
