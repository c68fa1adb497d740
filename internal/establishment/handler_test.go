package establishment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/auth"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/directory"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	"github.com/frahmantamala/santega-authz/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Establishment Handler", func() {
	var (
		dir     *FakeDirectory
		prefs   *MockPreferenceStore
		manager *establishment.Manager
		router  *chi.Mux
	)

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeError := func(w *httptest.ResponseRecorder) errorEnvelope {
		var env errorEnvelope
		Expect(json.NewDecoder(w.Body).Decode(&env)).To(Succeed())
		return env
	}

	BeforeEach(func() {
		dir = NewFakeDirectory()
		prefs = NewMockPreferenceStore()
		manager = establishment.NewManager(dir, prefs, establishment.WithLogger(discard))

		handler := establishment.NewHandler(&transport.BaseHandler{Logger: discard}, manager)
		router = chi.NewRouter()
		router.Get("/establishments/context", handler.GetContext)
		router.Get("/establishments/affiliations", handler.GetAffiliations)
		router.Post("/establishments/switch", handler.Switch)
		router.Post("/establishments/refresh", handler.Refresh)
		router.Get("/establishments/permissions/{permission}", handler.CheckPermission)
		router.Get("/admin/sessions", handler.GetSessions)
	})

	AfterEach(func() {
		manager.Close()
	})

	Context("with a nurse affiliation and a director affiliation", func() {
		BeforeEach(func() {
			dir.Set("pro-1",
				aff("a", "CHU de Libreville", authz.RoleNurse, affiliation.StatusActive),
				aff("b", "Clinique El Rapha", authz.RoleDirector, affiliation.StatusActive),
				aff("c", "Pharmacie du Port", authz.RolePharmacist, affiliation.StatusSuspended))
		})

		It("signs in on first use and asks for a selection", func() {
			w := do(http.MethodGet, "/establishments/context", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

			var resp map[string]interface{}
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp["state"]).To(Equal("awaiting_selection"))
			Expect(resp["professional_id"]).To(Equal("pro-1"))
			Expect(resp["affiliations"]).To(HaveLen(3))
			Expect(resp["suggested_affiliation"]).To(HaveKeyWithValue("id", "b"))
			Expect(resp).NotTo(HaveKey("active_affiliation"))
			Expect(manager.Len()).To(Equal(1))
		})

		It("lists only active affiliations as selectable", func() {
			w := do(http.MethodGet, "/establishments/affiliations", nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp establishment.AffiliationsResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Affiliations).To(HaveLen(3))
			ids := []string{}
			for _, a := range resp.Selectable {
				ids = append(ids, a.ID)
			}
			Expect(ids).To(Equal([]string{"b", "a"}))
		})

		It("switches and reports the preference as persisted", func() {
			w := do(http.MethodPost, "/establishments/switch", map[string]string{"affiliation_id": "b"})
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp establishment.SwitchResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.PreferencePersisted).To(BeTrue())
			Expect(resp.Context.State).To(Equal(establishment.StateResolved))
			Expect(resp.Context.ActiveAffiliation.ID).To(Equal("b"))
			Expect(resp.Context.Permissions.IsWildcard()).To(BeTrue())

			v, _ := prefs.Value("pro-1")
			Expect(v).To(Equal("b"))
		})

		It("still switches when the preference write fails", func() {
			prefs.SetShouldFail(true, errors.New("disk full"))

			w := do(http.MethodPost, "/establishments/switch", map[string]string{"affiliation_id": "a"})
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp establishment.SwitchResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.PreferencePersisted).To(BeFalse())
			Expect(resp.Context.ActiveAffiliation.ID).To(Equal("a"))
		})

		DescribeTable("rejected switches",
			func(body interface{}, status int, code string) {
				w := do(http.MethodPost, "/establishments/switch", body)
				Expect(w.Code).To(Equal(status))
				Expect(decodeError(w).Error.Code).To(Equal(code))
			},
			Entry("suspended affiliation", map[string]string{"affiliation_id": "c"}, http.StatusForbidden, "NOT_ACTIVE"),
			Entry("unknown affiliation", map[string]string{"affiliation_id": "zz"}, http.StatusNotFound, "NOT_AFFILIATED"),
			Entry("missing id", map[string]string{"affiliation_id": " "}, http.StatusBadRequest, "VALIDATION_FAILED"),
		)

		It("rejects a body that is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/establishments/switch", bytes.NewBufferString("{"))
			req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers permission checks against the active establishment", func() {
			w := do(http.MethodPost, "/establishments/switch", map[string]string{"affiliation_id": "a"})
			Expect(w.Code).To(Equal(http.StatusOK))

			check := func(name string) bool {
				w := do(http.MethodGet, "/establishments/permissions/"+name, nil)
				Expect(w.Code).To(Equal(http.StatusOK))
				var resp establishment.PermissionResponse
				Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
				Expect(resp.Permission).To(Equal(name))
				return resp.Granted
			}

			Expect(check("manage_beds")).To(BeTrue())
			Expect(check("manage_billing")).To(BeFalse())
			Expect(check("not_a_permission")).To(BeFalse())

			do(http.MethodPost, "/establishments/switch", map[string]string{"affiliation_id": "b"})
			Expect(check("manage_billing")).To(BeTrue())
			Expect(check("not_a_permission")).To(BeFalse())
		})

		It("re-fetches on refresh", func() {
			do(http.MethodGet, "/establishments/context", nil)
			dir.Set("pro-1", aff("a", "CHU de Libreville", authz.RoleNurse, affiliation.StatusActive))

			w := do(http.MethodPost, "/establishments/refresh", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var resp establishment.ContextResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.State).To(Equal(establishment.StateSingleEstablishment))
			Expect(resp.ActiveAffiliation.ID).To(Equal("a"))
		})

		It("maps refresh failures to the directory error", func() {
			do(http.MethodGet, "/establishments/context", nil)
			dir.SetShouldFail(true, directory.ErrUnavailable)

			w := do(http.MethodPost, "/establishments/refresh", nil)
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(decodeError(w).Error.Code).To(Equal("DIRECTORY_UNAVAILABLE"))

			w = do(http.MethodGet, "/establishments/context", nil)
			var resp establishment.ContextResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.State).To(Equal(establishment.StateError))
			Expect(resp.Stale).To(BeTrue())
			Expect(resp.Error.Code).To(BeEquivalentTo("DIRECTORY_UNAVAILABLE"))
			Expect(resp.Affiliations).To(HaveLen(3))
		})

		It("counts signed-in sessions", func() {
			do(http.MethodGet, "/establishments/context", nil)
			w := do(http.MethodGet, "/admin/sessions", nil)
			var resp establishment.SessionsResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.ActiveSessions).To(Equal(1))
		})
	})

	It("reports an unknown professional on refresh as not found", func() {
		w := do(http.MethodPost, "/establishments/refresh", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(w).Error.Code).To(Equal("DIRECTORY_NOT_FOUND"))
	})

	It("returns an error context when the first fetch fails", func() {
		w := do(http.MethodGet, "/establishments/context", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp establishment.ContextResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.State).To(Equal(establishment.StateError))
		Expect(resp.LastGoodState).To(Equal(establishment.StateUninitialized))
		Expect(resp.Affiliations).To(BeEmpty())
		Expect(resp.Error.Code).To(BeEquivalentTo("DIRECTORY_NOT_FOUND"))
	})

	It("requires an authenticated identity", func() {
		req := httptest.NewRequest(http.MethodGet, "/establishments/context", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decodeError(w).Error.Code).To(Equal("INVALID_TOKEN"))
	})

	It("does not answer for a caller that went away", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		dir.Set("pro-1", aff("a", "CHU de Libreville", authz.RoleNurse, affiliation.StatusActive))
		release := dir.Hold(true)
		defer release()

		req := httptest.NewRequest(http.MethodGet, "/establishments/context", nil)
		req = req.WithContext(auth.ContextWithIdentity(ctx, identity))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Body.Len()).To(BeZero())
		Expect(manager.Len()).To(BeZero())
	})
})
