package establishment_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	"github.com/frahmantamala/santega-authz/internal/directory"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SwitchController", func() {
	var (
		dir      *FakeDirectory
		prefs    *MockPreferenceStore
		pub      *RecordingPublisher
		resolver *establishment.Resolver
		switcher *establishment.SwitchController
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = NewFakeDirectory()
		prefs = NewMockPreferenceStore()
		pub = &RecordingPublisher{}
		opts := []establishment.Option{establishment.WithLogger(discard), establishment.WithPublisher(pub)}
		resolver = establishment.NewResolver(identity, dir, prefs, opts...)
		switcher = establishment.NewSwitchController(resolver, prefs, opts...)
	})

	AfterEach(func() {
		resolver.Close()
	})

	Context("doctor at A, suspended admin at B", func() {
		BeforeEach(func() {
			dir.Set("pro-1",
				aff("a", "Hopital A", authz.RoleDoctor, affiliation.StatusActive),
				aff("b", "Clinique B", authz.RoleAdmin, affiliation.StatusSuspended))
			c, err := resolver.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateSingleEstablishment))
			Expect(c.Active().ID).To(Equal("a"))
		})

		It("refuses the suspended affiliation and keeps A active", func() {
			before := resolver.Context()

			c, err := switcher.SwitchTo(ctx, "b")
			Expect(c).To(BeNil())
			Expect(errors.Is(err, establishment.ErrNotActive)).To(BeTrue())

			after := resolver.Context()
			Expect(after).To(BeIdenticalTo(before))
			Expect(after.Active().ID).To(Equal("a"))
			Expect(prefs.Writes()).To(Equal(0))
		})

		It("refuses an id that is not in the list", func() {
			before := resolver.Context()
			_, err := switcher.SwitchTo(ctx, "zzz")
			Expect(errors.Is(err, establishment.ErrNotAffiliated)).To(BeTrue())
			Expect(resolver.Context()).To(BeIdenticalTo(before))
		})

		It("treats switching to the single active affiliation as a no-op", func() {
			before := resolver.Context()
			c, err := switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeIdenticalTo(before))
			Expect(prefs.Writes()).To(Equal(0))
		})
	})

	Context("nurse at A with view_dmp, director at B", func() {
		BeforeEach(func() {
			dir.Set("pro-1",
				aff("a", "Clinique A", authz.RoleNurse, affiliation.StatusActive, authz.PermViewDMP),
				aff("b", "Hopital B", authz.RoleDirector, affiliation.StatusActive))
		})

		It("awaits a selection and then follows each switch", func() {
			c, err := resolver.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateAwaitingSelection))
			Expect(resolver.Affiliations()).To(HaveLen(2))

			c, err = switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateResolved))
			Expect(c.HasName("view_dmp")).To(BeTrue())
			Expect(c.HasName("manage_billing")).To(BeFalse())
			Expect(c.IsNurse()).To(BeTrue())

			c, err = switcher.SwitchTo(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.HasName("manage_billing")).To(BeTrue())
			Expect(c.IsDirector()).To(BeTrue())
			Expect(resolver.Context()).To(BeIdenticalTo(c))

			v, ok := prefs.Value("pro-1")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("b"))
			Expect(prefs.Writes()).To(Equal(2))
		})

		It("is idempotent for the active affiliation", func() {
			_, _ = resolver.Refresh(ctx)
			first, err := switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			writes := prefs.Writes()

			second, err := switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			third, err := switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(BeIdenticalTo(first))
			Expect(third).To(BeIdenticalTo(first))
			Expect(prefs.Writes()).To(Equal(writes))
			v, _ := prefs.Value("pro-1")
			Expect(v).To(Equal("a"))
		})

		It("keeps the switch when the preference cannot be saved", func() {
			_, _ = resolver.Refresh(ctx)
			cause := errors.New("disk full")
			prefs.SetShouldFail(true, cause)

			c, err := switcher.SwitchTo(ctx, "b")
			Expect(errors.Is(err, establishment.ErrPreferenceNotPersisted)).To(BeTrue())
			Expect(errors.Is(err, cause)).To(BeTrue())
			Expect(c).NotTo(BeNil())
			Expect(c.Active().ID).To(Equal("b"))
			Expect(resolver.Context().Active().ID).To(Equal("b"))

			Expect(pub.Types()).To(ContainElement(events.EventTypePreferenceFailed))
			switched, ok := pub.Last(events.EventTypeSwitched).(*events.SwitchedEvent)
			Expect(ok).To(BeTrue())
			Expect(switched.PreferencePersisted).To(BeFalse())
		})

		It("uses the saved choice in the next session", func() {
			_, _ = resolver.Refresh(ctx)
			_, err := switcher.SwitchTo(ctx, "b")
			Expect(err).NotTo(HaveOccurred())

			next := establishment.NewResolver(identity, dir, prefs, establishment.WithLogger(discard))
			defer next.Close()
			c, err := next.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateResolved))
			Expect(c.Active().ID).To(Equal("b"))
		})

		It("publishes the switch", func() {
			_, _ = resolver.Refresh(ctx)
			_, err := switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			_, err = switcher.SwitchTo(ctx, "b")
			Expect(err).NotTo(HaveOccurred())

			e, ok := pub.Last(events.EventTypeSwitched).(*events.SwitchedEvent)
			Expect(ok).To(BeTrue())
			Expect(e.FromAffiliationID).To(Equal("a"))
			Expect(e.ToAffiliationID).To(Equal("b"))
			Expect(e.EstablishmentID).To(Equal("est-b"))
			Expect(e.PreferencePersisted).To(BeTrue())
		})

		It("lets the user pick from the stale list while the directory is down", func() {
			_, _ = resolver.Refresh(ctx)
			dir.SetShouldFail(true, directory.ErrUnavailable)
			_, err := resolver.Refresh(ctx)
			Expect(err).To(HaveOccurred())

			c, err := switcher.SwitchTo(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateError))
			Expect(c.LastGoodState()).To(Equal(establishment.StateResolved))
			Expect(c.Stale()).To(BeTrue())
			Expect(c.Active().ID).To(Equal("a"))
			Expect(c.Has(authz.PermViewDMP)).To(BeTrue())

			dir.SetShouldFail(false, nil)
			c, err = resolver.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateResolved))
			Expect(c.Active().ID).To(Equal("a"))
		})
	})

	It("fails on a closed resolver", func() {
		dir.Set("pro-1", aff("a", "A", authz.RoleDoctor, affiliation.StatusActive))
		_, _ = resolver.Refresh(ctx)
		resolver.Close()

		_, err := switcher.SwitchTo(ctx, "a")
		Expect(errors.Is(err, establishment.ErrSessionClosed)).To(BeTrue())
	})

	It("switches without a preference store", func() {
		dir.Set("pro-1",
			aff("a", "A", authz.RoleDoctor, affiliation.StatusActive),
			aff("b", "B", authz.RoleDoctor, affiliation.StatusActive))
		r := establishment.NewResolver(identity, dir, nil, establishment.WithLogger(discard))
		defer r.Close()
		_, _ = r.Refresh(ctx)

		c, err := establishment.NewSwitchController(r, nil, establishment.WithLogger(discard)).SwitchTo(ctx, "b")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Active().ID).To(Equal("b"))
	})
})
