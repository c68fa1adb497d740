package establishment_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/directory"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	var (
		dir     *FakeDirectory
		prefs   *MockPreferenceStore
		manager *establishment.Manager
		ctx     context.Context
		other   affiliation.ProfessionalIdentity
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = NewFakeDirectory()
		prefs = NewMockPreferenceStore()
		manager = establishment.NewManager(dir, prefs, establishment.WithLogger(discard))
		other = affiliation.ProfessionalIdentity{ID: "pro-2", Email: "j.obame@sante.ga"}

		dir.Set("pro-1", aff("a", "A", authz.RoleDoctor, affiliation.StatusActive))
		b := aff("b", "B", authz.RolePharmacist, affiliation.StatusActive)
		b.ProfessionalID = "pro-2"
		dir.Set("pro-2", b)
	})

	AfterEach(func() {
		manager.Close()
	})

	It("signs in with a resolved context", func() {
		s, err := manager.SignIn(ctx, identity)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Identity).To(Equal(identity))
		Expect(s.Resolver.Context().State()).To(Equal(establishment.StateSingleEstablishment))
		Expect(manager.Len()).To(Equal(1))

		c, err := manager.Context("pro-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.IsDoctor()).To(BeTrue())
	})

	Describe("OnDirectoryChanged", func() {
		It("re-evaluates a signed-in professional against the new list", func() {
			_, err := manager.SignIn(ctx, identity)
			Expect(err).NotTo(HaveOccurred())

			dir.Set("pro-1",
				aff("a", "A", authz.RoleDoctor, affiliation.StatusSuspended),
				aff("c", "C", authz.RoleNurse, affiliation.StatusActive))
			manager.OnDirectoryChanged(ctx, "pro-1")

			c, err := manager.Context("pro-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(establishment.StateSingleEstablishment))
			Expect(c.Active().ID).To(Equal("c"))
		})

		It("ignores professionals without a session", func() {
			manager.OnDirectoryChanged(ctx, "pro-2")
			Expect(dir.Calls()).To(BeZero())
			Expect(manager.Len()).To(BeZero())
		})
	})

	It("reuses the session of a professional already signed in", func() {
		first, _ := manager.SignIn(ctx, identity)
		second, _ := manager.SignIn(ctx, identity)
		Expect(second).To(BeIdenticalTo(first))
		Expect(dir.Calls()).To(Equal(1))
	})

	It("runs a single first fetch for concurrent sign-ins", func() {
		release := dir.Hold(false)
		var wg sync.WaitGroup
		sessions := make([]*establishment.Session, 5)
		for i := range sessions {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				s, err := manager.SignIn(ctx, identity)
				Expect(err).NotTo(HaveOccurred())
				sessions[i] = s
			}(i)
		}
		Eventually(dir.Calls).Should(Equal(1))
		release()
		wg.Wait()

		for _, s := range sessions {
			Expect(s).To(BeIdenticalTo(sessions[0]))
			Expect(s.Resolver.Context().State()).To(Equal(establishment.StateSingleEstablishment))
		}
		Expect(dir.Calls()).To(Equal(1))
	})

	It("keeps professionals apart", func() {
		s1, _ := manager.SignIn(ctx, identity)
		s2, _ := manager.SignIn(ctx, other)
		Expect(s1.Resolver).NotTo(BeIdenticalTo(s2.Resolver))
		Expect(s1.Resolver.Context().IsDoctor()).To(BeTrue())
		Expect(s2.Resolver.Context().IsPharmacist()).To(BeTrue())
		Expect(s2.Resolver.Context().IsDoctor()).To(BeFalse())
	})

	It("returns the session in Error when the directory is down", func() {
		dir.SetShouldFail(true, directory.ErrUnavailable)
		s, err := manager.SignIn(ctx, identity)
		Expect(directory.Retryable(err)).To(BeTrue())
		Expect(s).NotTo(BeNil())
		Expect(s.Resolver.Context().Failed()).To(BeTrue())
		Expect(manager.Len()).To(Equal(1))
	})

	It("forgets a sign-in whose caller gave up", func() {
		release := dir.Hold(true)
		defer release()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := manager.SignIn(cctx, identity)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(manager.Len()).To(Equal(0))

		s, err := manager.SignIn(ctx, identity)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Resolver.Context().State()).To(Equal(establishment.StateSingleEstablishment))
	})

	It("hands a waiting caller its own session when the first caller gives up", func() {
		release := dir.Hold(true)
		defer release()
		cctx, cancel := context.WithCancel(ctx)

		firstDone := make(chan error, 1)
		go func() {
			_, err := manager.SignIn(cctx, identity)
			firstDone <- err
		}()
		Eventually(dir.Calls).Should(Equal(1))

		type result struct {
			s   *establishment.Session
			err error
		}
		secondDone := make(chan result, 1)
		go func() {
			s, err := manager.SignIn(ctx, identity)
			secondDone <- result{s, err}
		}()
		Consistently(secondDone, 50*time.Millisecond).ShouldNot(Receive())

		cancel()

		var err error
		Eventually(firstDone).Should(Receive(&err))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())

		var second result
		Eventually(secondDone).Should(Receive(&second))
		Expect(second.err).NotTo(HaveOccurred())
		Expect(second.s).NotTo(BeNil())
		Expect(second.s.Resolver.Context().State()).To(Equal(establishment.StateSingleEstablishment))
		Expect(manager.Len()).To(Equal(1))
		Expect(dir.Calls()).To(Equal(2))
	})

	Describe("Sweep", func() {
		var (
			mu  sync.Mutex
			now time.Time
		)

		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}

		BeforeEach(func() {
			now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
			manager.Close()
			manager = establishment.NewManager(dir, prefs,
				establishment.WithLogger(discard),
				establishment.WithClock(clock),
				establishment.WithIdleTTL(30*time.Minute))
		})

		It("closes the session once the caller's token has expired", func() {
			tctx := internal.ContextWithSessionExpiry(ctx, now.Add(10*time.Minute))
			s, err := manager.SignIn(tctx, identity)
			Expect(err).NotTo(HaveOccurred())

			Expect(manager.Sweep()).To(Equal(0))
			advance(10 * time.Minute)
			Expect(manager.Sweep()).To(Equal(1))

			Expect(manager.Len()).To(Equal(0))
			_, err = manager.Context("pro-1")
			Expect(errors.Is(err, establishment.ErrNoSession)).To(BeTrue())
			_, err = s.Resolver.Refresh(ctx)
			Expect(errors.Is(err, establishment.ErrSessionClosed)).To(BeTrue())
		})

		It("extends the lifetime when a later token expires later", func() {
			_, _ = manager.SignIn(internal.ContextWithSessionExpiry(ctx, now.Add(5*time.Minute)), identity)
			_, _ = manager.SignIn(internal.ContextWithSessionExpiry(ctx, now.Add(20*time.Minute)), identity)

			advance(10 * time.Minute)
			Expect(manager.Sweep()).To(Equal(0))
			advance(10 * time.Minute)
			Expect(manager.Sweep()).To(Equal(1))
		})

		It("evicts idle sessions and keeps the ones still in use", func() {
			idle, _ := manager.SignIn(ctx, identity)
			_, _ = manager.SignIn(ctx, other)

			advance(20 * time.Minute)
			_, _ = manager.SignIn(ctx, other)
			advance(15 * time.Minute)

			Expect(manager.Sweep()).To(Equal(1))
			Expect(manager.Len()).To(Equal(1))
			_, ok := manager.Get("pro-2")
			Expect(ok).To(BeTrue())
			_, err := idle.Resolver.Refresh(ctx)
			Expect(errors.Is(err, establishment.ErrSessionClosed)).To(BeTrue())
		})

		It("leaves a sign-in that is still fetching", func() {
			release := dir.Hold(false)
			done := make(chan struct{})
			go func() {
				defer close(done)
				_, _ = manager.SignIn(internal.ContextWithSessionExpiry(ctx, now.Add(time.Minute)), identity)
			}()
			Eventually(dir.Calls).Should(Equal(1))

			advance(time.Hour)
			Expect(manager.Sweep()).To(Equal(0))
			Expect(manager.Len()).To(Equal(1))

			release()
			Eventually(done).Should(BeClosed())
			Expect(manager.Sweep()).To(Equal(1))
		})

		It("sweeps on an interval until stopped", func() {
			_, _ = manager.SignIn(internal.ContextWithSessionExpiry(ctx, now.Add(time.Minute)), identity)
			advance(time.Minute)

			sctx, stop := context.WithCancel(ctx)
			stopped := make(chan struct{})
			go func() {
				defer close(stopped)
				manager.RunSweeper(sctx, 10*time.Millisecond)
			}()
			Eventually(manager.Len).Should(Equal(0))
			stop()
			Eventually(stopped).Should(BeClosed())
		})
	})

	Describe("SignOut", func() {
		It("closes the session and drops a late fetch result", func() {
			s, _ := manager.SignIn(ctx, identity)
			release := dir.Hold(false)
			done := make(chan error, 1)
			go func() {
				_, err := s.Resolver.Refresh(ctx)
				done <- err
			}()
			Eventually(dir.Calls).Should(Equal(2))

			Expect(manager.SignOut("pro-1")).To(BeTrue())
			before := s.Resolver.Context()
			release()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, establishment.ErrSessionClosed)).To(BeTrue())
			Expect(s.Resolver.Context()).To(BeIdenticalTo(before))

			_, err = manager.Context("pro-1")
			Expect(errors.Is(err, establishment.ErrNoSession)).To(BeTrue())
			Expect(manager.SignOut("pro-1")).To(BeFalse())
		})

		It("lets another professional sign in afterwards with a fresh context", func() {
			_, _ = manager.SignIn(ctx, identity)
			manager.SignOut("pro-1")

			s, err := manager.SignIn(ctx, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Resolver.Context().ProfessionalID()).To(Equal("pro-2"))
			Expect(s.Resolver.Context().IsDoctor()).To(BeFalse())
		})
	})

	Describe("OnDirectoryChanged", func() {
		It("refreshes a signed-in professional", func() {
			s, _ := manager.SignIn(ctx, identity)
			dir.Set("pro-1", aff("a", "A", authz.RoleDoctor, affiliation.StatusSuspended))

			manager.OnDirectoryChanged(ctx, "pro-1")
			Expect(s.Resolver.Context().State()).To(Equal(establishment.StateNoEstablishment))
		})

		It("ignores professionals without a session", func() {
			manager.OnDirectoryChanged(ctx, "pro-9")
			Expect(dir.Calls()).To(Equal(0))
		})
	})
})
