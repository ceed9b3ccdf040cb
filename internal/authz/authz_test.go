package authz_test

import (
	"errors"
	"testing"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAuthz(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Authz Suite")
}

var _ = Describe("Permission", func() {
	It("parses every member of the enumeration", func() {
		for _, p := range authz.All() {
			parsed, err := authz.Parse(string(p))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(p))
		}
	})

	It("rejects free-text names with a validation error", func() {
		_, err := authz.ParseSet([]string{"view-users", "become-root"})
		Expect(err).To(HaveOccurred())
		Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
	})

	It("drops unknown names coming from trusted sources", func() {
		s := authz.FromNames([]string{"view-users", "legacy-permission"})
		Expect(s.Names()).To(Equal([]string{"view-users"}))
	})

	It("computes added and removed permissions", func() {
		current := authz.NewSet(authz.ViewUsers, authz.DeleteUsers)
		desired := authz.NewSet(authz.ViewUsers, authz.CreateUsers)

		Expect(desired.Diff(current).Names()).To(Equal([]string{"create-users"}))
		Expect(current.Diff(desired).Names()).To(Equal([]string{"delete-users"}))
	})
})

var _ = Describe("Authorize", func() {
	var (
		alice *authz.Principal
		bob   *authz.Principal
	)

	BeforeEach(func() {
		alice = authz.NewPrincipal("alice", []string{authz.RoleUser}, authz.NewSet(authz.ViewUsers))
		bob = authz.NewPrincipal("bob", []string{authz.RoleAdmin}, authz.NewSet(authz.All()...))
	})

	DescribeTable("self-mutation",
		func(perm authz.Permission, allowed bool) {
			err := authz.Authorize(alice, perm, alice.ID)
			if allowed {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())
			}
		},
		Entry("update", authz.UpdateUsers, true),
		Entry("activate", authz.ActivateUsers, true),
		Entry("inactivate", authz.InactivateUsers, true),
		Entry("create", authz.CreateUsers, false),
		Entry("delete", authz.DeleteUsers, false),
		Entry("grant-permissions", authz.GrantPermissions, false),
		Entry("revoke-permissions", authz.RevokePermissions, false),
	)

	It("requires the permission when acting on someone else", func() {
		err := authz.Authorize(alice, authz.UpdateUsers, bob.ID)
		Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

		Expect(authz.Authorize(bob, authz.UpdateUsers, alice.ID)).To(Succeed())
		Expect(authz.Authorize(bob, authz.DeleteUsers, alice.ID)).To(Succeed())
	})

	It("treats an empty target as a plain permission check", func() {
		Expect(authz.Require(alice, authz.ViewUsers)).To(Succeed())
		Expect(authz.Require(alice, authz.UpdateUsers)).To(MatchError(internal.ErrPermissionDenied))
	})

	It("rejects a missing principal as unauthenticated", func() {
		err := authz.Authorize(nil, authz.ViewUsers, "")
		Expect(internal.KindOf(err)).To(Equal(internal.KindUnauthenticated))
	})

	It("answers Can from role and direct grants only", func() {
		Expect(authz.Can(alice, authz.ViewUsers)).To(BeTrue())
		Expect(authz.Can(alice, authz.GrantPermissions)).To(BeFalse())
		Expect(authz.Can(nil, authz.ViewUsers)).To(BeFalse())
	})
})
