package user_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/events"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	userPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fakeStaleFinder struct {
	cutoff   time.Time
	accounts []user.StaleAccount
}

func (f *fakeStaleFinder) FindStaleInactive(_ context.Context, cutoff time.Time) ([]user.StaleAccount, error) {
	f.cutoff = cutoff
	return f.accounts, nil
}

var _ = Describe("User Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		repo      user.RepositoryAPI
		hasher    security.PasswordHasher
		publisher *recordingPublisher
		stale     *fakeStaleFinder
		now       time.Time
		service   *user.Service

		alice *user.User
		bob   *authz.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newTestDB()
		repo = userPostgres.NewUserRepository(db)
		hasher = newHasher()
		publisher = &recordingPublisher{}
		stale = &fakeStaleFinder{}
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		service = user.NewService(repo, hasher, discardLogger,
			user.WithPublisher(publisher),
			user.WithStaleFinder(stale),
			user.WithClock(func() time.Time { return now }),
			user.WithInactiveRetention(15*24*time.Hour))

		var err error
		alice, err = service.Register(ctx, registerDTO("alice"))
		Expect(err).NotTo(HaveOccurred())
		bob = seedAdmin(db, repo, hasher, "bob")
	})

	Describe("Register", func() {
		It("creates an active account with the user role", func() {
			Expect(alice.ID).NotTo(BeEmpty())
			Expect(alice.IsActive).To(BeTrue())
			Expect(alice.RoleNames()).To(Equal([]string{authz.RoleUser}))
			Expect(alice.EffectivePermissions().Names()).To(Equal([]string{"view-users"}))
			Expect(hasher.Compare(alice.PasswordHash, testPassword)).To(Succeed())
		})

		It("normalizes email and phone", func() {
			dto := registerDTO("carol")
			dto.Email = "Carol@X.com"
			dto.PhoneNumber = "+1 650-253-0000"

			u, err := service.Register(ctx, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Email).To(Equal("carol@x.com"))
			Expect(u.PhoneNumber).To(Equal("+16502530000"))
		})

		It("rejects a taken email with a conflict naming the field", func() {
			dto := registerDTO("alice2")
			dto.Email = "ALICE@x.com"

			_, err := service.Register(ctx, dto)
			Expect(internal.KindOf(err)).To(Equal(internal.KindConflict))

			appErr, _ := internal.IsAppError(err)
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors).To(HaveLen(1))
			Expect(details.Errors[0].Field).To(Equal("email"))
		})

		It("rejects invalid input before touching the store", func() {
			dto := registerDTO("a b")
			dto.Password = "weak"
			dto.DateOfBirth = "2999-01-01"

			_, err := service.Register(ctx, dto)
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))

			_, err = repo.GetByEmail(ctx, "a b@x.com")
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("rejects a password bcrypt cannot hash as a validation error", func() {
			dto := registerDTO("dave")
			dto.Password = "Aa1!" + strings.Repeat("x", 69)
			dto.PasswordConfirmation = dto.Password

			_, err := service.Register(ctx, dto)
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))

			_, err = repo.GetByEmail(ctx, dto.Email)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})
	})

	Describe("Create", func() {
		It("requires create-users", func() {
			_, err := service.Create(ctx, alice.Principal(), registerDTO("dave"))
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

			u, err := service.Create(ctx, bob, registerDTO("dave"))
			Expect(err).NotTo(HaveOccurred())
			Expect(u.RoleNames()).To(Equal([]string{authz.RoleUser}))
		})
	})

	Describe("Delete", func() {
		It("never lets a user delete themselves without delete-users", func() {
			err := service.Delete(ctx, alice.Principal(), alice.ID)
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

			_, err = service.Get(ctx, bob, alice.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets an admin delete another user", func() {
			Expect(service.Delete(ctx, bob, alice.ID)).To(Succeed())

			_, err := service.Get(ctx, bob, alice.ID)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("reports unknown users as not found", func() {
			err := service.Delete(ctx, bob, "00000000-0000-0000-0000-000000000000")
			Expect(internal.KindOf(err)).To(Equal(internal.KindNotFound))
		})
	})

	Describe("Update", func() {
		It("allows a user to update their own profile without update-users", func() {
			name := "Alicia"
			u, err := service.Update(ctx, alice.Principal(), alice.ID, user.UpdateUserDTO{FirstName: &name})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.FirstName).To(Equal("Alicia"))
		})

		It("denies updating someone else without update-users", func() {
			name := "Robert"
			_, err := service.Update(ctx, alice.Principal(), bob.ID, user.UpdateUserDTO{FirstName: &name})
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())
		})

		It("rejects a username already in use", func() {
			username := "bob"
			_, err := service.Update(ctx, alice.Principal(), alice.ID, user.UpdateUserDTO{Username: &username})
			Expect(internal.KindOf(err)).To(Equal(internal.KindConflict))
		})

		It("validates optional fields", func() {
			short := "Al"
			_, err := service.Update(ctx, alice.Principal(), alice.ID, user.UpdateUserDTO{FirstName: &short})
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})
	})

	Describe("Get and List", func() {
		It("requires view-users", func() {
			nobody := authz.NewPrincipal("nobody", nil, nil)
			_, err := service.Get(ctx, nobody, alice.ID)
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

			_, err = service.List(ctx, nobody, user.ListFilter{})
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())
		})

		It("filters by status and search term", func() {
			_, err := service.Inactivate(ctx, bob, alice.ID)
			Expect(err).NotTo(HaveOccurred())

			page, err := service.List(ctx, bob, user.ListFilter{Status: "inactive"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeEquivalentTo(1))
			Expect(page.Users[0].ID).To(Equal(alice.ID))
			Expect(page.Limit).To(Equal(15))

			page, err = service.List(ctx, bob, user.ListFilter{Search: "BOB"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeEquivalentTo(1))
			Expect(page.Users[0].Username).To(Equal("bob"))
		})

		It("rejects an unknown status filter", func() {
			_, err := service.List(ctx, bob, user.ListFilter{Status: "banned"})
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})
	})

	Describe("SyncPermissions", func() {
		It("replaces direct grants with exactly the given set", func() {
			u, err := service.SyncPermissions(ctx, bob, alice.ID, user.SyncPermissionsDTO{
				Permissions: []string{"create-users", "delete-users"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.DirectPermissions).To(ConsistOf("create-users", "delete-users"))

			u, err = service.SyncPermissions(ctx, bob, alice.ID, user.SyncPermissionsDTO{
				Permissions: []string{"create-users"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.DirectPermissions).To(ConsistOf("create-users"))
		})

		It("removes every direct grant on an empty set and keeps role permissions", func() {
			_, err := service.SyncPermissions(ctx, bob, alice.ID, user.SyncPermissionsDTO{
				Permissions: []string{"delete-users"},
			})
			Expect(err).NotTo(HaveOccurred())

			u, err := service.SyncPermissions(ctx, bob, alice.ID, user.SyncPermissionsDTO{Permissions: []string{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.DirectPermissions).To(BeEmpty())

			p := u.Principal()
			Expect(authz.Can(p, authz.DeleteUsers)).To(BeFalse())
			Expect(authz.Can(p, authz.ViewUsers)).To(BeTrue())
		})

		It("is never allowed as self-mutation", func() {
			_, err := service.SyncPermissions(ctx, alice.Principal(), alice.ID, user.SyncPermissionsDTO{
				Permissions: []string{"delete-users"},
			})
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())
		})

		It("needs revoke-permissions to remove a grant", func() {
			_, err := service.SyncPermissions(ctx, bob, alice.ID, user.SyncPermissionsDTO{
				Permissions: []string{"delete-users"},
			})
			Expect(err).NotTo(HaveOccurred())

			granter := authz.NewPrincipal("granter", nil, authz.NewSet(authz.GrantPermissions))
			_, err = service.SyncPermissions(ctx, granter, alice.ID, user.SyncPermissionsDTO{Permissions: []string{}})
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

			m, err := repo.GetByID(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.FromDataModel(m).DirectPermissions).To(ConsistOf("delete-users"))
		})

		It("rejects unknown permission names", func() {
			_, err := service.SyncPermissions(ctx, bob, alice.ID, user.SyncPermissionsDTO{
				Permissions: []string{"become-root"},
			})
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})

		It("reports an unknown target as not found", func() {
			_, err := service.SyncPermissions(ctx, bob, "00000000-0000-0000-0000-000000000000", user.SyncPermissionsDTO{
				Permissions: []string{},
			})
			Expect(internal.KindOf(err)).To(Equal(internal.KindNotFound))
		})
	})

	Describe("SetProfilePicture", func() {
		It("only applies to the caller's own account", func() {
			_, err := service.SetProfilePicture(ctx, bob, alice.ID, user.ProfilePictureDTO{Path: "avatars/a.png"})
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

			u, err := service.SetProfilePicture(ctx, alice.Principal(), alice.ID, user.ProfilePictureDTO{Path: "/avatars/a.png"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ProfilePicturePath).To(Equal("avatars/a.png"))
		})
	})

	Describe("Account lifecycle", func() {
		It("lets a user inactivate and reactivate themselves", func() {
			u, err := service.Inactivate(ctx, alice.Principal(), alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.IsActive).To(BeFalse())
			Expect(u.InactivatedAt).NotTo(BeNil())
			Expect(u.InactivatedAt.Equal(now)).To(BeTrue())

			u, err = service.Activate(ctx, alice.Principal(), alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.IsActive).To(BeTrue())
			Expect(u.InactivatedAt).To(BeNil())
		})

		It("treats inactivating an inactive account as a no-op", func() {
			_, err := service.Inactivate(ctx, bob, alice.ID)
			Expect(err).NotTo(HaveOccurred())

			first := now
			now = now.Add(time.Hour)

			u, err := service.Inactivate(ctx, bob, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.IsActive).To(BeFalse())
			Expect(u.InactivatedAt.Equal(first)).To(BeTrue())
			Expect(publisher.Events()).To(HaveLen(1))
		})

		It("denies inactivating another user without inactivate-users", func() {
			_, err := service.Inactivate(ctx, alice.Principal(), bob.ID)
			Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())
		})

		It("publishes a status change event", func() {
			_, err := service.Inactivate(ctx, bob, alice.ID)
			Expect(err).NotTo(HaveOccurred())

			published := publisher.Events()
			Expect(published).To(HaveLen(1))
			changed, ok := published[0].(*events.UserStatusChangedEvent)
			Expect(ok).To(BeTrue())
			Expect(changed.UserID).To(Equal(alice.ID))
			Expect(changed.ActorID).To(Equal(bob.ID))
			Expect(changed.Active).To(BeFalse())
		})

		It("purges accounts past the retention period", func() {
			stale.accounts = []user.StaleAccount{
				{ID: alice.ID, Email: alice.Email},
				{ID: "00000000-0000-0000-0000-000000000000"},
			}

			removed, err := service.PurgeStaleInactive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(1))
			Expect(stale.cutoff).To(Equal(now.Add(-15 * 24 * time.Hour)))

			_, err = repo.GetByID(ctx, alice.ID)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})
	})

	Describe("ChangePassword", func() {
		dto := func(current string) user.ChangePasswordDTO {
			return user.ChangePasswordDTO{
				Password:                current,
				NewPassword:             "N3w!password",
				NewPasswordConfirmation: "N3w!password",
			}
		}

		It("rejects a wrong current password", func() {
			err := service.ChangePassword(ctx, alice.Principal(), dto("not-it"))
			Expect(errors.Is(err, internal.ErrPasswordMismatch)).To(BeTrue())

			m, err := repo.GetByID(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(hasher.Compare(m.PasswordHash, testPassword)).To(Succeed())
		})

		It("stores the new password and leaves the account state alone", func() {
			_, err := service.Inactivate(ctx, alice.Principal(), alice.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.ChangePassword(ctx, alice.Principal(), dto(testPassword))).To(Succeed())

			m, err := repo.GetByID(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(hasher.Compare(m.PasswordHash, "N3w!password")).To(Succeed())
			Expect(m.IsActive).To(BeFalse())
		})

		It("rejects a new password longer than 72 bytes", func() {
			d := dto(testPassword)
			d.NewPassword = "Aa1!" + strings.Repeat("x", 69)
			d.NewPasswordConfirmation = d.NewPassword
			err := service.ChangePassword(ctx, alice.Principal(), d)
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})

		It("requires the confirmation to match", func() {
			d := dto(testPassword)
			d.NewPasswordConfirmation = "different"
			err := service.ChangePassword(ctx, alice.Principal(), d)
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})
	})
})
