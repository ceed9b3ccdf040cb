package password_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/auth"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/password"
	passwordPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/password/postgres"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	userPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type delivery struct {
	email     string
	token     string
	link      string
	expiresAt time.Time
}

type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
}

func (n *recordingNotifier) NotifyReset(_ context.Context, email, token, link string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, delivery{email: email, token: token, link: link, expiresAt: expiresAt})
	return n.err
}

func (n *recordingNotifier) Last() delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deliveries[len(n.deliveries)-1]
}

type stubSessions struct {
	issued []string
}

func (s *stubSessions) IssueFor(_ context.Context, userID string) (*auth.Session, error) {
	s.issued = append(s.issued, userID)
	return &auth.Session{Token: auth.AccessToken{Value: "session-" + userID, TokenType: auth.TokenTypeBearer}}, nil
}

type failingRepo struct {
	password.Repository
}

func (failingRepo) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection reset")
}

func resetDTO(pw string) password.ResetPasswordDTO {
	return password.ResetPasswordDTO{Password: pw, PasswordConfirmation: pw}
}

var _ = Describe("Password Reset Ledger", func() {
	const (
		oldPassword = "0ldPass!word"
		newPassword = "N3wPass!word"
	)

	var (
		ctx      context.Context
		users    user.RepositoryAPI
		resets   password.Repository
		hasher   security.PasswordHasher
		notifier *recordingNotifier
		sessions *stubSessions
		now      time.Time
		ledger   *password.Ledger
		owner    *userDatamodel.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		db := newTestDB()
		users = userPostgres.NewUserRepository(db)
		resets = passwordPostgres.NewResetTokenRepository(db)
		hasher = security.NewBcryptHasher(4)
		notifier = &recordingNotifier{}
		sessions = &stubSessions{}
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		hash, err := hasher.Hash(oldPassword)
		Expect(err).NotTo(HaveOccurred())
		owner = createAccount(users, "dana", hash, true)

		ledger = password.NewLedger(resets, users, hasher, notifier, sessions, discardLogger,
			password.WithClock(func() time.Time { return now }),
			password.WithFrontendURL("https://app.example.com"),
		)
	})

	storedHash := func() string {
		m, err := users.GetByID(ctx, owner.ID)
		Expect(err).NotTo(HaveOccurred())
		return m.PasswordHash
	}

	Describe("Generate", func() {
		It("issues a token, hands it to the notifier, and builds the reset link", func() {
			token, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())

			sent := notifier.Last()
			Expect(sent.email).To(Equal("dana@x.com"))
			Expect(sent.token).To(Equal(token))
			Expect(sent.link).To(Equal("https://app.example.com/reset-password/" + token))
			Expect(sent.expiresAt).To(Equal(now.Add(10 * time.Minute)))
		})

		It("matches the email case-insensitively", func() {
			token, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "DANA@x.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())
		})

		It("returns nothing for an unknown email without erroring", func() {
			token, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "nobody@x.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(BeEmpty())
			Expect(notifier.deliveries).To(BeEmpty())
		})

		It("rejects a malformed email", func() {
			_, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "not-an-email"})
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})

		It("still succeeds when delivery fails", func() {
			notifier.err = errors.New("smtp down")
			token, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.Validate(ctx, token)).To(Succeed())
		})

		It("invalidates the previous token for the same email", func() {
			first, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())
			second, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())

			Expect(second).NotTo(Equal(first))
			Expect(ledger.Validate(ctx, first)).To(MatchError(internal.ErrResetTokenInvalid))
			Expect(ledger.Validate(ctx, second)).To(Succeed())
		})
	})

	Describe("Validate", func() {
		var token string

		BeforeEach(func() {
			var err error
			token, err = ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts the token just before the ten minute mark", func() {
			now = now.Add(9*time.Minute + 59*time.Second)
			Expect(ledger.Validate(ctx, token)).To(Succeed())
		})

		It("rejects the token just after the ten minute mark", func() {
			now = now.Add(10*time.Minute + time.Second)
			err := ledger.Validate(ctx, token)
			Expect(err).To(MatchError(internal.ErrResetTokenInvalid))
			Expect(internal.KindOf(err)).To(Equal(internal.KindTokenExpiredOrInvalid))
		})

		It("rejects unknown and empty tokens", func() {
			Expect(ledger.Validate(ctx, "made-up")).To(MatchError(internal.ErrResetTokenInvalid))
			Expect(ledger.Validate(ctx, "")).To(MatchError(internal.ErrResetTokenInvalid))
		})

		It("does not consume the token", func() {
			Expect(ledger.Validate(ctx, token)).To(Succeed())
			Expect(ledger.Validate(ctx, token)).To(Succeed())
		})
	})

	Describe("Consume", func() {
		var token string

		BeforeEach(func() {
			var err error
			token, err = ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets the new password and logs the owner in", func() {
			session, err := ledger.Consume(ctx, token, resetDTO(newPassword))
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Token.Value).To(Equal("session-" + owner.ID))
			Expect(sessions.issued).To(ConsistOf(owner.ID))

			Expect(hasher.Compare(storedHash(), newPassword)).To(Succeed())
			Expect(hasher.Compare(storedHash(), oldPassword)).NotTo(Succeed())
		})

		It("is single use", func() {
			_, err := ledger.Consume(ctx, token, resetDTO(newPassword))
			Expect(err).NotTo(HaveOccurred())

			_, err = ledger.Consume(ctx, token, resetDTO("An0ther!pass"))
			Expect(err).To(MatchError(internal.ErrResetTokenInvalid))
			Expect(hasher.Compare(storedHash(), newPassword)).To(Succeed())
		})

		It("rejects a mismatched confirmation without burning the token", func() {
			_, err := ledger.Consume(ctx, token, password.ResetPasswordDTO{
				Password:             newPassword,
				PasswordConfirmation: "Different!1",
			})
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
			Expect(ledger.Validate(ctx, token)).To(Succeed())
		})

		It("rejects a weak password", func() {
			_, err := ledger.Consume(ctx, token, resetDTO("weak"))
			Expect(internal.KindOf(err)).To(Equal(internal.KindValidation))
		})

		It("rejects an expired token and keeps the old password", func() {
			now = now.Add(11 * time.Minute)
			_, err := ledger.Consume(ctx, token, resetDTO(newPassword))
			Expect(err).To(MatchError(internal.ErrResetTokenInvalid))
			Expect(hasher.Compare(storedHash(), oldPassword)).To(Succeed())
		})

		It("refuses inactive accounts and leaves the token in place", func() {
			hash, err := hasher.Hash(oldPassword)
			Expect(err).NotTo(HaveOccurred())
			createAccount(users, "erin", hash, false)

			erinToken, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "erin@x.com"})
			Expect(err).NotTo(HaveOccurred())

			_, err = ledger.Consume(ctx, erinToken, resetDTO(newPassword))
			Expect(err).To(MatchError(internal.ErrAccountInactive))
			Expect(ledger.Validate(ctx, erinToken)).To(Succeed())
			Expect(sessions.issued).To(BeEmpty())
		})
	})

	Describe("PurgeExpired", func() {
		It("removes only expired tokens", func() {
			stale, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "dana@x.com"})
			Expect(err).NotTo(HaveOccurred())

			hash, err := hasher.Hash(oldPassword)
			Expect(err).NotTo(HaveOccurred())
			createAccount(users, "frank", hash, true)

			now = now.Add(8 * time.Minute)
			fresh, err := ledger.Generate(ctx, password.ForgotPasswordDTO{Email: "frank@x.com"})
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(3 * time.Minute)
			purged, err := ledger.PurgeExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(purged).To(Equal(int64(1)))

			Expect(ledger.Validate(ctx, stale)).To(MatchError(internal.ErrResetTokenInvalid))
			Expect(ledger.Validate(ctx, fresh)).To(Succeed())
		})

		It("reports storage failures as internal errors", func() {
			broken := password.NewLedger(failingRepo{}, users, hasher, notifier, sessions, discardLogger)
			_, err := broken.PurgeExpired(ctx)
			Expect(internal.KindOf(err)).To(Equal(internal.KindInternal))
		})
	})
})
