package password

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/auth"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tokenBytes = 32

var resetOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "user_management",
	Subsystem: "password_reset",
	Name:      "operations_total",
	Help:      "Password reset ledger operations by kind and outcome.",
}, []string{"operation", "outcome"})

// Repository stores reset tokens by digest, one row per email.
type Repository interface {
	Upsert(ctx context.Context, row *userDatamodel.PasswordResetToken) error
	FindValid(ctx context.Context, digest string, now time.Time) (*userDatamodel.PasswordResetToken, error)
	// Consume deletes the row and stores passwordHash on its owner in one transaction.
	Consume(ctx context.Context, digest, passwordHash string, now time.Time) (string, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
}

type SessionIssuer interface {
	IssueFor(ctx context.Context, userID string) (*auth.Session, error)
}

type Ledger struct {
	repo        Repository
	users       UserLookup
	hasher      security.PasswordHasher
	notifier    Notifier
	sessions    SessionIssuer
	logger      *slog.Logger
	ttl         time.Duration
	frontendURL string
	now         func() time.Time
}

type Option func(*Ledger)

func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) { l.ttl = ttl }
}

func WithFrontendURL(u string) Option {
	return func(l *Ledger) { l.frontendURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(repo Repository, users UserLookup, hasher security.PasswordHasher, notifier Notifier, sessions SessionIssuer, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		repo:     repo,
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		sessions: sessions,
		logger:   logger,
		ttl:      internal.DefaultResetTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Generate replaces the live token for the email and hands it to the notifier. Unknown emails return ""
// and no error, so callers cannot tell whether an account exists.
func (l *Ledger) Generate(ctx context.Context, dto ForgotPasswordDTO) (string, error) {
	if err := dto.Validate(); err != nil {
		return "", err
	}

	m, err := l.users.GetByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			resetOperations.WithLabelValues("generate", "unknown_email").Inc()
			l.logger.Info("password reset requested for unknown email")
			return "", nil
		}
		resetOperations.WithLabelValues("generate", "error").Inc()
		return "", internal.NewInternalError("failed to request password reset", err)
	}

	token, err := security.GenerateRandomToken(tokenBytes)
	if err != nil {
		return "", internal.NewInternalError("failed to generate reset token", err)
	}

	now := l.now()
	row := &userDatamodel.PasswordResetToken{
		Email:     m.Email,
		Token:     digest(token),
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}
	if err := l.repo.Upsert(ctx, row); err != nil {
		resetOperations.WithLabelValues("generate", "error").Inc()
		l.logger.Error("failed to store reset token", "error", err, "user_id", m.ID)
		return "", internal.NewInternalError("failed to request password reset", err)
	}

	if err := l.notifier.NotifyReset(ctx, m.Email, token, l.resetLink(token), row.ExpiresAt); err != nil {
		l.logger.Error("failed to deliver reset token", "error", err, "user_id", m.ID)
	}

	resetOperations.WithLabelValues("generate", "issued").Inc()
	l.logger.Info("password reset token issued", "user_id", m.ID, "expires_at", row.ExpiresAt)
	return token, nil
}

// Validate has no side effects.
func (l *Ledger) Validate(ctx context.Context, token string) error {
	_, err := l.find(ctx, token)
	return err
}

// Consume sets the new password and burns the token atomically, then logs the owner in.
func (l *Ledger) Consume(ctx context.Context, token string, dto ResetPasswordDTO) (*auth.Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	row, err := l.find(ctx, token)
	if err != nil {
		return nil, err
	}

	owner, err := l.users.GetByEmail(ctx, row.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrResetTokenInvalid
		}
		return nil, internal.NewInternalError("failed to reset password", err)
	}
	if !owner.IsActive {
		return nil, internal.ErrAccountInactive
	}

	hash, err := l.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to reset password", err)
	}

	if _, err := l.repo.Consume(ctx, digest(token), hash, l.now()); err != nil {
		if errors.Is(err, internal.ErrResetTokenInvalid) {
			resetOperations.WithLabelValues("consume", "invalid").Inc()
			return nil, err
		}
		resetOperations.WithLabelValues("consume", "error").Inc()
		l.logger.Error("failed to consume reset token", "error", err, "user_id", owner.ID)
		return nil, internal.NewInternalError("failed to reset password", err)
	}

	resetOperations.WithLabelValues("consume", "success").Inc()
	l.logger.Info("password reset completed", "user_id", owner.ID)
	return l.sessions.IssueFor(ctx, owner.ID)
}

// PurgeExpired removes every token whose expiry has passed and reports how many went.
func (l *Ledger) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := l.repo.PurgeExpired(ctx, l.now())
	if err != nil {
		l.logger.Error("failed to purge reset tokens", "error", err)
		return 0, internal.NewInternalError("failed to purge reset tokens", err)
	}
	l.logger.Info("expired reset tokens purged", "count", n)
	return n, nil
}

func (l *Ledger) find(ctx context.Context, token string) (*userDatamodel.PasswordResetToken, error) {
	if token == "" {
		return nil, internal.ErrResetTokenInvalid
	}
	row, err := l.repo.FindValid(ctx, digest(token), l.now())
	if err != nil {
		if errors.Is(err, internal.ErrResetTokenInvalid) {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to look up reset token", err)
	}
	return row, nil
}

func (l *Ledger) resetLink(token string) string {
	if l.frontendURL == "" {
		return ""
	}
	link, err := url.JoinPath(l.frontendURL, "reset-password", token)
	if err != nil {
		return ""
	}
	return link
}

// digest is what gets stored, so a leaked table cannot be replayed.
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
