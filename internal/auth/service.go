package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
)

// UserStore is the slice of the identity store the gateway reads.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
}

// Session is a freshly minted token together with the user it was minted for.
type Session struct {
	Token AccessToken
	User  *user.User
}

type Service struct {
	users   UserStore
	tokens  TokenGenerator
	hasher  security.PasswordHasher
	revoked RevocationList
	logger  *slog.Logger
	now     func() time.Time

	// dummyHash is compared against when the email is unknown so both failure paths cost the same.
	dummyHash string
}

type Option func(*Service)

func WithRevocationList(l RevocationList) Option {
	return func(s *Service) { s.revoked = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, tokens TokenGenerator, hasher security.PasswordHasher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		revoked: noRevocation{},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if hash, err := hasher.Hash("dummy-password-for-timing"); err == nil {
		s.dummyHash = hash
	}
	return s
}

// Login verifies credentials, then refuses inactive accounts even when the password matched.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	m, err := s.users.GetByEmail(ctx, dto.Email)
	if err != nil {
		if !errors.Is(err, internal.ErrUserNotFound) {
			loginAttempts.WithLabelValues(outcomeError).Inc()
			s.logger.Error("failed to load user for login", "error", err)
			return nil, internal.NewInternalError("failed to authenticate", err)
		}
		_ = s.hasher.Compare(s.dummyHash, dto.Password)
		loginAttempts.WithLabelValues(outcomeInvalidCredentials).Inc()
		s.logger.Info("login failed", "reason", "unknown email")
		return nil, internal.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(m.PasswordHash, dto.Password); err != nil {
		loginAttempts.WithLabelValues(outcomeInvalidCredentials).Inc()
		s.logger.Info("login failed", "reason", "password mismatch", "user_id", m.ID)
		return nil, internal.ErrInvalidCredentials
	}

	u := user.FromDataModel(m)
	if !u.IsActive {
		loginAttempts.WithLabelValues(outcomeInactive).Inc()
		s.logger.Info("login refused", "reason", "account inactive", "user_id", u.ID)
		return nil, internal.ErrAccountInactive
	}

	session, err := s.mint(u)
	if err != nil {
		loginAttempts.WithLabelValues(outcomeError).Inc()
		return nil, err
	}

	loginAttempts.WithLabelValues(outcomeSuccess).Inc()
	s.logger.Info("login succeeded", "user_id", u.ID, "token_id", session.Token.ID)
	return session, nil
}

// Refresh re-mints the token from the current role and permission state.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, internal.ErrMissingToken
	}

	claims, err := s.tokens.ParseForRefresh(raw)
	if err != nil {
		tokenRefreshes.WithLabelValues(outcomeInvalidToken).Inc()
		s.logger.Info("token refresh rejected", "reason", err.Error())
		return nil, internal.ErrTokenInvalid
	}
	if s.revoked.IsRevoked(claims.ID) {
		tokenRefreshes.WithLabelValues(outcomeInvalidToken).Inc()
		s.logger.Info("token refresh rejected", "reason", "revoked", "token_id", claims.ID)
		return nil, internal.ErrTokenInvalid
	}

	m, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			tokenRefreshes.WithLabelValues(outcomeInvalidToken).Inc()
			return nil, internal.ErrTokenInvalid
		}
		tokenRefreshes.WithLabelValues(outcomeError).Inc()
		return nil, internal.NewInternalError("failed to refresh token", err)
	}

	u := user.FromDataModel(m)
	if !u.IsActive {
		tokenRefreshes.WithLabelValues(outcomeInactive).Inc()
		return nil, internal.ErrAccountInactive
	}

	session, err := s.mint(u)
	if err != nil {
		tokenRefreshes.WithLabelValues(outcomeError).Inc()
		return nil, err
	}

	s.revoke(claims)
	tokenRefreshes.WithLabelValues(outcomeSuccess).Inc()
	s.logger.Info("token refreshed", "user_id", u.ID, "old_token_id", claims.ID, "token_id", session.Token.ID)
	return session, nil
}

// Logout is client-side unless a revocation list is installed, in which case the token id is denied until it
// could no longer be used or refreshed.
func (s *Service) Logout(_ context.Context, claims *Claims) error {
	if claims == nil {
		return internal.ErrMissingToken
	}
	s.revoke(claims)
	s.logger.Info("logged out", "user_id", claims.Subject, "token_id", claims.ID)
	return nil
}

// Me returns the stored user, not the token snapshot.
func (s *Service) Me(ctx context.Context, claims *Claims) (*user.User, error) {
	if claims == nil {
		return nil, internal.ErrMissingToken
	}
	m, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}
	return user.FromDataModel(m), nil
}

// Authenticate turns a raw bearer value into verified claims.
func (s *Service) Authenticate(raw string) (*Claims, error) {
	if raw == "" {
		return nil, internal.ErrMissingToken
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, internal.ErrTokenInvalid.WithCause(err)
	}
	if s.revoked.IsRevoked(claims.ID) {
		return nil, internal.ErrTokenInvalid
	}
	return claims, nil
}

// IssueFor mints a session for an account that proved itself another way, such as a password reset.
func (s *Service) IssueFor(ctx context.Context, userID string) (*Session, error) {
	m, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}
	u := user.FromDataModel(m)
	if !u.IsActive {
		return nil, internal.ErrAccountInactive
	}
	return s.mint(u)
}

func (s *Service) mint(u *user.User) (*Session, error) {
	token, err := s.tokens.Mint(u.ID, u.RoleNames(), u.EffectivePermissions().Names())
	if err != nil {
		s.logger.Error("failed to mint token", "error", err, "user_id", u.ID)
		return nil, internal.NewInternalError("failed to issue token", err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *Service) revoke(claims *Claims) {
	until := s.now().Add(s.tokens.RefreshWindow())
	if claims.IssuedAt != nil {
		until = claims.IssuedAt.Add(s.tokens.RefreshWindow())
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.After(until) {
		until = claims.ExpiresAt.Time
	}
	s.revoked.Revoke(claims.ID, until)
}
