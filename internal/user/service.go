package user

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/common/validation"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/events"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/storage"
	"github.com/google/uuid"
)

type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User, roles []string) error
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	List(ctx context.Context, filter ListFilter) ([]*userDatamodel.User, int64, error)
	// FindTaken returns which of "email", "username" and "phone_number" already belong to another user.
	FindTaken(ctx context.Context, email, username, phone, excludeID string) ([]string, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	Delete(ctx context.Context, id string) error
	ReplacePermissions(ctx context.Context, id string, permissions []string) error
	SetActive(ctx context.Context, id string, active bool, inactivatedAt *time.Time, now time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
}

type StaleFinder interface {
	FindStaleInactive(ctx context.Context, cutoff time.Time) ([]StaleAccount, error)
}

type Service struct {
	repo              RepositoryAPI
	stale             StaleFinder
	hasher            security.PasswordHasher
	events            events.Publisher
	urls              *storage.URLResolver
	logger            *slog.Logger
	now               func() time.Time
	inactiveRetention time.Duration
}

type Option func(*Service)

func WithStaleFinder(f StaleFinder) Option {
	return func(s *Service) { s.stale = f }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithURLResolver(r *storage.URLResolver) Option {
	return func(s *Service) { s.urls = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithInactiveRetention(d time.Duration) Option {
	return func(s *Service) { s.inactiveRetention = d }
}

func NewService(repo RepositoryAPI, hasher security.PasswordHasher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		hasher:            hasher,
		logger:            logger,
		urls:              storage.NewURLResolver(""),
		now:               time.Now,
		inactiveRetention: internal.DefaultInactiveRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) URLs() *storage.URLResolver {
	return s.urls
}

// Register is the public sign-up path.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, dto, "")
}

func (s *Service) Create(ctx context.Context, actor *authz.Principal, dto RegisterDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CreateUsers); err != nil {
		s.logDenied(actor, authz.CreateUsers, "")
		return nil, err
	}
	return s.create(ctx, dto, actor.ID)
}

func (s *Service) create(ctx context.Context, dto RegisterDTO, actorID string) (*User, error) {
	email := normalizeEmail(dto.Email)
	phone, _ := normalizePhone(dto.PhoneNumber)

	if err := s.ensureUnique(ctx, email, dto.Username, phone, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, internal.NewInternalError("failed to create user", err)
	}

	now := s.now()
	u := &User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(dto.FirstName),
		LastName:     strings.TrimSpace(dto.LastName),
		Username:     dto.Username,
		Email:        email,
		PhoneNumber:  phone,
		DateOfBirth:  parseDate(dto.DateOfBirth),
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, ToDataModel(u), []string{authz.RoleUser}); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", email)
		return nil, storageError("failed to create user", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "created_by", actorID)
	return s.load(ctx, u.ID)
}

func (s *Service) Get(ctx context.Context, actor *authz.Principal, id string) (*User, error) {
	if err := authz.Authorize(actor, authz.ViewUsers, id); err != nil {
		s.logDenied(actor, authz.ViewUsers, id)
		return nil, err
	}
	return s.load(ctx, id)
}

// GetByID loads a user without an authorization check; callers own the decision.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.load(ctx, id)
}

func (s *Service) List(ctx context.Context, actor *authz.Principal, filter ListFilter) (*Page, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ViewUsers); err != nil {
		s.logDenied(actor, authz.ViewUsers, "")
		return nil, err
	}

	filter = filter.normalized()
	models, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, storageError("failed to list users", err)
	}

	page := &Page{Total: total, Limit: filter.Limit, Offset: filter.Offset, Users: make([]*User, 0, len(models))}
	for _, m := range models {
		page.Users = append(page.Users, FromDataModel(m))
	}
	return page, nil
}

func (s *Service) Update(ctx context.Context, actor *authz.Principal, id string, dto UpdateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.UpdateUsers, id); err != nil {
		s.logDenied(actor, authz.UpdateUsers, id)
		return nil, err
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to load user", err)
	}

	var email, username, phone string
	if dto.FirstName != nil {
		m.FirstName = strings.TrimSpace(*dto.FirstName)
	}
	if dto.LastName != nil {
		m.LastName = strings.TrimSpace(*dto.LastName)
	}
	if dto.Username != nil && *dto.Username != m.Username {
		username = *dto.Username
		m.Username = username
	}
	if dto.Email != nil && normalizeEmail(*dto.Email) != m.Email {
		email = normalizeEmail(*dto.Email)
		m.Email = email
	}
	if dto.PhoneNumber != nil {
		if *dto.PhoneNumber == "" {
			m.PhoneNumber = nil
		} else if normalized, _ := normalizePhone(*dto.PhoneNumber); m.PhoneNumber == nil || *m.PhoneNumber != normalized {
			phone = normalized
			m.PhoneNumber = &normalized
		}
	}
	if dto.DateOfBirth != nil {
		m.DateOfBirth = parseDate(*dto.DateOfBirth)
	}

	if err := s.ensureUnique(ctx, email, username, phone, id); err != nil {
		return nil, err
	}

	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		s.logger.Error("failed to update user", "error", err, "user_id", id)
		return nil, storageError("failed to update user", err)
	}

	s.logger.Info("user updated", "user_id", id, "actor_id", actor.ID)
	return FromDataModel(m), nil
}

// Delete never allows self-mutation: removing your own account needs delete-users.
func (s *Service) Delete(ctx context.Context, actor *authz.Principal, id string) error {
	if err := authz.Authorize(actor, authz.DeleteUsers, id); err != nil {
		s.logDenied(actor, authz.DeleteUsers, id)
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", "error", err, "user_id", id)
		return storageError("failed to delete user", err)
	}
	s.logger.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}

// SyncPermissions replaces the target's direct grants with exactly dto.Permissions.
// Adding needs grant-permissions, removing needs revoke-permissions.
func (s *Service) SyncPermissions(ctx context.Context, actor *authz.Principal, id string, dto SyncPermissionsDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	desired, err := authz.ParseSet(dto.Permissions)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, internal.ErrMissingToken
	}
	if !authz.Can(actor, authz.GrantPermissions) && !authz.Can(actor, authz.RevokePermissions) {
		s.logDenied(actor, authz.GrantPermissions, id)
		return nil, internal.ErrPermissionDenied
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to load user", err)
	}

	current := FromDataModel(m).directSet()
	added := desired.Diff(current)
	removed := current.Diff(desired)
	if len(added) > 0 {
		if err := authz.Require(actor, authz.GrantPermissions); err != nil {
			s.logDenied(actor, authz.GrantPermissions, id)
			return nil, err
		}
	}
	if len(removed) > 0 {
		if err := authz.Require(actor, authz.RevokePermissions); err != nil {
			s.logDenied(actor, authz.RevokePermissions, id)
			return nil, err
		}
	}

	if err := s.repo.ReplacePermissions(ctx, id, desired.Names()); err != nil {
		s.logger.Error("failed to sync permissions", "error", err, "user_id", id)
		return nil, storageError("failed to sync permissions", err)
	}

	s.logger.Info("permissions synced",
		"user_id", id,
		"actor_id", actor.ID,
		"granted", added.Names(),
		"revoked", removed.Names())
	return s.load(ctx, id)
}

// SetProfilePicture only ever applies to the caller's own account.
func (s *Service) SetProfilePicture(ctx context.Context, actor *authz.Principal, id string, dto ProfilePictureDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, internal.ErrMissingToken
	}
	if actor.ID != id {
		s.logger.Warn("profile picture change denied", "actor_id", actor.ID, "user_id", id)
		return nil, internal.ErrPermissionDenied
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to load user", err)
	}
	m.ProfilePicturePath = strings.TrimLeft(dto.Path, "/")
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, storageError("failed to update profile picture", err)
	}
	return FromDataModel(m), nil
}

func (s *Service) load(ctx context.Context, id string) (*User, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to load user", err)
	}
	return FromDataModel(m), nil
}

func (s *Service) ensureUnique(ctx context.Context, email, username, phone, excludeID string) error {
	if email == "" && username == "" && phone == "" {
		return nil
	}
	taken, err := s.repo.FindTaken(ctx, email, username, phone, excludeID)
	if err != nil {
		s.logger.Error("failed to check uniqueness", "error", err)
		return storageError("failed to check uniqueness", err)
	}
	if len(taken) == 0 {
		return nil
	}

	details := internal.ValidationErrors{}
	for _, field := range taken {
		details.Errors = append(details.Errors, internal.ValidationError{
			Field:   field,
			Message: "has already been taken",
			Code:    string(takenCode(field)),
		})
	}
	return internal.NewConflictError("user already exists", takenCode(taken[0])).WithDetails(details)
}

func (s *Service) logDenied(actor *authz.Principal, perm authz.Permission, target string) {
	s.logger.Warn("permission denied",
		"principal", actor,
		"permission", perm.String(),
		"target_user_id", target)
}

func (u *User) directSet() authz.Set {
	return authz.FromNames(u.DirectPermissions)
}

func takenCode(field string) internal.ErrorCode {
	switch field {
	case "email":
		return internal.ErrCodeEmailTaken
	case "username":
		return internal.ErrCodeUsernameTaken
	case "phone_number":
		return internal.ErrCodePhoneTaken
	default:
		return internal.ErrCodeDuplicate
	}
}

// storageError passes typed failures through and hides everything else behind an internal error.
func storageError(message string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewInternalError(message, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	return validation.NormalizePhone(raw)
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(validation.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
