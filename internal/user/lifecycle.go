package user

import (
	"context"
	"errors"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/events"
)

// Inactivate moves the target to Inactive. Repeating it keeps the first inactivated_at.
func (s *Service) Inactivate(ctx context.Context, actor *authz.Principal, id string) (*User, error) {
	return s.setActive(ctx, actor, id, false)
}

func (s *Service) Activate(ctx context.Context, actor *authz.Principal, id string) (*User, error) {
	return s.setActive(ctx, actor, id, true)
}

func (s *Service) setActive(ctx context.Context, actor *authz.Principal, id string, active bool) (*User, error) {
	perm := authz.InactivateUsers
	if active {
		perm = authz.ActivateUsers
	}
	if err := authz.Authorize(actor, perm, id); err != nil {
		s.logDenied(actor, perm, id)
		return nil, err
	}

	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var changed bool
	if active {
		changed = u.Activate(now)
	} else {
		changed = u.Inactivate(now)
	}
	if !changed {
		return u, nil
	}

	if err := s.repo.SetActive(ctx, id, u.IsActive, u.InactivatedAt, now); err != nil {
		s.logger.Error("failed to change account status", "error", err, "user_id", id, "active", active)
		return nil, storageError("failed to change account status", err)
	}

	s.logger.Info("account status changed", "user_id", id, "actor_id", actor.ID, "active", active)
	s.publish(ctx, events.NewUserStatusChangedEvent(id, actor.ID, active, now))
	return u, nil
}

// FindStaleInactive lists accounts inactive since cutoff or earlier.
func (s *Service) FindStaleInactive(ctx context.Context, cutoff time.Time) ([]StaleAccount, error) {
	if s.stale == nil {
		return nil, internal.NewInternalError("stale account query is not configured", nil)
	}
	accounts, err := s.stale.FindStaleInactive(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to query stale accounts", "error", err)
		return nil, storageError("failed to query stale accounts", err)
	}
	return accounts, nil
}

// PurgeStaleInactive deletes every account inactive for longer than the retention period
// and returns how many were removed.
func (s *Service) PurgeStaleInactive(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.inactiveRetention)
	accounts, err := s.FindStaleInactive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, account := range accounts {
		if err := s.repo.Delete(ctx, account.ID); err != nil {
			if errors.Is(err, internal.ErrUserNotFound) {
				continue
			}
			s.logger.Error("failed to purge stale account", "error", err, "user_id", account.ID)
			return removed, storageError("failed to purge stale account", err)
		}
		s.logger.Info("stale account purged",
			"user_id", account.ID,
			"inactivated_at", account.InactivatedAt)
		removed++
	}
	return removed, nil
}

// ChangePassword verifies the caller's current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, actor *authz.Principal, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if actor == nil {
		return internal.ErrMissingToken
	}

	m, err := s.repo.GetByID(ctx, actor.ID)
	if err != nil {
		return storageError("failed to load user", err)
	}
	if err := s.hasher.Compare(m.PasswordHash, dto.Password); err != nil {
		s.logger.Warn("password change rejected", "user_id", actor.ID, "reason", "current password mismatch")
		return internal.ErrPasswordMismatch
	}

	hash, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("failed to change password", err)
	}
	if err := s.repo.UpdatePassword(ctx, actor.ID, hash, s.now()); err != nil {
		s.logger.Error("failed to store new password", "error", err, "user_id", actor.ID)
		return storageError("failed to change password", err)
	}

	s.logger.Info("password changed", "user_id", actor.ID)
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
