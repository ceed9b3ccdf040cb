package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/password"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepository(db *gorm.DB) password.Repository {
	return &ResetTokenRepository{db: db}
}

// Upsert keeps exactly one row per email; the newest token wins.
func (r *ResetTokenRepository) Upsert(ctx context.Context, row *userDatamodel.PasswordResetToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "created_at", "expires_at"}),
		}).
		Create(row).Error
}

func (r *ResetTokenRepository) FindValid(ctx context.Context, digest string, now time.Time) (*userDatamodel.PasswordResetToken, error) {
	var row userDatamodel.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", digest, now).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrResetTokenInvalid
		}
		return nil, err
	}
	return &row, nil
}

// Consume is a compare-and-delete: only the transaction whose DELETE removes the row may change the password.
func (r *ResetTokenRepository) Consume(ctx context.Context, digest, passwordHash string, now time.Time) (string, error) {
	var email string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userDatamodel.PasswordResetToken
		if err := tx.Where("token = ? AND expires_at > ?", digest, now).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrResetTokenInvalid
			}
			return err
		}

		deleted := tx.Where("token = ? AND expires_at > ?", digest, now).Delete(&userDatamodel.PasswordResetToken{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected != 1 {
			return internal.ErrResetTokenInvalid
		}

		updated := tx.Model(&userDatamodel.User{}).
			Where("email = ?", row.Email).
			Updates(map[string]interface{}{
				"password_hash": passwordHash,
				"updated_at":    now,
			})
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return internal.ErrResetTokenInvalid
		}

		email = row.Email
		return nil
	})
	if err != nil {
		return "", err
	}
	return email, nil
}

func (r *ResetTokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&userDatamodel.PasswordResetToken{})
	return result.RowsAffected, result.Error
}
