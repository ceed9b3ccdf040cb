package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedAccessControl makes sure every known permission and the default roles exist. Safe to rerun.
func SeedAccessControl(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byName := map[authz.Permission]userDatamodel.Permission{}
		for _, p := range authz.All() {
			perm := userDatamodel.Permission{Name: p.String()}
			if err := tx.Where("name = ?", perm.Name).FirstOrCreate(&perm).Error; err != nil {
				return fmt.Errorf("seed permission %s: %w", p, err)
			}
			byName[p] = perm
		}

		for name, perms := range authz.DefaultRoles() {
			role := userDatamodel.Role{Name: name}
			if err := tx.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", name, err)
			}

			linked := make([]userDatamodel.Permission, 0, len(perms))
			for _, p := range perms {
				linked = append(linked, byName[p])
			}
			if err := tx.Model(&role).Association("Permissions").Replace(linked); err != nil {
				return fmt.Errorf("link permissions to role %s: %w", name, err)
			}
		}
		return nil
	})
}

type AdminSeed struct {
	Email        string
	Username     string
	PasswordHash string
}

// SeedAdmin creates the administrator account unless one with the same email exists.
// It reports whether a new account was created.
func SeedAdmin(ctx context.Context, db *gorm.DB, admin AdminSeed, now time.Time) (bool, error) {
	var existing userDatamodel.User
	err := db.WithContext(ctx).Where("email = ?", admin.Email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	var role userDatamodel.Role
	if err := db.WithContext(ctx).Where("name = ?", authz.RoleAdmin).First(&role).Error; err != nil {
		return false, fmt.Errorf("admin role missing, seed access control first: %w", err)
	}

	u := &userDatamodel.User{
		ID:           uuid.NewString(),
		FirstName:    "System",
		LastName:     "Administrator",
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Roles:        []userDatamodel.Role{role},
	}
	if err := db.WithContext(ctx).Omit("Roles.*").Create(u).Error; err != nil {
		return false, translate(err)
	}
	return true, nil
}
