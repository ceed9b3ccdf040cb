package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) withAccess(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Roles.Permissions").
		Preload("Permissions")
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User, roles []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(roles) > 0 {
			var found []userDatamodel.Role
			if err := tx.Where("name IN ?", roles).Find(&found).Error; err != nil {
				return err
			}
			if len(found) != len(roles) {
				return fmt.Errorf("roles %v are not seeded", roles)
			}
			u.Roles = found
		}
		u.Email = strings.ToLower(u.Email)
		return translate(tx.Omit("Roles.*").Create(u).Error)
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.withAccess(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.withAccess(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*userDatamodel.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&userDatamodel.User{})
	switch filter.Status {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*userDatamodel.User
	err := query.
		Preload("Roles.Permissions").
		Preload("Permissions").
		Order("created_at DESC").
		Order("id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) FindTaken(ctx context.Context, email, username, phone, excludeID string) ([]string, error) {
	var (
		conds []string
		args  []interface{}
	)
	if email != "" {
		conds = append(conds, "email = ?")
		args = append(args, strings.ToLower(email))
	}
	if username != "" {
		conds = append(conds, "username = ?")
		args = append(args, username)
	}
	if phone != "" {
		conds = append(conds, "phone_number = ?")
		args = append(args, phone)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where(strings.Join(conds, " OR "), args...)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var clashes []userDatamodel.User
	if err := query.Select("email", "username", "phone_number").Find(&clashes).Error; err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, c := range clashes {
		if email != "" && c.Email == strings.ToLower(email) {
			seen["email"] = true
		}
		if username != "" && c.Username == username {
			seen["username"] = true
		}
		if phone != "" && c.PhoneNumber != nil && *c.PhoneNumber == phone {
			seen["phone_number"] = true
		}
	}

	var taken []string
	for _, field := range []string{"email", "username", "phone_number"} {
		if seen[field] {
			taken = append(taken, field)
		}
	}
	return taken, nil
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	u.Email = strings.ToLower(u.Email)
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(u).Error)
}

// Delete removes the user together with its role and permission links.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u userDatamodel.User
		if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
			return translate(err)
		}
		return tx.Select(clause.Associations).Delete(&u).Error
	})
}

func (r *UserRepository) ReplacePermissions(ctx context.Context, id string, permissions []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u userDatamodel.User
		if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
			return translate(err)
		}

		assoc := tx.Model(&u).Association("Permissions")
		if len(permissions) == 0 {
			return assoc.Clear()
		}

		var found []userDatamodel.Permission
		if err := tx.Where("name IN ?", permissions).Find(&found).Error; err != nil {
			return err
		}
		if len(found) != len(permissions) {
			return fmt.Errorf("permissions %v are not seeded", permissions)
		}
		return assoc.Replace(found)
	})
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, inactivatedAt *time.Time, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":      active,
			"inactivated_at": inactivatedAt,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return internal.ErrUserNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return internal.ErrDuplicateRecord.WithCause(err)
	}
	return err
}
