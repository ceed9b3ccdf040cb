package user

import (
	"sort"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/common/validation"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/storage"
)

type Role struct {
	Name        string
	Permissions []string
}

// User is the identity record. Roles and DirectPermissions are kept apart so a permission sync
// never touches what a role grants.
type User struct {
	ID                 string
	FirstName          string
	LastName           string
	Username           string
	Email              string
	PhoneNumber        string
	DateOfBirth        *time.Time
	PasswordHash       string
	ProfilePicturePath string
	IsActive           bool
	InactivatedAt      *time.Time
	Roles              []Role
	DirectPermissions  []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// EffectivePermissions is the union of role permissions and direct grants.
func (u *User) EffectivePermissions() authz.Set {
	set := authz.FromNames(u.DirectPermissions)
	for _, r := range u.Roles {
		set = set.Union(authz.FromNames(r.Permissions))
	}
	return set
}

func (u *User) Principal() *authz.Principal {
	return authz.NewPrincipal(u.ID, u.RoleNames(), u.EffectivePermissions())
}

// Inactivate reports whether the state changed; inactivating an inactive user is a no-op.
func (u *User) Inactivate(now time.Time) bool {
	if !u.IsActive {
		return false
	}
	u.IsActive = false
	u.InactivatedAt = &now
	u.UpdatedAt = now
	return true
}

func (u *User) Activate(now time.Time) bool {
	if u.IsActive {
		return false
	}
	u.IsActive = true
	u.InactivatedAt = nil
	u.UpdatedAt = now
	return true
}

type UserResponse struct {
	ID                string     `json:"id"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	DateOfBirth       string     `json:"date_of_birth,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url"`
	IsActive          bool       `json:"is_active"`
	InactivatedAt     *time.Time `json:"inactivated_at,omitempty"`
	Roles             []string   `json:"roles"`
	Permissions       []string   `json:"permissions"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (u *User) ToResponse(urls *storage.URLResolver) UserResponse {
	resp := UserResponse{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Username:          u.Username,
		Email:             u.Email,
		PhoneNumber:       u.PhoneNumber,
		ProfilePictureURL: urls.ProfilePictureURL(u.ProfilePicturePath, u.FirstName, u.LastName),
		IsActive:          u.IsActive,
		InactivatedAt:     u.InactivatedAt,
		Roles:             u.RoleNames(),
		Permissions:       u.EffectivePermissions().Names(),
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	if u.DateOfBirth != nil {
		resp.DateOfBirth = u.DateOfBirth.Format(validation.DateLayout)
	}
	return resp
}

// StaleAccount is a row of the stale-inactive query.
type StaleAccount struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	Username      string    `db:"username"`
	InactivatedAt time.Time `db:"inactivated_at"`
}

type Page struct {
	Users  []*User
	Total  int64
	Limit  int
	Offset int
}

func ToDataModel(u *User) *userDatamodel.User {
	m := &userDatamodel.User{
		ID:                 u.ID,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Username:           u.Username,
		Email:              u.Email,
		DateOfBirth:        u.DateOfBirth,
		PasswordHash:       u.PasswordHash,
		ProfilePicturePath: u.ProfilePicturePath,
		IsActive:           u.IsActive,
		InactivatedAt:      u.InactivatedAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
	if u.PhoneNumber != "" {
		phone := u.PhoneNumber
		m.PhoneNumber = &phone
	}
	return m
}

func FromDataModel(m *userDatamodel.User) *User {
	u := &User{
		ID:                 m.ID,
		FirstName:          m.FirstName,
		LastName:           m.LastName,
		Username:           m.Username,
		Email:              m.Email,
		DateOfBirth:        m.DateOfBirth,
		PasswordHash:       m.PasswordHash,
		ProfilePicturePath: m.ProfilePicturePath,
		IsActive:           m.IsActive,
		InactivatedAt:      m.InactivatedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.PhoneNumber != nil {
		u.PhoneNumber = *m.PhoneNumber
	}
	for _, r := range m.Roles {
		role := Role{Name: r.Name}
		for _, p := range r.Permissions {
			role.Permissions = append(role.Permissions, p.Name)
		}
		u.Roles = append(u.Roles, role)
	}
	for _, p := range m.Permissions {
		u.DirectPermissions = append(u.DirectPermissions, p.Name)
	}
	return u
}
