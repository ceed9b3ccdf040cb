package user

import (
	"regexp"
	"strings"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/common/validation"
	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RegisterDTO is used by both public registration and admin creation.
type RegisterDTO struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	PhoneNumber          string `json:"phone_number"`
	DateOfBirth          string `json:"date_of_birth"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (d RegisterDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.FirstName, ozzo.Required, ozzo.Length(3, 30)),
		ozzo.Field(&d.LastName, ozzo.Required, ozzo.Length(3, 30)),
		ozzo.Field(&d.Username, ozzo.Required, ozzo.Length(3, 15), ozzo.By(validation.NoWhitespace), ozzo.Match(usernamePattern)),
		ozzo.Field(&d.Email, ozzo.Required, is.Email),
		ozzo.Field(&d.PhoneNumber, ozzo.By(validation.Phone)),
		ozzo.Field(&d.DateOfBirth, ozzo.By(validation.PastDate(time.Now))),
		ozzo.Field(&d.Password, ozzo.Required, ozzo.By(validation.StrongPassword)),
		ozzo.Field(&d.PasswordConfirmation, ozzo.Required, ozzo.By(validation.Equals(d.Password, "must match password"))),
	))
}

// UpdateUserDTO carries partial updates; nil fields are left untouched.
type UpdateUserDTO struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	DateOfBirth *string `json:"date_of_birth"`
}

func (d UpdateUserDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.FirstName, ozzo.NilOrNotEmpty, ozzo.Length(3, 30)),
		ozzo.Field(&d.LastName, ozzo.NilOrNotEmpty, ozzo.Length(3, 30)),
		ozzo.Field(&d.Username, ozzo.NilOrNotEmpty, ozzo.Length(3, 15), ozzo.By(validation.NoWhitespace), ozzo.Match(usernamePattern)),
		ozzo.Field(&d.Email, ozzo.NilOrNotEmpty, is.Email),
		ozzo.Field(&d.PhoneNumber, ozzo.By(validation.Phone)),
		ozzo.Field(&d.DateOfBirth, ozzo.By(validation.PastDate(time.Now))),
	))
}

type SyncPermissionsDTO struct {
	Permissions []string `json:"permissions"`
}

func (d SyncPermissionsDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Permissions, ozzo.NotNil),
	))
}

type ProfilePictureDTO struct {
	Path string `json:"path"`
}

func (d ProfilePictureDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Path, ozzo.Required, ozzo.Length(1, 512)),
	))
}

type ChangePasswordDTO struct {
	Password                string `json:"password"`
	NewPassword             string `json:"new_password"`
	NewPasswordConfirmation string `json:"new_password_confirmation"`
}

func (d ChangePasswordDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Password, ozzo.Required),
		ozzo.Field(&d.NewPassword, ozzo.Required, ozzo.By(validation.StrongPassword)),
		ozzo.Field(&d.NewPasswordConfirmation, ozzo.Required, ozzo.By(validation.Equals(d.NewPassword, "must match new_password"))),
	))
}

type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

const (
	defaultPageSize = 15
	maxPageSize     = 100
)

func (f ListFilter) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&f,
		ozzo.Field(&f.Status, ozzo.In("", "active", "inactive")),
		ozzo.Field(&f.Limit, ozzo.Min(0), ozzo.Max(maxPageSize)),
		ozzo.Field(&f.Offset, ozzo.Min(0)),
	))
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}
