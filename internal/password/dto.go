package password

import (
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/common/validation"
	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type ForgotPasswordDTO struct {
	Email string `json:"email"`
}

func (d ForgotPasswordDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, is.Email),
	))
}

type ResetPasswordDTO struct {
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (d ResetPasswordDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Password, ozzo.Required, ozzo.By(validation.StrongPassword)),
		ozzo.Field(&d.PasswordConfirmation, ozzo.Required, ozzo.By(validation.Equals(d.Password, "must match password"))),
	))
}
