package auth

import (
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/common/validation"
	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	return validation.Translate(ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, is.Email),
		ozzo.Field(&d.Password, ozzo.Required),
	))
}

type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        interface{} `json:"user,omitempty"`
}
