package password

import (
	"context"
	"net/http"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/auth"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/go-chi/chi"
)

const ResetTokenHeader = "token-reset"

type LedgerAPI interface {
	Generate(ctx context.Context, dto ForgotPasswordDTO) (string, error)
	Validate(ctx context.Context, token string) error
	Consume(ctx context.Context, token string, dto ResetPasswordDTO) (*auth.Session, error)
}

type Handler struct {
	*transport.BaseHandler
	Ledger LedgerAPI
	// exposeToken echoes the raw token in a response header; only for integrations without a mail channel.
	exposeToken bool
}

func NewHandler(baseHandler *transport.BaseHandler, ledger LedgerAPI, exposeToken bool) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Ledger:      ledger,
		exposeToken: exposeToken,
	}
}

// ForgotPassword handles POST /auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto ForgotPasswordDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	token, err := h.Ledger.Generate(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if h.exposeToken && token != "" {
		w.Header().Set(ResetTokenHeader, token)
	}
	h.WriteMessage(w, http.StatusOK, "if the email is registered, a password reset link has been sent")
}

// ValidateToken handles GET /auth/reset-password/{token}
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Validate(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "token is valid")
}

// ResetPassword handles POST /auth/reset-password/{token}
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	session, err := h.Ledger.Consume(r.Context(), chi.URLParam(r, "token"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"token": session.Token.Value})
}
