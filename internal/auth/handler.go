package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/storage"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/pkg/logger"
)

const CookieName = "auth_token"

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*Session, error)
	Refresh(ctx context.Context, raw string) (*Session, error)
	Logout(ctx context.Context, claims *Claims) error
	Me(ctx context.Context, claims *Claims) (*user.User, error)
	Authenticate(raw string) (*Claims, error)
}

type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	urls    *storage.URLResolver
	cookie  CookieConfig
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, urls *storage.URLResolver, cookie CookieConfig) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
		urls:        urls,
		cookie:      cookie,
	}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	session, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeSession(w, session)
}

// Refresh handles POST /auth/refresh. The presented token may be expired but must be inside the refresh window.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.Refresh(r.Context(), TokenFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeSession(w, session)
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if err := h.Service.Logout(r.Context(), claims); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.WriteMessage(w, http.StatusOK, "successfully logged out")
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	u, err := h.Service.Me(r.Context(), claims)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u.ToResponse(h.urls))
}

func (h *Handler) writeSession(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    session.Token.Value,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: session.Token.Value,
		TokenType:   session.Token.TokenType,
		ExpiresIn:   session.Token.ExpiresIn,
		User:        session.User.ToResponse(h.urls),
	})
}

// AuthMiddleware resolves the caller from the bearer header or the auth cookie and stores the principal in the
// request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.Service.Authenticate(TokenFromRequest(r))
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}

		ctx := ContextWithClaims(r.Context(), claims)
		ctx = authz.ContextWithPrincipal(ctx, claims.Principal())
		ctx = internal.ContextWithUserID(ctx, claims.Subject)
		ctx = logger.With(ctx, "user_id", claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest prefers the Authorization header and falls back to the cookie.
func TokenFromRequest(r *http.Request) string {
	if token := transport.ExtractTokenFromHeader(r); token != "" {
		return token
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type claimsKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
