package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/pkg/logger"
)

const maxBodyBytes = 1 << 20

var statusByKind = map[internal.ErrorKind]int{
	internal.KindValidation:            http.StatusUnprocessableEntity,
	internal.KindInvalidCredentials:    http.StatusUnauthorized,
	internal.KindUnauthenticated:       http.StatusUnauthorized,
	internal.KindAccountInactive:       http.StatusForbidden,
	internal.KindPermissionDenied:      http.StatusForbidden,
	internal.KindNotFound:              http.StatusNotFound,
	internal.KindConflict:              http.StatusConflict,
	internal.KindTokenExpiredOrInvalid: http.StatusBadRequest,
	internal.KindPasswordMismatch:      http.StatusBadRequest,
	internal.KindInternal:              http.StatusInternalServerError,
}

// StatusFor is the only place an ErrorKind becomes an HTTP status.
func StatusFor(kind internal.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteMessage writes {"message": msg}.
func (h *BaseHandler) WriteMessage(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, map[string]string{"message": message})
}

// WriteError writes an error that did not come from a service, e.g. a rate limit or unknown route.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Warn("http error", "status", status, "message", message)
	h.WriteJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": message,
		},
	})
}

// HandleServiceError maps a service failure to its status. Internal failures are logged with their
// cause and answered with a generic message.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		appErr = internal.NewInternalError("internal server error", err)
	}

	status := StatusFor(appErr.Kind)
	lg := logger.From(r.Context())
	if lg == nil {
		lg = h.Logger
	}

	if appErr.Kind == internal.KindInternal {
		lg.Error("request failed",
			"method", r.Method,
			"path", LogPath(r),
			"error", err)
		appErr = &internal.AppError{
			Kind:    internal.KindInternal,
			Code:    internal.ErrCodeInternal,
			Message: "internal server error",
		}
	} else {
		lg.Info("request rejected",
			"method", r.Method,
			"path", LogPath(r),
			"kind", appErr.Kind,
			"code", appErr.Code)
	}

	h.WriteJSON(w, status, internal.Response{Error: appErr})
}

// DecodeJSON reads a bounded JSON body into v.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.ErrInvalidBody.WithDetails("request body is empty")
		}
		return internal.ErrInvalidBody.WithCause(err)
	}
	return nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}
