package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/storage"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*User, error)
	Create(ctx context.Context, actor *authz.Principal, dto RegisterDTO) (*User, error)
	Get(ctx context.Context, actor *authz.Principal, id string) (*User, error)
	List(ctx context.Context, actor *authz.Principal, filter ListFilter) (*Page, error)
	Update(ctx context.Context, actor *authz.Principal, id string, dto UpdateUserDTO) (*User, error)
	Delete(ctx context.Context, actor *authz.Principal, id string) error
	SyncPermissions(ctx context.Context, actor *authz.Principal, id string, dto SyncPermissionsDTO) (*User, error)
	SetProfilePicture(ctx context.Context, actor *authz.Principal, id string, dto ProfilePictureDTO) (*User, error)
	Inactivate(ctx context.Context, actor *authz.Principal, id string) (*User, error)
	Activate(ctx context.Context, actor *authz.Principal, id string) (*User, error)
	ChangePassword(ctx context.Context, actor *authz.Principal, dto ChangePasswordDTO) error
	URLs() *storage.URLResolver
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

type dataResponse struct {
	Data interface{} `json:"data"`
}

type listMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type listResponse struct {
	Data []UserResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

func principal(r *http.Request) *authz.Principal {
	p, _ := authz.PrincipalFromContext(r.Context())
	return p
}

func (h *Handler) writeUser(w http.ResponseWriter, status int, u *User) {
	h.WriteJSON(w, status, dataResponse{Data: u.ToResponse(h.Service.URLs())})
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", u.ID)
	h.writeUser(w, http.StatusCreated, u)
}

// Create handles POST /users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.Create(r.Context(), principal(r), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", u.ID)
	h.writeUser(w, http.StatusCreated, u)
}

// List handles GET /users?status=&search=&limit=&offset=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}

	page, err := h.Service.List(r.Context(), principal(r), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	resp := listResponse{
		Data: make([]UserResponse, 0, len(page.Users)),
		Meta: listMeta{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	}
	for _, u := range page.Users {
		resp.Data = append(resp.Data, u.ToResponse(h.Service.URLs()))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /users/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeUser(w, http.StatusOK, u)
}

// Update handles PUT /users/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var dto UpdateUserDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.Update(r.Context(), principal(r), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeUser(w, http.StatusOK, u)
}

// Delete handles DELETE /users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Inactivate handles POST /users/{id}/inactivate
func (h *Handler) Inactivate(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Inactivate(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeUser(w, http.StatusOK, u)
}

// Activate handles POST /users/{id}/activate
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Activate(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeUser(w, http.StatusOK, u)
}

// SyncPermissions handles PUT /users/{id}/permissions
func (h *Handler) SyncPermissions(w http.ResponseWriter, r *http.Request) {
	var dto SyncPermissionsDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if _, err := h.Service.SyncPermissions(r.Context(), principal(r), chi.URLParam(r, "id"), dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "permissions synced successfully")
}

// SetProfilePicture handles PUT /users/{id}/profile-picture
func (h *Handler) SetProfilePicture(w http.ResponseWriter, r *http.Request) {
	var dto ProfilePictureDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.SetProfilePicture(r.Context(), principal(r), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.writeUser(w, http.StatusOK, u)
}

// ChangePassword handles POST /auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var dto ChangePasswordDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), principal(r), dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "password changed successfully")
}

// queryInt treats malformed numbers as unset.
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
