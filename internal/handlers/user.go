package handlers

import (
	"net/http"
	"strings"

	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides HTTP handlers for account administration.
type UserHandler struct {
	users UserService
	errs  errorWriter
}

func NewUserHandler(users UserService, log logging.Logger) *UserHandler {
	return &UserHandler{
		users: users,
		errs:  errorWriter{log: log, resource: "user", conflict: "email already exists"},
	}
}

// UserRouter registers user routes. Everything is admin-only except the
// profile endpoint, which the account owner may also call.
func UserRouter(r chi.Router, users UserService, auth *Authenticator, log logging.Logger) {
	handler := NewUserHandler(users, log)

	r.With(auth.RequireAuth).Patch("/{userID}/profile", handler.UpdateProfile)

	r.Group(func(r chi.Router) {
		r.Use(auth.Admin)
		r.Get("/", handler.ListUsers)
		r.Post("/", handler.CreateUser)
		r.Get("/stats/summary", handler.Stats)
		r.Get("/{userID}", handler.GetUser)
		r.Put("/{userID}", handler.UpdateUser)
		r.Delete("/{userID}", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	items, total, err := h.users.List(r.Context(), q, offset, limit)
	if err != nil {
		h.errs.during("list users").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, page, limit))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.errs.during("get user").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in rules.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.errs.during("create user").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in rules.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.users.Update(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil {
		h.errs.during("update user").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UpdateProfile lets users edit their own profile; admins may edit anyone's.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID := chi.URLParam(r, "userID")
	if caller.ID != userID && !caller.IsAdmin() {
		writeError(w, http.StatusForbidden, "you can only update your own profile")
		return
	}

	var in rules.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		h.errs.during("update profile").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.errs.during("delete user").write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Stats(r.Context())
	if err != nil {
		h.errs.during("user stats").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
