package handler

import (
	"net/http"
)

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req.FullName, req.Username, req.Password, req.Email)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"token_type": "Bearer",
	})
}
