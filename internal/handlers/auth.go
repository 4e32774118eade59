package handlers

import (
	"net/http"

	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req ports.RegisterInput
	if !h.decodeBody(w, r, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}
