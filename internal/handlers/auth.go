package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pliu/chatterbox/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
	Log  *slog.Logger
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	if err := h.Auth.Register(r.Context(), req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeText(w, http.StatusOK, "User created successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, h.Log, resp)
}
