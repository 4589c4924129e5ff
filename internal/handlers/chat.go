package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/chatterbox/internal/services"
)

type ChatHandler struct {
	Messaging *services.MessagingService
	Log       *slog.Logger
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req services.CreateConversationRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	if _, err := h.Messaging.CreateConversation(r.Context(), req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeText(w, http.StatusOK, "Conversation created successfully")
}

func (h *ChatHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	conversations, err := h.Messaging.ListConversations(r.Context(), userID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, h.Log, conversations)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req services.SendMessageRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	if _, err := h.Messaging.SendMessage(r.Context(), req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeText(w, http.StatusOK, "Message sent successfully")
}

// GetMessages also serves /api/message/ without an id, which lists nothing.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]

	messages, err := h.Messaging.ListMessages(r.Context(), conversationID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, h.Log, messages)
}

func (h *ChatHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Messaging.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, h.Log, users)
}
