package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/service"
	"github.com/nomance-app/nomance/internal/transport/http/middleware"
	"github.com/nomance-app/nomance/pkg/validator"
	"github.com/pkg/errors"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, matchID, input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMessage) {
			writeError(w, http.StatusBadRequest, "INVALID_CONTENT", "Invalid message content")
			return
		}
		writeMatchError(w, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	messages, err := h.messageService.List(r.Context(), userID, matchID)
	if err != nil {
		writeMatchError(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// MarkRead marks the caller's unread incoming messages of a match as read.
// An empty body marks all of them.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid match ID")
		return
	}

	var input service.MarkReadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	updated, err := h.messageService.MarkRead(r.Context(), userID, matchID, input)
	if err != nil {
		writeMatchError(w, "mark read", err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *MessageHandler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.MarkMessageRead(r.Context(), userID, messageID); err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
			return
		}
		writeMatchError(w, "mark message read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
