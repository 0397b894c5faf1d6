package server

import (
	apperrors "chat-room/errors"
	"chat-room/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// IdentityHeader carries the caller name. It is the only source of a message sender.
const IdentityHeader = "User"

type ChatServer struct {
	log         *slog.Logger
	chatService services.IChatService
}

func NewChatServer(log *slog.Logger, chatService services.IChatService) *ChatServer {
	return &ChatServer{log: log, chatService: chatService}
}

func (s *ChatServer) RegisterRoutes(r chi.Router) {
	r.Get("/participants", s.listParticipants)
	r.Post("/participants", s.join)
	r.Get("/messages", s.listMessages)
	r.Post("/messages", s.sendMessage)
	r.Put("/messages/{id}", s.editMessage)
	r.Delete("/messages/{id}", s.deleteMessage)
	r.Post("/status", s.heartbeat)
}

func (s *ChatServer) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := s.chatService.ListParticipants(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, participants)
}

func (s *ChatServer) join(w http.ResponseWriter, r *http.Request) {
	var payload services.JoinRequest
	if err := decode(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	participant, err := s.chatService.Join(r.Context(), payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, participant)
}

func (s *ChatServer) listMessages(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, fmt.Errorf("%w: limit %q is not a number", apperrors.ErrValidation, raw))
			return
		}
		limit = &n
	}
	messages, err := s.chatService.ListMessages(r.Context(), identity(r), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messages)
}

func (s *ChatServer) sendMessage(w http.ResponseWriter, r *http.Request) {
	var payload services.MessageRequest
	if err := decode(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	message, err := s.chatService.SendMessage(r.Context(), identity(r), payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, message)
}

func (s *ChatServer) editMessage(w http.ResponseWriter, r *http.Request) {
	var payload services.MessageRequest
	if err := decode(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	message, err := s.chatService.EditMessage(r.Context(), chi.URLParam(r, "id"), identity(r), payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, message)
}

func (s *ChatServer) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.chatService.DeleteMessage(r.Context(), chi.URLParam(r, "id"), identity(r)); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *ChatServer) heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.chatService.Heartbeat(r.Context(), identity(r)); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func identity(r *http.Request) string {
	return r.Header.Get(IdentityHeader)
}

// decode reads a JSON body. Any field the payload type does not declare, such as a
// client supplied sender, is dropped.
func decode(r *http.Request, payload any) error {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return fmt.Errorf("%w: malformed body: %v", apperrors.ErrValidation, err)
	}
	return nil
}

func (s *ChatServer) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("Failed to encode response", "error", err)
	}
}

// respondError hides the cause of internal failures from the client.
func (s *ChatServer) respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	s.respondJSON(w, status, map[string]string{"error": message})
}
