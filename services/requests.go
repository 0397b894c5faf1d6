package services

import (
	apperrors "chat-room/errors"
	"chat-room/sanitizer"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type JoinRequest struct {
	Name string `json:"name" validate:"required"`
}

// MessageRequest is the client-supplied part of a message. The sender is never part of it.
type MessageRequest struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
	Type string `json:"type" validate:"required,oneof=message private_message"`
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

// sanitizeJoin strips markup from the name and checks it is still present afterwards.
func sanitizeJoin(req JoinRequest) (JoinRequest, error) {
	fields := sanitizer.Sanitize(map[string]any{"name": req.Name})
	clean := JoinRequest{Name: fields["name"].(string)}
	return clean, validateRequest(clean)
}

func sanitizeMessage(req MessageRequest) (MessageRequest, error) {
	fields := sanitizer.Sanitize(map[string]any{
		"to":   req.To,
		"text": req.Text,
		"type": req.Type,
	})
	clean := MessageRequest{
		To:   fields["to"].(string),
		Text: fields["text"].(string),
		Type: fields["type"].(string),
	}
	return clean, validateRequest(clean)
}

func (r MessageRequest) fields() map[string]any {
	return map[string]any{"to": r.To, "text": r.Text, "type": r.Type}
}
