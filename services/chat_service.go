//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-room/domain"
	apperrors "chat-room/errors"
	"chat-room/moderation"
	"chat-room/repositories"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type IChatService interface {
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	Join(ctx context.Context, req JoinRequest) (domain.Participant, error)
	Heartbeat(ctx context.Context, name string) error
	SendMessage(ctx context.Context, from string, req MessageRequest) (domain.Message, error)
	ListMessages(ctx context.Context, reader string, limit *int) ([]domain.Message, error)
	EditMessage(ctx context.Context, id, requester string, req MessageRequest) (domain.Message, error)
	DeleteMessage(ctx context.Context, id, requester string) error
}

var _ IChatService = (*ChatService)(nil)

type Config struct {
	StoreTimeout        time.Duration
	DefaultMessageLimit int
}

type ChatService struct {
	log          *slog.Logger
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	moderator    *moderation.Moderator
	clock        domain.Clock
	storeTimeout time.Duration
	defaultLimit int
}

// NewChatService composes the stores. moderator may be nil to disable censoring.
func NewChatService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	clock domain.Clock,
	config Config,
) *ChatService {
	return &ChatService{
		log:          log,
		participants: participants,
		messages:     messages,
		moderator:    moderator,
		clock:        clock,
		storeTimeout: config.StoreTimeout,
		defaultLimit: config.DefaultMessageLimit,
	}
}

func (s *ChatService) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	participants, err := s.participants.List(ctx)
	if err != nil {
		return nil, s.fail("list participants", err)
	}
	return participants, nil
}

// Join registers a participant and announces it to the room.
// A taken name is reported as ErrConflict and announces nothing.
func (s *ChatService) Join(ctx context.Context, req JoinRequest) (domain.Participant, error) {
	// 1. Schema first, nothing is stored for an invalid payload
	if err := validateRequest(req); err != nil {
		return domain.Participant{}, err
	}
	// 2. A name made only of markup is empty once sanitized
	clean, err := sanitizeJoin(req)
	if err != nil {
		return domain.Participant{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	// 3. Register, the store rejects a name already present
	participant, err := s.participants.Register(ctx, clean.Name)
	if err != nil {
		return domain.Participant{}, s.fail("join", err)
	}

	// 4. Announce the arrival
	entered := domain.NewStatusMessage(participant.Name, domain.StatusEntered, s.clock.Now())
	if _, err := s.messages.Append(ctx, entered); err != nil {
		return domain.Participant{}, s.fail("announce arrival", err)
	}
	s.log.Info("Participant joined", "participant", participant.Name)
	return participant, nil
}

// Heartbeat refreshes the liveness of name. ErrNotFound means the caller has to join again.
func (s *ChatService) Heartbeat(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.participants.Touch(ctx, name); err != nil {
		return s.fail("heartbeat", err)
	}
	return nil
}

// SendMessage stores a message authored by from, the caller identity.
// from must be a registered participant; the recipient does not have to be.
func (s *ChatService) SendMessage(ctx context.Context, from string, req MessageRequest) (domain.Message, error) {
	if err := validateRequest(req); err != nil {
		return domain.Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.participants.Get(ctx, from); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Message{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownSender, from)
		}
		return domain.Message{}, s.fail("check sender", err)
	}

	clean, err := sanitizeMessage(req)
	if err != nil {
		return domain.Message{}, err
	}
	clean.Text = s.censor(clean.Text)

	now := s.clock.Now()
	message := domain.Message{
		From:      from,
		To:        clean.To,
		Text:      clean.Text,
		Type:      domain.MessageType(clean.Type),
		Time:      now.Format(domain.TimeLayout),
		CreatedAt: now,
	}
	id, err := s.messages.Append(ctx, message)
	if err != nil {
		return domain.Message{}, s.fail("send message", err)
	}
	message.ID = id
	return message, nil
}

// ListMessages returns what reader may see, oldest first. A nil limit uses the default one.
func (s *ChatService) ListMessages(ctx context.Context, reader string, limit *int) ([]domain.Message, error) {
	n := s.defaultLimit
	if limit != nil {
		n = *limit
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: limit must be a positive number, got %d", apperrors.ErrValidation, n)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	messages, err := s.messages.ListVisibleTo(ctx, reader, n)
	if err != nil {
		return nil, s.fail("list messages", err)
	}
	return messages, nil
}

// EditMessage replaces the content of a message sent by requester.
// The message and its ownership are resolved first, so an unknown id or a foreign message
// is reported as such whatever the body. The new content then goes through the same schema
// and sanitization as a new message.
func (s *ChatService) EditMessage(ctx context.Context, id, requester string, req MessageRequest) (domain.Message, error) {
	messageID, err := parseMessageID(id)
	if err != nil {
		return domain.Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	current, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return domain.Message{}, s.fail("edit message", err)
	}
	if !current.ChangeableBy(requester) {
		return domain.Message{}, fmt.Errorf("%w: message %s", apperrors.ErrForbidden, messageID)
	}

	if err := validateRequest(req); err != nil {
		return domain.Message{}, err
	}
	clean, err := sanitizeMessage(req)
	if err != nil {
		return domain.Message{}, err
	}
	clean.Text = s.censor(clean.Text)

	// The store checks ownership again within the write
	updated, err := s.messages.Update(ctx, messageID, clean.fields(), requester)
	if err != nil {
		return domain.Message{}, s.fail("edit message", err)
	}
	return updated, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, id, requester string) error {
	messageID, err := parseMessageID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.messages.Delete(ctx, messageID, requester); err != nil {
		return s.fail("delete message", err)
	}
	return nil
}

// parseMessageID treats a malformed id like an unknown one: no message can have it.
func parseMessageID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: message %q", apperrors.ErrNotFound, id)
	}
	return parsed, nil
}

func (s *ChatService) censor(text string) string {
	censored, words := s.moderator.Censor(text)
	if len(words) > 0 {
		s.log.Debug("Message censored", "words", len(words))
	}
	return censored
}

// fail logs store failures; business outcomes go back to the caller silently.
func (s *ChatService) fail(operation string, err error) error {
	if !apperrors.IsExpected(err) {
		s.log.Error("Operation failed", "operation", operation, "error", err)
	}
	return err
}
