//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-room/domain"
	apperrors "chat-room/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// MessagePrefix namespaces message keys: "msg:{sequence_padded}:{uuid}".
	MessagePrefix = "msg:"
	// messageIndexPrefix maps "idx:msg:{uuid}" to the message key.
	messageIndexPrefix = "idx:msg:"
	// SequencePrefix namespaces badger sequences.
	SequencePrefix     = "seq:"
	messageSequenceKey = SequencePrefix + "msg"
	sequenceBandwidth  = 1000
)

type IMessageRepository interface {
	Append(ctx context.Context, message domain.Message) (uuid.UUID, error)
	ListVisibleTo(ctx context.Context, participant string, limit int) ([]domain.Message, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Message, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any, requester string) (domain.Message, error)
	Delete(ctx context.Context, id uuid.UUID, requester string) error
}

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	clock    domain.Clock
	sequence *badger.Sequence
}

// NewMessageRepository leases the message sequence. Close releases it.
func NewMessageRepository(db *badger.DB, log *slog.Logger, clock domain.Clock) (*MessageRepository, error) {
	sequence, err := db.GetSequence([]byte(messageSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: message sequence: %v", apperrors.ErrStore, err)
	}
	return &MessageRepository{db: db, log: log, clock: clock, sequence: sequence}, nil
}

// Close returns the unused part of the sequence lease. The database stays open.
func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

// messageKey orders the log by append sequence, 20 digits being the width of a uint64.
// Wall-clock time plays no part, so equal or backward timestamps keep the append order.
func messageKey(seq uint64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", MessagePrefix, seq, id))
}

func messageIndexKey(id uuid.UUID) []byte {
	return []byte(messageIndexPrefix + id.String())
}

// Append stores message under a freshly assigned id and returns it.
// Any id carried by message is ignored.
func (m *MessageRepository) Append(ctx context.Context, message domain.Message) (uuid.UUID, error) {
	var id uuid.UUID
	err := update(ctx, m.db, m.log, func(txn *badger.Txn) error {
		var err error
		id, err = m.appendTxn(txn, message)
		return err
	})
	if err != nil {
		return uuid.Nil, storeError(err)
	}
	return id, nil
}

// appendTxn writes message and its index entry inside txn, so that other writes of the
// same transaction commit or fail together with it.
func (m *MessageRepository) appendTxn(txn *badger.Txn, message domain.Message) (uuid.UUID, error) {
	message.ID = uuid.New()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = m.clock.Now()
	}
	if message.Time == "" {
		message.Time = message.CreatedAt.Format(domain.TimeLayout)
	}
	bytes, err := encodeMessage(message)
	if err != nil {
		return uuid.Nil, err
	}
	seq, err := m.sequence.Next()
	if err != nil {
		return uuid.Nil, err
	}
	key := messageKey(seq, message.ID)
	if err := txn.Set(key, bytes); err != nil {
		return uuid.Nil, err
	}
	if err := txn.Set(messageIndexKey(message.ID), key); err != nil {
		return uuid.Nil, err
	}
	return message.ID, nil
}

// ListVisibleTo returns at most limit of the most recent messages addressed to participant
// or broadcast, oldest first. A limit of zero or less returns them all.
// Keys are scanned from the newest one so the cut keeps the latest messages, then the
// selection is reversed into chronological order.
func (m *MessageRepository) ListVisibleTo(ctx context.Context, participant string, limit int) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		prefix := []byte(MessagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// In reverse mode Seek lands on the greatest key lower or equal to the seek key
		seekKey := append([]byte(MessagePrefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				var err error
				message, err = DecodeMessage(val)
				return err
			})
			if err != nil {
				return err
			}
			if message.VisibleTo(participant) {
				messages = append(messages, message)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return lo.Reverse(messages), nil
}

func (m *MessageRepository) Get(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		var err error
		message, _, err = getMessage(txn, id)
		return err
	})
	if err != nil {
		return domain.Message{}, storeError(err)
	}
	return message, nil
}

// Update merges the editable fields (to, text, type) into the message when requester is
// its sender. Status messages cannot be changed. The id, sender and time of a message never change.
func (m *MessageRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any, requester string) (domain.Message, error) {
	var updated domain.Message
	err := update(ctx, m.db, m.log, func(txn *badger.Txn) error {
		message, key, err := getOwnedMessage(txn, id, requester)
		if err != nil {
			return err
		}
		updated = mergeFields(message, fields)
		bytes, err := encodeMessage(updated)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return domain.Message{}, storeError(err)
	}
	return updated, nil
}

// Delete removes the message when requester is its sender. Status messages cannot be removed.
func (m *MessageRepository) Delete(ctx context.Context, id uuid.UUID, requester string) error {
	err := update(ctx, m.db, m.log, func(txn *badger.Txn) error {
		_, key, err := getOwnedMessage(txn, id, requester)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(messageIndexKey(id))
	})
	return storeError(err)
}

func mergeFields(message domain.Message, fields map[string]any) domain.Message {
	for field, value := range fields {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch field {
		case "to":
			message.To = s
		case "text":
			message.Text = s
		case "type":
			message.Type = domain.MessageType(s)
		}
	}
	return message
}

func getOwnedMessage(txn *badger.Txn, id uuid.UUID, requester string) (domain.Message, []byte, error) {
	message, key, err := getMessage(txn, id)
	if err != nil {
		return domain.Message{}, nil, err
	}
	if !message.ChangeableBy(requester) {
		return domain.Message{}, nil, fmt.Errorf("%w: message %s", apperrors.ErrForbidden, id)
	}
	return message, key, nil
}

// getMessage resolves the secondary index then the message itself.
// Both lookups report an absent entry as ErrNotFound.
func getMessage(txn *badger.Txn, id uuid.UUID) (domain.Message, []byte, error) {
	notFound := fmt.Errorf("%w: message %s", apperrors.ErrNotFound, id)

	indexItem, err := txn.Get(messageIndexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, nil, notFound
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	key, err := indexItem.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, nil, err
	}

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, nil, notFound
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = DecodeMessage(val)
		return err
	})
	if err != nil {
		return domain.Message{}, nil, err
	}
	return message, key, nil
}
