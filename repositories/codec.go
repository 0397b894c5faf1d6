package repositories

import (
	"chat-room/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func encodeHeartbeat(at time.Time) ([]byte, error) {
	return proto.Marshal(timestamppb.New(at))
}

// DecodeHeartbeat reads the last heartbeat stored under a participant key.
func DecodeHeartbeat(val []byte) (time.Time, error) {
	var ts timestamppb.Timestamp
	if err := proto.Unmarshal(val, &ts); err != nil {
		return time.Time{}, fmt.Errorf("heartbeat unmarshal failed: %w", err)
	}
	return ts.AsTime(), nil
}

func encodeMessage(message domain.Message) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":        message.ID.String(),
		"from":      message.From,
		"to":        message.To,
		"text":      message.Text,
		"type":      string(message.Type),
		"time":      message.Time,
		"createdAt": message.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("message encoding failed: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeMessage reads a message value as written by MessageRepository.
func DecodeMessage(val []byte) (domain.Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(val, &s); err != nil {
		return domain.Message{}, fmt.Errorf("message unmarshal failed: %w", err)
	}
	fields := s.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	id, err := uuid.Parse(str("id"))
	if err != nil {
		return domain.Message{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, str("createdAt"))
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		From:      str("from"),
		To:        str("to"),
		Text:      str("text"),
		Type:      domain.MessageType(str("type")),
		Time:      str("time"),
		CreatedAt: createdAt,
	}, nil
}
