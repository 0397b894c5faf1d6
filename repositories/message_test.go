package repositories

import (
	"chat-room/domain"
	apperrors "chat-room/errors"
	"chat-room/internal/clocktest"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newMessage(from, to, text string, at time.Time) domain.Message {
	msgType := domain.MessageTypeMessage
	if to != domain.BroadcastTarget {
		msgType = domain.MessageTypePrivateMessage
	}
	return domain.Message{From: from, To: to, Text: text, Type: msgType, Time: at.Format(domain.TimeLayout), CreatedAt: at}
}

func newMessageRepository(t *testing.T, clock domain.Clock) *MessageRepository {
	t.Helper()
	repo, err := NewMessageRepository(newTestDB(t), slog.Default(), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func texts(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Text })
}

func TestMessageRepository_AppendAndGet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	sent := newMessage("Alice", "Bob", "hi", epoch)
	sent.ID = uuid.New()

	id, err := repo.Append(ctx, sent)
	req.NoError(err)
	// The store assigns its own id
	req.NotEqual(uuid.Nil, id)
	req.NotEqual(sent.ID, id)

	got, err := repo.Get(ctx, id)
	req.NoError(err)
	req.Equal(id, got.ID)
	req.Equal("Alice", got.From)
	req.Equal("Bob", got.To)
	req.Equal("hi", got.Text)
	req.Equal(domain.MessageTypePrivateMessage, got.Type)
	req.Equal("12:00:00", got.Time)
	req.True(epoch.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, uuid.New())
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func TestMessageRepository_ListVisibleTo_FiltersAndOrders(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	messages := []domain.Message{
		newMessage("Alice", domain.BroadcastTarget, "1 hello all", epoch),
		newMessage("Alice", "Bob", "2 hi Bob", epoch.Add(1*time.Second)),
		newMessage("Bob", "Alice", "3 hi Alice", epoch.Add(2*time.Second)),
		newMessage("Clara", domain.BroadcastTarget, "4 hey", epoch.Add(3*time.Second)),
		newMessage("Alice", "Clara", "5 psst", epoch.Add(4*time.Second)),
	}
	for _, message := range messages {
		_, err := repo.Append(ctx, message)
		req.NoError(err)
	}

	bob, err := repo.ListVisibleTo(ctx, "Bob", 100)
	req.NoError(err)
	req.Equal([]string{"1 hello all", "2 hi Bob", "4 hey"}, texts(bob))

	// A reader that never registered still sees broadcasts
	stranger, err := repo.ListVisibleTo(ctx, "Zoe", 100)
	req.NoError(err)
	req.Equal([]string{"1 hello all", "4 hey"}, texts(stranger))
}

func TestMessageRepository_ListVisibleTo_SameInstantKeepsAppendOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	var sent []string
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("%d", i)
		_, err := repo.Append(ctx, newMessage("Alice", domain.BroadcastTarget, text, epoch))
		req.NoError(err)
		sent = append(sent, text)
	}

	listed, err := repo.ListVisibleTo(ctx, "Bob", 0)
	req.NoError(err)
	req.Equal(sent, texts(listed))

	latest, err := repo.ListVisibleTo(ctx, "Bob", 3)
	req.NoError(err)
	req.Equal([]string{"47", "48", "49"}, texts(latest))
}

func TestMessageRepository_ListVisibleTo_BackwardClockKeepsAppendOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch)
	repo := newMessageRepository(t, clock)

	_, err := repo.Append(ctx, domain.Message{From: "Alice", To: domain.BroadcastTarget, Text: "first",
		Type: domain.MessageTypeMessage})
	req.NoError(err)

	// When the wall clock steps back one hour between two appends
	clock.Advance(-time.Hour)
	_, err = repo.Append(ctx, domain.Message{From: "Alice", To: domain.BroadcastTarget, Text: "second",
		Type: domain.MessageTypeMessage})
	req.NoError(err)

	// Then the history still lists them in the order they were sent
	listed, err := repo.ListVisibleTo(ctx, "Bob", 0)
	req.NoError(err)
	req.Equal([]string{"first", "second"}, texts(listed))
	req.Equal("12:00:00", listed[0].Time)
	req.Equal("11:00:00", listed[1].Time)
}

func TestMessageRepository_Append_DefaultsTimestampFromClock(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch.Add(90 * time.Second))
	repo := newMessageRepository(t, clock)

	id, err := repo.Append(ctx, domain.Message{From: "Alice", To: domain.BroadcastTarget, Text: "hi",
		Type: domain.MessageTypeMessage})
	req.NoError(err)

	stored, err := repo.Get(ctx, id)
	req.NoError(err)
	req.True(clock.Now().Equal(stored.CreatedAt))
	req.Equal("12:01:30", stored.Time)
}

func TestMessageRepository_ListVisibleTo_LimitKeepsMostRecent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	for i := 1; i <= 10; i++ {
		_, err := repo.Append(ctx, newMessage("Alice", domain.BroadcastTarget,
			fmt.Sprintf("message %d", i), epoch.Add(time.Duration(i)*time.Minute)))
		req.NoError(err)
	}
	// Hidden messages do not count against the limit
	_, err := repo.Append(ctx, newMessage("Alice", "Clara", "secret", epoch.Add(time.Hour)))
	req.NoError(err)

	latest, err := repo.ListVisibleTo(ctx, "Bob", 3)
	req.NoError(err)
	req.Equal([]string{"message 8", "message 9", "message 10"}, texts(latest))

	all, err := repo.ListVisibleTo(ctx, "Bob", 0)
	req.NoError(err)
	req.Len(all, 10)
}

func TestMessageRepository_VisibilityFilter(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	names := []string{"Alice", "Bob", "Clara"}
	targets := append([]string{domain.BroadcastTarget, "Dan"}, names...)
	var sent []domain.Message
	at := epoch
	for _, from := range names {
		for _, to := range targets {
			at = at.Add(time.Second)
			message := newMessage(from, to, fmt.Sprintf("%s->%s", from, to), at)
			_, err := repo.Append(ctx, message)
			req.NoError(err)
			sent = append(sent, message)
		}
	}

	// A message is listed for a reader iff it is addressed to them or broadcast
	for _, reader := range append(names, "Dan", "Eve") {
		visible, err := repo.ListVisibleTo(ctx, reader, 0)
		req.NoError(err)
		expected := lo.Filter(sent, func(m domain.Message, _ int) bool {
			return m.To == reader || m.To == domain.BroadcastTarget
		})
		req.Equal(texts(expected), texts(visible), "reader=%s", reader)
	}
}

func TestMessageRepository_Update(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	id, err := repo.Append(ctx, newMessage("Alice", domain.BroadcastTarget, "helo", epoch))
	req.NoError(err)

	t.Run("should reject a requester that is not the sender", func(t *testing.T) {
		req := require.New(t)
		_, err := repo.Update(ctx, id, map[string]any{"text": "hijacked"}, "Bob")
		req.ErrorIs(err, apperrors.ErrForbidden)

		unchanged, err := repo.Get(ctx, id)
		req.NoError(err)
		req.Equal("helo", unchanged.Text)
	})

	t.Run("should merge editable fields only", func(t *testing.T) {
		req := require.New(t)
		updated, err := repo.Update(ctx, id, map[string]any{
			"text": "hello",
			"to":   "Bob",
			"type": string(domain.MessageTypePrivateMessage),
			"from": "Mallory",
			"time": "00:00:00",
			"id":   uuid.NewString(),
		}, "Alice")
		req.NoError(err)
		req.Equal(id, updated.ID)
		req.Equal("Alice", updated.From)
		req.Equal("12:00:00", updated.Time)
		req.Equal("hello", updated.Text)
		req.Equal("Bob", updated.To)
		req.Equal(domain.MessageTypePrivateMessage, updated.Type)

		stored, err := repo.Get(ctx, id)
		req.NoError(err)
		req.Equal(updated.Text, stored.Text)
		req.Equal(updated.To, stored.To)
	})

	t.Run("should report an unknown id", func(t *testing.T) {
		_, err := repo.Update(ctx, uuid.New(), map[string]any{"text": "x"}, "Alice")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestMessageRepository_Delete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	id, err := repo.Append(ctx, newMessage("Alice", domain.BroadcastTarget, "oops", epoch))
	req.NoError(err)

	req.ErrorIs(repo.Delete(ctx, id, "Bob"), apperrors.ErrForbidden)
	_, err = repo.Get(ctx, id)
	req.NoError(err)

	req.NoError(repo.Delete(ctx, id, "Alice"))
	_, err = repo.Get(ctx, id)
	req.ErrorIs(err, apperrors.ErrNotFound)

	visible, err := repo.ListVisibleTo(ctx, "Alice", 0)
	req.NoError(err)
	req.Empty(visible)

	req.ErrorIs(repo.Delete(ctx, id, "Alice"), apperrors.ErrNotFound)
}

func TestMessageRepository_StatusMessagesAreImmutable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, clocktest.New(epoch))

	id, err := repo.Append(ctx, domain.NewStatusMessage("Alice", domain.StatusEntered, epoch))
	req.NoError(err)

	// The participant a status message announces does not own it
	_, err = repo.Update(ctx, id, map[string]any{"text": domain.StatusLeft}, "Alice")
	req.ErrorIs(err, apperrors.ErrForbidden)
	req.ErrorIs(repo.Delete(ctx, id, "Alice"), apperrors.ErrForbidden)

	stored, err := repo.Get(ctx, id)
	req.NoError(err)
	req.Equal(domain.StatusEntered, stored.Text)
	req.Equal(domain.MessageTypeStatus, stored.Type)
}
