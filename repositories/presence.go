//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence_repository.go -package=mocks
package repositories

import (
	"chat-room/domain"
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IPresenceRepository interface {
	EvictStale(ctx context.Context, threshold time.Duration) ([]domain.Participant, error)
}

// PresenceRepository evicts stale participants and records their departure in the
// message log within a single transaction: either both are committed or neither is.
type PresenceRepository struct {
	db           *badger.DB
	log          *slog.Logger
	participants *ParticipantRepository
	messages     *MessageRepository
}

// NewPresenceRepository expects both repositories to share db.
func NewPresenceRepository(db *badger.DB, log *slog.Logger, participants *ParticipantRepository,
	messages *MessageRepository) *PresenceRepository {
	return &PresenceRepository{db: db, log: log, participants: participants, messages: messages}
}

// EvictStale removes the participants silent for more than threshold, appends one "left"
// status message per removed participant and returns them.
// A replayed transaction starts over, so a rescued participant gets no departure.
func (p *PresenceRepository) EvictStale(ctx context.Context, threshold time.Duration) ([]domain.Participant, error) {
	var evicted []domain.Participant
	err := update(ctx, p.db, p.log, func(txn *badger.Txn) error {
		var err error
		evicted, err = p.participants.evictStaleTxn(txn, threshold)
		if err != nil {
			return err
		}
		for _, participant := range evicted {
			departure := domain.NewStatusMessage(participant.Name, domain.StatusLeft, p.messages.clock.Now())
			if _, err := p.messages.appendTxn(txn, departure); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return evicted, nil
}
