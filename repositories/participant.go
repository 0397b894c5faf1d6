//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"chat-room/domain"
	apperrors "chat-room/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ParticipantPrefix namespaces participant keys: "participant:{name}" -> last heartbeat.
const ParticipantPrefix = "participant:"

type IParticipantRepository interface {
	Register(ctx context.Context, name string) (domain.Participant, error)
	List(ctx context.Context) ([]domain.Participant, error)
	Get(ctx context.Context, name string) (domain.Participant, error)
	Touch(ctx context.Context, name string) (domain.Participant, error)
	EvictStale(ctx context.Context, threshold time.Duration) ([]domain.Participant, error)
}

type ParticipantRepository struct {
	db    *badger.DB
	log   *slog.Logger
	clock domain.Clock
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger, clock domain.Clock) *ParticipantRepository {
	return &ParticipantRepository{db: db, log: log, clock: clock}
}

func participantKey(name string) []byte {
	return []byte(ParticipantPrefix + name)
}

// Register creates the participant with a heartbeat of now.
// It fails with ErrConflict when the name is already present. Two concurrent registrations
// of the same name both read the key as absent, but only the first commit succeeds: the
// other is replayed, sees the key and reports the conflict.
func (p *ParticipantRepository) Register(ctx context.Context, name string) (domain.Participant, error) {
	var participant domain.Participant
	err := update(ctx, p.db, p.log, func(txn *badger.Txn) error {
		key := participantKey(name)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %q", apperrors.ErrConflict, name)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		participant = domain.Participant{Name: name, LastHeartbeat: p.clock.Now()}
		bytes, err := encodeHeartbeat(participant.LastHeartbeat)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return participant, nil
}

// List returns every registered participant ordered by name.
func (p *ParticipantRepository) List(ctx context.Context) ([]domain.Participant, error) {
	participants := []domain.Participant{}
	err := view(ctx, p.db, func(txn *badger.Txn) error {
		var err error
		participants, err = scanParticipants(txn)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return participants, nil
}

func (p *ParticipantRepository) Get(ctx context.Context, name string) (domain.Participant, error) {
	var participant domain.Participant
	err := view(ctx, p.db, func(txn *badger.Txn) error {
		var err error
		participant, err = getParticipant(txn, name)
		return err
	})
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return participant, nil
}

// Touch moves the participant's heartbeat to now, or fails with ErrNotFound.
func (p *ParticipantRepository) Touch(ctx context.Context, name string) (domain.Participant, error) {
	var participant domain.Participant
	err := update(ctx, p.db, p.log, func(txn *badger.Txn) error {
		if _, err := getParticipant(txn, name); err != nil {
			return err
		}
		participant = domain.Participant{Name: name, LastHeartbeat: p.clock.Now()}
		bytes, err := encodeHeartbeat(participant.LastHeartbeat)
		if err != nil {
			return err
		}
		return txn.Set(participantKey(name), bytes)
	})
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return participant, nil
}

// EvictStale removes every participant whose last heartbeat is older than threshold and
// returns exactly the removed ones.
// Staleness is computed from heartbeats read inside the deleting transaction. A heartbeat
// committed in between invalidates that read, the transaction is replayed and the
// participant is kept.
func (p *ParticipantRepository) EvictStale(ctx context.Context, threshold time.Duration) ([]domain.Participant, error) {
	var evicted []domain.Participant
	err := update(ctx, p.db, p.log, func(txn *badger.Txn) error {
		var err error
		evicted, err = p.evictStaleTxn(txn, threshold)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	if len(evicted) > 0 {
		p.log.Debug("Evicted stale participants", "count", len(evicted), "threshold", threshold)
	}
	return evicted, nil
}

func (p *ParticipantRepository) evictStaleTxn(txn *badger.Txn, threshold time.Duration) ([]domain.Participant, error) {
	participants, err := scanParticipants(txn)
	if err != nil {
		return nil, err
	}
	now := p.clock.Now()
	var evicted []domain.Participant
	for _, participant := range participants {
		if !participant.IsStale(now, threshold) {
			continue
		}
		if err := txn.Delete(participantKey(participant.Name)); err != nil {
			return nil, err
		}
		evicted = append(evicted, participant)
	}
	return evicted, nil
}

func getParticipant(txn *badger.Txn, name string) (domain.Participant, error) {
	item, err := txn.Get(participantKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, fmt.Errorf("%w: participant %q", apperrors.ErrNotFound, name)
	}
	if err != nil {
		return domain.Participant{}, err
	}
	var lastHeartbeat time.Time
	err = item.Value(func(val []byte) error {
		lastHeartbeat, err = DecodeHeartbeat(val)
		return err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant{Name: name, LastHeartbeat: lastHeartbeat}, nil
}

// scanParticipants reads all participants in key order. Every key visited is recorded in the
// transaction's read set, which is what makes EvictStale conflict with a concurrent Touch.
func scanParticipants(txn *badger.Txn) ([]domain.Participant, error) {
	participants := []domain.Participant{}
	prefix := []byte(ParticipantPrefix)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		name := string(item.Key()[len(prefix):])
		var lastHeartbeat time.Time
		err := item.Value(func(val []byte) error {
			var err error
			lastHeartbeat, err = DecodeHeartbeat(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		participants = append(participants, domain.Participant{Name: name, LastHeartbeat: lastHeartbeat})
	}
	return participants, nil
}
