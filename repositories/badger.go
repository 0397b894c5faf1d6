package repositories

import (
	apperrors "chat-room/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnAttempts bounds how many times a read-write transaction is replayed
// after losing a commit race.
const maxTxnAttempts = 16

// OpenBadger opens the document store. An in-memory database is used when inMemory is set,
// in which case path is ignored.
func OpenBadger(path string, inMemory bool, log *slog.Logger) (*badger.DB, error) {
	options := badger.DefaultOptions(path)
	if inMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	}
	if log.Enabled(context.Background(), slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return badger.Open(options)
}

// update runs fn in a read-write transaction. Badger commits optimistically: when another
// transaction committed a write to a key fn has read, the commit fails with ErrConflict and
// fn is replayed on a fresh snapshot.
func update(ctx context.Context, db *badger.DB, log *slog.Logger, fn func(txn *badger.Txn) error) error {
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		log.Debug("Transaction conflict, retrying", "attempt", attempt)
	}
	return fmt.Errorf("%w: gave up after %d conflicting transactions", apperrors.ErrStore, maxTxnAttempts)
}

func view(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

// storeError leaves business outcomes as they are and classifies every other failure,
// including context deadlines, as ErrStore.
func storeError(err error) error {
	if err == nil || apperrors.IsExpected(err) || errors.Is(err, apperrors.ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrStore, err)
}
