package repositories

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	EntryParticipant = "PARTICIPANT"
	EntryMessage     = "MESSAGE"
	EntryIndex       = "INDEX"
	EntrySequence    = "SEQUENCE"
	EntryUnknown     = "RAW"
)

// Entry is a readable view of one stored key, for the inspection tools.
type Entry struct {
	Key    string
	Kind   string
	Time   string
	Detail string
}

// DescribeEntry decodes val according to the namespace of key.
// Undecodable values are reported in Detail instead of failing.
func DescribeEntry(key string, val []byte) Entry {
	entry := Entry{Key: key, Kind: EntryUnknown, Time: "--:--:--", Detail: fmt.Sprintf("Size: %d bytes", len(val))}
	switch {
	case strings.HasPrefix(key, messageIndexPrefix):
		entry.Kind = EntryIndex
		entry.Detail = "-> " + string(val)
	case strings.HasPrefix(key, SequencePrefix):
		entry.Kind = EntrySequence
		if len(val) == 8 {
			entry.Detail = fmt.Sprintf("Leased up to: %d", binary.BigEndian.Uint64(val))
		}
	case strings.HasPrefix(key, ParticipantPrefix):
		entry.Kind = EntryParticipant
		at, err := DecodeHeartbeat(val)
		if err != nil {
			entry.Detail = "Error: " + err.Error()
			return entry
		}
		entry.Time = at.Format("15:04:05.000")
		entry.Detail = strings.TrimPrefix(key, ParticipantPrefix)
	case strings.HasPrefix(key, MessagePrefix):
		entry.Kind = EntryMessage
		message, err := DecodeMessage(val)
		if err != nil {
			entry.Detail = "Error: " + err.Error()
			return entry
		}
		entry.Time = message.Time
		entry.Detail = fmt.Sprintf("[%s] %s -> %s: %s", message.Type, message.From, message.To, message.Text)
	}
	return entry
}

// ScanEntries describes every key starting with prefix, in key order.
func ScanEntries(ctx context.Context, db *badger.DB, prefix string) ([]Entry, error) {
	var entries []Entry
	err := view(ctx, db, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				entries = append(entries, DescribeEntry(key, val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return entries, nil
}
