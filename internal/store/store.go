// Package store is the durable persistence collaborator. It mirrors rooms,
// messages, issues and identities into BadgerDB. The in-memory components stay
// authoritative; every write here is issued after the in-memory mutation and
// is allowed to lag behind it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/domain"
)

// Records is the narrow surface the core depends on.
type Records interface {
	SaveRoom(room domain.Room) error
	Rooms() ([]domain.Room, error)
	SaveMessage(msg domain.Message) error
	Messages(roomID domain.RoomID, limit int) ([]domain.Message, error)
	SaveIssue(issue domain.Issue) error
	Issues() ([]domain.Issue, error)
	SaveIdentity(identity domain.Identity) error
	SaveCounsellor(counsellor domain.Counsellor) error
	Counsellor(id string) (*domain.Counsellor, error)
}

type Store struct {
	db *badger.DB
}

func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	log.Info().Str("module", "store").Str("path", path).Msg("badger opened")
	return &Store{db: db}, nil
}

// OpenAt wraps an already opened DB, used by tests with t.TempDir().
func OpenAt(db *badger.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + id)
}

// messageKey pads the timestamp to 19 digits so lexicographic order under a
// room prefix equals chronological order; the uuid disambiguates messages
// created in the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.RoomID, m.CreatedAt.UnixNano(), m.ID))
}

func (s *Store) SaveRoom(room domain.Room) error {
	return s.put(roomKey(room.ID), room)
}

func (s *Store) Rooms() ([]domain.Room, error) {
	return scan[domain.Room](s.db, "room:")
}

func (s *Store) SaveMessage(msg domain.Message) error {
	return s.put(messageKey(msg), msg)
}

// Messages returns up to limit most recent messages for a room, oldest first.
// limit <= 0 means no cap.
func (s *Store) Messages(roomID domain.RoomID, limit int) ([]domain.Message, error) {
	var out []domain.Message
	prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key under the prefix, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) == limit {
				break
			}
			var msg domain.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Reverse scan collected newest first; callers want oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) SaveIssue(issue domain.Issue) error {
	return s.put([]byte("issue:"+issue.ID.String()), issue)
}

func (s *Store) Issues() ([]domain.Issue, error) {
	return scan[domain.Issue](s.db, "issue:")
}

func (s *Store) SaveIdentity(identity domain.Identity) error {
	return s.put([]byte("identity:"+string(identity.ID)), identity)
}

func (s *Store) SaveCounsellor(counsellor domain.Counsellor) error {
	return s.put([]byte("counsellor:"+counsellor.ID), counsellor)
}

func (s *Store) Counsellor(id string) (*domain.Counsellor, error) {
	var c domain.Counsellor
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("counsellor:" + id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &c)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) put(key []byte, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
}

func scan[T any](db *badger.DB, prefix string) ([]T, error) {
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var v T
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
