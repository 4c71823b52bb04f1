package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.IRoomStore = (*RoomRepository)(nil)

// RoomRepository keeps rooms and a reverse index from users to their rooms:
//
//	room:{id}             -> room record
//	member:{user}:{room}  -> empty
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + string(id))
}

func memberPrefix(userID string) string {
	return "member:" + userID + ":"
}

func memberKey(userID string, id domain.RoomID) []byte {
	return []byte(memberPrefix(userID) + string(id))
}

func (r *RoomRepository) Create(_ context.Context, room domain.Room) error {
	return update(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(room.ID)); err == nil {
			return fmt.Errorf("%w: room %s already exists", errors.ErrInvalidRoom, room.ID)
		}
		if err := txn.Set(roomKey(room.ID), encodeRoom(room)); err != nil {
			return err
		}
		for _, userID := range room.MemberIDs() {
			if err := txn.Set(memberKey(userID, room.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RoomRepository) Get(_ context.Context, id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	return room, err
}

func getRoom(txn *badger.Txn, id domain.RoomID) (domain.Room, error) {
	value, err := getValue(txn, roomKey(id))
	if err != nil {
		return domain.Room{}, err
	}
	return decodeRoom(value)
}

// Update applies fn to the stored room and writes the result back.
// The member index follows the new member list. Nothing is written when fn fails.
func (r *RoomRepository) Update(_ context.Context, id domain.RoomID, fn func(room *domain.Room) error) (domain.Room, error) {
	var updated domain.Room
	err := update(r.db, func(txn *badger.Txn) error {
		room, err := getRoom(txn, id)
		if err != nil {
			return err
		}
		before := room.MemberIDs()
		if err := fn(&room); err != nil {
			return err
		}
		if err := txn.Set(roomKey(id), encodeRoom(room)); err != nil {
			return err
		}
		after := room.MemberIDs()
		for _, userID := range before {
			if room.IsMember(userID) {
				continue
			}
			if err := txn.Delete(memberKey(userID, id)); err != nil {
				return err
			}
		}
		for _, userID := range after {
			if err := txn.Set(memberKey(userID, id), nil); err != nil {
				return err
			}
		}
		updated = room
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return updated, nil
}

func (r *RoomRepository) FindByMember(_ context.Context, userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	prefix := []byte(memberPrefix(userID))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id := domain.RoomID(strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
			room, err := getRoom(txn, id)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					r.log.Warn("Dangling membership entry", "user_id", userID, "room_id", id)
					continue
				}
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

// All loads every room, used to warm the membership index at startup.
func (r *RoomRepository) All(_ context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	prefix := []byte("room:")
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				room, err := decodeRoom(value)
				if err != nil {
					return err
				}
				rooms = append(rooms, room)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}
