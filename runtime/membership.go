package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ contract.IMembershipIndex = (*MembershipIndex)(nil)

// MembershipIndex keeps rooms and their members in memory, in front of the room store.
// Every mutation is written to the store first, the index only reflects committed state.
// Mutations are serialized per room, different rooms never wait for each other.
type MembershipIndex struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]domain.Room
	byUser map[string]map[domain.RoomID]struct{}
	locks  *KeyedMutex
	store  contract.IRoomStore
	log    *slog.Logger
}

func NewMembershipIndex(store contract.IRoomStore, log *slog.Logger) *MembershipIndex {
	return &MembershipIndex{
		rooms:  make(map[domain.RoomID]domain.Room),
		byUser: make(map[string]map[domain.RoomID]struct{}),
		locks:  NewKeyedMutex(),
		store:  store,
		log:    log,
	}
}

// Load merges the room store into the index, live connections are not part of it.
// A room committed after the snapshot was read is already newer in the index and is kept.
func (m *MembershipIndex) Load(ctx context.Context) error {
	rooms, err := m.store.All(ctx)
	if err != nil {
		return fmt.Errorf("%w: load rooms: %v", errors.ErrStorage, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loaded := 0
	for _, room := range rooms {
		if cached, ok := m.rooms[room.ID]; ok && cached.UpdatedAt.After(room.UpdatedAt) {
			continue
		}
		m.put(room)
		loaded++
	}
	m.log.Info("Membership index loaded", "rooms", len(rooms), "replaced", loaded)
	return nil
}

func (m *MembershipIndex) CreateRoom(ctx context.Context, cmd domain.CreateRoomCommand) (domain.Room, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Room{}, err
	}
	room := domain.NewRoom(domain.RoomID(uuid.NewString()), cmd.Name, cmd.Description,
		cmd.CreatorID, cmd.MemberIDs, time.Now().UTC())

	unlock := m.locks.Lock(string(room.ID))
	defer unlock()
	if err := m.store.Create(ctx, room); err != nil {
		return domain.Room{}, storageError(err)
	}
	m.mu.Lock()
	m.put(room)
	m.mu.Unlock()

	m.log.Debug("Room created", "room_id", room.ID, "creator_id", room.CreatorID, "members", len(room.Members))
	return room.Clone(), nil
}

// Join fails with ErrAlreadyMember when userID already belongs to the room.
func (m *MembershipIndex) Join(ctx context.Context, roomID domain.RoomID, userID string) error {
	unlock := m.locks.Lock(string(roomID))
	defer unlock()

	room, err := m.Room(roomID)
	if err != nil {
		return err
	}
	if room.IsMember(userID) {
		return errors.ErrAlreadyMember
	}
	updated, err := m.store.Update(ctx, roomID, func(r *domain.Room) error {
		return r.Join(userID, time.Now().UTC())
	})
	if err != nil {
		return storageError(err)
	}
	m.mu.Lock()
	m.put(updated)
	m.mu.Unlock()
	m.log.Debug("Room joined", "room_id", roomID, "user_id", userID)
	return nil
}

// Leave is idempotent, leaving a room twice is not an error.
// A room left empty is kept.
func (m *MembershipIndex) Leave(ctx context.Context, roomID domain.RoomID, userID string) error {
	unlock := m.locks.Lock(string(roomID))
	defer unlock()

	room, err := m.Room(roomID)
	if err != nil {
		return err
	}
	if !room.IsMember(userID) {
		return nil
	}
	updated, err := m.store.Update(ctx, roomID, func(r *domain.Room) error {
		r.Leave(userID, time.Now().UTC())
		return nil
	})
	if err != nil {
		return storageError(err)
	}
	m.mu.Lock()
	m.put(updated)
	m.mu.Unlock()
	m.log.Debug("Room left", "room_id", roomID, "user_id", userID)
	return nil
}

// Touch records the last message of a room.
func (m *MembershipIndex) Touch(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID) error {
	unlock := m.locks.Lock(string(roomID))
	defer unlock()

	updated, err := m.store.Update(ctx, roomID, func(r *domain.Room) error {
		id := messageID
		r.LastMessageID = &id
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return storageError(err)
	}
	m.mu.Lock()
	m.put(updated)
	m.mu.Unlock()
	return nil
}

// MembersOf returns members in join order.
func (m *MembershipIndex) MembersOf(roomID domain.RoomID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return room.MemberIDs(), nil
}

func (m *MembershipIndex) IsMember(roomID domain.RoomID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byUser[userID][roomID]
	return ok
}

// RoomsFor returns every room userID currently belongs to, oldest first.
func (m *MembershipIndex) RoomsFor(userID string) []domain.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byUser[userID]
	rooms := make([]domain.Room, 0, len(ids))
	for id := range ids {
		rooms = append(rooms, m.rooms[id].Clone())
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (m *MembershipIndex) Room(roomID domain.RoomID) (domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return domain.Room{}, errors.ErrNotFound
	}
	return room.Clone(), nil
}

// put replaces the cached room and its reverse entries, the write lock must be held.
func (m *MembershipIndex) put(room domain.Room) {
	if previous, ok := m.rooms[room.ID]; ok {
		for _, userID := range previous.MemberIDs() {
			delete(m.byUser[userID], room.ID)
			if len(m.byUser[userID]) == 0 {
				delete(m.byUser, userID)
			}
		}
	}
	m.rooms[room.ID] = room.Clone()
	for _, userID := range room.MemberIDs() {
		if _, ok := m.byUser[userID]; !ok {
			m.byUser[userID] = make(map[domain.RoomID]struct{})
		}
		m.byUser[userID][room.ID] = struct{}{}
	}
}

// storageError keeps domain errors as they are and flags everything else as a storage failure.
func storageError(err error) error {
	switch {
	case errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrAlreadyMember),
		errors.Is(err, errors.ErrInvalidRoom),
		errors.Is(err, errors.ErrStorage):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
}
