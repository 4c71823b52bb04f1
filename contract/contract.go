//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"pulse-chat/domain"
	"pulse-chat/domain/event"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live push channel of a user (a stream, a socket).
// Send must honour ctx: a slow connection returns ctx.Err() instead of blocking.
type Connection interface {
	ID() string
	Send(ctx context.Context, evt event.Event) error
}

type IConnectionRegistry interface {
	Register(userID string, conn Connection)
	Deregister(userID string, conn Connection)
	ListConnections(userID string) []Connection
	IsOnline(userID string) bool
}

type IMembershipIndex interface {
	CreateRoom(ctx context.Context, cmd domain.CreateRoomCommand) (domain.Room, error)
	Join(ctx context.Context, roomID domain.RoomID, userID string) error
	Leave(ctx context.Context, roomID domain.RoomID, userID string) error
	MembersOf(roomID domain.RoomID) ([]string, error)
	IsMember(roomID domain.RoomID, userID string) bool
	RoomsFor(userID string) []domain.Room
	Room(roomID domain.RoomID) (domain.Room, error)
	Touch(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID) error
}

// IMessageStore owns the durable copy of messages.
type IMessageStore interface {
	Persist(ctx context.Context, message domain.Message) (domain.Message, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Message, error)
	Find(ctx context.Context, conversation domain.Conversation, page domain.Page) ([]domain.Message, *string, error)
	DistinctCorrespondents(ctx context.Context, userID string) ([]string, error)
	LatestDirect(ctx context.Context, userID string) ([]domain.Message, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Message, bool, error)
}

type IRoomStore interface {
	Create(ctx context.Context, room domain.Room) error
	Get(ctx context.Context, id domain.RoomID) (domain.Room, error)
	Update(ctx context.Context, id domain.RoomID, fn func(room *domain.Room) error) (domain.Room, error)
	FindByMember(ctx context.Context, userID string) ([]domain.Room, error)
	All(ctx context.Context) ([]domain.Room, error)
}

type IIdentityVerifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

type IPresenceBroadcaster interface {
	Announce(ctx context.Context, t domain.Transition) int
}
