// Package runtime holds the live state of the chat: who is connected, who belongs to which room,
// and how messages, typing signals and presence changes reach connections.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"pulse-chat/runtime/workers"
	"sort"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	DeliveryTimeout      time.Duration
	TransitionBufferSize int
	HealthInterval       time.Duration
}

// Orchestrator wires the registry, the membership index, the router and the relays,
// and runs the background workers under its supervisor.
type Orchestrator struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	verifier    contract.IIdentityVerifier
	store       contract.IMessageStore
	registry    *ConnectionRegistry
	members     *MembershipIndex
	router      *Router
	typing      *TypingRelay
	presence    *PresenceBroadcaster
	transitions chan domain.Transition
	config      Config
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	verifier contract.IIdentityVerifier,
	roomStore contract.IRoomStore,
	messageStore contract.IMessageStore,
	filter ContentFilter,
	config Config,
) *Orchestrator {
	transitions := make(chan domain.Transition, config.TransitionBufferSize)
	fanout := workers.NewEventFanout(log, config.DeliveryTimeout)
	registry := NewConnectionRegistry(transitions, log)
	members := NewMembershipIndex(roomStore, log)
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		verifier:    verifier,
		store:       messageStore,
		registry:    registry,
		members:     members,
		router:      NewRouter(registry, members, messageStore, filter, fanout, log),
		typing:      NewTypingRelay(registry, members, fanout, log),
		presence:    NewPresenceBroadcaster(registry, members, messageStore, fanout, log),
		transitions: transitions,
		config:      config,
	}
}

// Load fills the membership index from the room store, it must return before any transport serves.
func (o *Orchestrator) Load(ctx context.Context) error {
	return o.members.Load(ctx)
}

// Start runs the supervised workers until ctx is done or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.supervisor.Add(workers.NewPresenceWorker(o.log, o.transitions, o.presence))
	if o.config.HealthInterval > 0 {
		o.supervisor.Add(
			workers.NewHealthWorker(o.log, o.registry, o.config.HealthInterval),
			workers.NewChannelCapacityWorker(o.log, o.config.HealthInterval,
				workers.NamedChannel{Name: "presence_transitions", Channel: o.transitions}),
		)
	}
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// Connect authenticates the credential then registers conn for the resolved user.
func (o *Orchestrator) Connect(ctx context.Context, credential string, conn contract.Connection) (string, error) {
	userID, err := o.verifier.Verify(ctx, credential)
	if err != nil {
		return "", err
	}
	o.registry.Register(userID, conn)
	return userID, nil
}

func (o *Orchestrator) Disconnect(userID string, conn contract.Connection) {
	o.registry.Deregister(userID, conn)
}

func (o *Orchestrator) IsOnline(userID string) bool {
	return o.registry.IsOnline(userID)
}

func (o *Orchestrator) CreateRoom(ctx context.Context, cmd domain.CreateRoomCommand) (domain.Room, error) {
	return o.members.CreateRoom(ctx, cmd)
}

func (o *Orchestrator) JoinRoom(ctx context.Context, roomID domain.RoomID, userID string) error {
	return o.members.Join(ctx, roomID, userID)
}

func (o *Orchestrator) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID string) error {
	return o.members.Leave(ctx, roomID, userID)
}

func (o *Orchestrator) Room(roomID domain.RoomID) (domain.Room, error) {
	return o.members.Room(roomID)
}

func (o *Orchestrator) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return o.router.Send(ctx, cmd)
}

func (o *Orchestrator) Typing(ctx context.Context, cmd domain.TypingCommand) {
	o.typing.Signal(ctx, cmd)
}

func (o *Orchestrator) AdvanceStatus(ctx context.Context, cmd domain.AdvanceStatusCommand) (domain.Message, error) {
	return o.router.AdvanceStatus(ctx, cmd)
}

// History returns one page of a conversation the user takes part in, oldest message first.
func (o *Orchestrator) History(ctx context.Context, cmd domain.HistoryCommand) ([]domain.Message, *string, error) {
	var conversation domain.Conversation
	switch {
	case cmd.RoomID != "" && cmd.ReceiverID != "", cmd.RoomID == "" && cmd.ReceiverID == "":
		return nil, nil, fmt.Errorf("%w: exactly one of receiver and room is required", errors.ErrInvalidMessage)
	case cmd.RoomID != "":
		if _, err := o.members.Room(cmd.RoomID); err != nil {
			return nil, nil, err
		}
		if !o.members.IsMember(cmd.RoomID, cmd.UserID) {
			return nil, nil, errors.ErrNotAMember
		}
		conversation = domain.InRoom(cmd.RoomID)
	default:
		conversation = domain.Direct(cmd.UserID, cmd.ReceiverID)
	}
	messages, cursor, err := o.store.Find(ctx, conversation, cmd.Page)
	if err != nil {
		return nil, nil, storageError(err)
	}
	return messages, cursor, nil
}

// Conversations merges the direct conversations and the rooms of a user,
// most recent activity first.
func (o *Orchestrator) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	latest, err := o.store.LatestDirect(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	summaries := lo.Map(latest, func(m domain.Message, _ int) domain.ConversationSummary {
		last := m
		return domain.ConversationSummary{
			Conversation: m.Conversation(),
			PeerID:       m.Peer(userID),
			LastMessage:  &last,
		}
	})

	for _, room := range o.members.RoomsFor(userID) {
		summary := domain.ConversationSummary{Conversation: domain.InRoom(room.ID), Room: &room}
		if room.LastMessageID != nil {
			last, err := o.store.Get(ctx, *room.LastMessageID)
			switch {
			case err == nil:
				summary.LastMessage = &last
			case !errors.Is(err, errors.ErrNotFound):
				return nil, storageError(err)
			}
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity().After(summaries[j].LastActivity())
	})
	return summaries, nil
}
