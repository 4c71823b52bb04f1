package runtime

import (
	"context"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/domain/event"
	"pulse-chat/runtime/workers"
)

var _ contract.IPresenceBroadcaster = (*PresenceBroadcaster)(nil)

// PresenceBroadcaster tells interested users that someone came online or went offline.
// Interested users share a room with them or exchanged at least one direct message.
// Users offline at that moment miss the notification.
type PresenceBroadcaster struct {
	registry contract.IConnectionRegistry
	members  contract.IMembershipIndex
	store    contract.IMessageStore
	fanout   *workers.EventFanout
	log      *slog.Logger
}

func NewPresenceBroadcaster(registry contract.IConnectionRegistry, members contract.IMembershipIndex,
	store contract.IMessageStore, fanout *workers.EventFanout, log *slog.Logger) *PresenceBroadcaster {
	return &PresenceBroadcaster{registry: registry, members: members, store: store, fanout: fanout, log: log}
}

// Announce returns how many connections were notified.
func (p *PresenceBroadcaster) Announce(ctx context.Context, t domain.Transition) int {
	parties := p.InterestedParties(ctx, t.UserID)
	return p.fanout.Deliver(ctx, connectionsOf(p.registry, parties), event.PresenceEvent(t))
}

// InterestedParties lists the users who care about userID's presence, userID excluded.
// A failing message store reduces the set to room members.
func (p *PresenceBroadcaster) InterestedParties(ctx context.Context, userID string) []string {
	seen := map[string]struct{}{userID: {}}
	var parties []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		parties = append(parties, id)
	}

	for _, room := range p.members.RoomsFor(userID) {
		for _, member := range room.MemberIDs() {
			add(member)
		}
	}
	correspondents, err := p.store.DistinctCorrespondents(ctx, userID)
	if err != nil {
		p.log.Warn("Cannot load correspondents", "user_id", userID, "error", err)
	}
	for _, peer := range correspondents {
		add(peer)
	}
	return parties
}
