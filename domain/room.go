package domain

import (
	"pulse-chat/errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type RoomID string

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// Room is a persisted multi-member conversation.
// Members are kept in join order and never contain the same user twice.
type Room struct {
	ID            RoomID
	Name          string
	Description   string
	CreatorID     string
	Members       []Member
	LastMessageID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRoom creates a room whose creator is its first member, with the admin role.
// Duplicate ids in memberIDs are collapsed and the creator is never added twice.
func NewRoom(id RoomID, name, description, creatorID string, memberIDs []string, at time.Time) Room {
	members := []Member{{UserID: creatorID, Role: RoleAdmin, JoinedAt: at}}
	for _, userID := range lo.Uniq(memberIDs) {
		if userID == "" || userID == creatorID {
			continue
		}
		members = append(members, Member{UserID: userID, Role: RoleMember, JoinedAt: at})
	}
	return Room{
		ID:          id,
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		Members:     members,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func (r *Room) Join(userID string, at time.Time) error {
	if r.IsMember(userID) {
		return errors.ErrAlreadyMember
	}
	r.Members = append(r.Members, Member{UserID: userID, Role: RoleMember, JoinedAt: at})
	r.UpdatedAt = at
	return nil
}

// Leave removes userID and reports whether it was a member.
// The room survives even when nobody is left.
func (r *Room) Leave(userID string, at time.Time) bool {
	if !r.IsMember(userID) {
		return false
	}
	r.Members = lo.Reject(r.Members, func(m Member, _ int) bool {
		return m.UserID == userID
	})
	r.UpdatedAt = at
	return true
}

func (r Room) IsMember(userID string) bool {
	return lo.ContainsBy(r.Members, func(m Member) bool {
		return m.UserID == userID
	})
}

// MemberIDs returns members in join order.
func (r Room) MemberIDs() []string {
	return lo.Map(r.Members, func(m Member, _ int) string {
		return m.UserID
	})
}

func (r Room) Clone() Room {
	c := r
	c.Members = append([]Member(nil), r.Members...)
	if r.LastMessageID != nil {
		id := *r.LastMessageID
		c.LastMessageID = &id
	}
	return c
}
