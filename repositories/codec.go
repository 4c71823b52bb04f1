package repositories

import (
	"fmt"
	"pulse-chat/domain"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format, field numbers below must never be reused.
const (
	msgID protowire.Number = iota + 1
	msgSender
	msgReceiver
	msgRoom
	msgContent
	msgKind
	msgStatus
	msgMentions
	msgCensored
	msgLang
	msgCreatedAt
)

const (
	roomID protowire.Number = iota + 1
	roomName
	roomDescription
	roomCreator
	roomMember
	roomLastMessage
	roomCreatedAt
	roomUpdatedAt
)

const (
	memberUser protowire.Number = iota + 1
	memberRole
	memberJoinedAt
)

const (
	userID protowire.Number = iota + 1
	userEmail
	userPasswordHash
	userRoles
	userCreatedAt
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendStrings(b []byte, num protowire.Number, values []string) []byte {
	for _, v := range values {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendVarint(b, num, uint64(t.UnixNano()))
}

// walk iterates over the fields of a record.
// visit consumes the value of the field and returns how many bytes it read.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = visit(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return -1
	}
	v, n := protowire.ConsumeString(b)
	*dst = v
	return n
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return -1
	}
	v, n := protowire.ConsumeVarint(b)
	*dst = v
	return n
}

func consumeTime(typ protowire.Type, b []byte, dst *time.Time) int {
	var nanos uint64
	n := consumeVarint(typ, b, &nanos)
	if n >= 0 {
		*dst = time.Unix(0, int64(nanos)).UTC()
	}
	return n
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, msgID, m.ID.String())
	b = appendString(b, msgSender, m.SenderID)
	b = appendString(b, msgReceiver, m.ReceiverID)
	b = appendString(b, msgRoom, string(m.RoomID))
	b = appendString(b, msgContent, m.Content)
	b = appendString(b, msgKind, string(m.Kind))
	b = appendVarint(b, msgStatus, uint64(m.Status))
	b = appendStrings(b, msgMentions, m.Mentions)
	b = appendStrings(b, msgCensored, m.Censored)
	b = appendString(b, msgLang, m.Lang)
	b = appendTime(b, msgCreatedAt, m.CreatedAt)
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	var id, room, kind, item string
	var st uint64
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case msgID:
			return consumeString(typ, b, &id)
		case msgSender:
			return consumeString(typ, b, &m.SenderID)
		case msgReceiver:
			return consumeString(typ, b, &m.ReceiverID)
		case msgRoom:
			return consumeString(typ, b, &room)
		case msgContent:
			return consumeString(typ, b, &m.Content)
		case msgKind:
			return consumeString(typ, b, &kind)
		case msgStatus:
			return consumeVarint(typ, b, &st)
		case msgMentions:
			n := consumeString(typ, b, &item)
			m.Mentions = append(m.Mentions, item)
			return n
		case msgCensored:
			n := consumeString(typ, b, &item)
			m.Censored = append(m.Censored, item)
			return n
		case msgLang:
			return consumeString(typ, b, &m.Lang)
		case msgCreatedAt:
			return consumeTime(typ, b, &m.CreatedAt)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message id: %w", err)
	}
	m.ID = parsedID
	m.RoomID = domain.RoomID(room)
	m.Kind = domain.Kind(kind)
	m.Status = domain.Status(st)
	return m, nil
}

func encodeRoom(r domain.Room) []byte {
	var b []byte
	b = appendString(b, roomID, string(r.ID))
	b = appendString(b, roomName, r.Name)
	b = appendString(b, roomDescription, r.Description)
	b = appendString(b, roomCreator, r.CreatorID)
	for _, m := range r.Members {
		var mb []byte
		mb = appendString(mb, memberUser, m.UserID)
		mb = appendString(mb, memberRole, string(m.Role))
		mb = appendTime(mb, memberJoinedAt, m.JoinedAt)
		b = protowire.AppendTag(b, roomMember, protowire.BytesType)
		b = protowire.AppendBytes(b, mb)
	}
	if r.LastMessageID != nil {
		b = appendString(b, roomLastMessage, r.LastMessageID.String())
	}
	b = appendTime(b, roomCreatedAt, r.CreatedAt)
	b = appendTime(b, roomUpdatedAt, r.UpdatedAt)
	return b
}

func decodeRoom(b []byte) (domain.Room, error) {
	var r domain.Room
	var id, last string
	var memberErr error
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case roomID:
			return consumeString(typ, b, &id)
		case roomName:
			return consumeString(typ, b, &r.Name)
		case roomDescription:
			return consumeString(typ, b, &r.Description)
		case roomCreator:
			return consumeString(typ, b, &r.CreatorID)
		case roomMember:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			member, err := decodeMember(v)
			if err != nil {
				memberErr = err
				return -1
			}
			r.Members = append(r.Members, member)
			return n
		case roomLastMessage:
			return consumeString(typ, b, &last)
		case roomCreatedAt:
			return consumeTime(typ, b, &r.CreatedAt)
		case roomUpdatedAt:
			return consumeTime(typ, b, &r.UpdatedAt)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if memberErr != nil {
		return domain.Room{}, fmt.Errorf("decode room member: %w", memberErr)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("decode room: %w", err)
	}
	r.ID = domain.RoomID(id)
	if last != "" {
		parsed, err := uuid.Parse(last)
		if err != nil {
			return domain.Room{}, fmt.Errorf("decode room last message: %w", err)
		}
		r.LastMessageID = &parsed
	}
	return r, nil
}

func decodeMember(b []byte) (domain.Member, error) {
	var m domain.Member
	var role string
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case memberUser:
			return consumeString(typ, b, &m.UserID)
		case memberRole:
			return consumeString(typ, b, &role)
		case memberJoinedAt:
			return consumeTime(typ, b, &m.JoinedAt)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	m.Role = domain.Role(role)
	return m, err
}

func encodeUser(u User) []byte {
	var b []byte
	b = appendString(b, userID, u.ID)
	b = appendString(b, userEmail, u.Email)
	b = appendString(b, userPasswordHash, u.PasswordHash)
	b = appendStrings(b, userRoles, u.Roles)
	b = appendTime(b, userCreatedAt, u.CreatedAt)
	return b
}

func decodeUser(b []byte) (User, error) {
	var u User
	var role string
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case userID:
			return consumeString(typ, b, &u.ID)
		case userEmail:
			return consumeString(typ, b, &u.Email)
		case userPasswordHash:
			return consumeString(typ, b, &u.PasswordHash)
		case userRoles:
			n := consumeString(typ, b, &role)
			u.Roles = append(u.Roles, role)
			return n
		case userCreatedAt:
			return consumeTime(typ, b, &u.CreatedAt)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}
