package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.IMessageStore = (*MessageRepository)(nil)

const defaultLimitMessages = 50

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// Keys:
//
//	msg:{conversation}:{timestamp_padded}:{uuid} -> message record
//	msgid:{uuid}                                 -> message key
//	corr:{user}:{peer}                           -> key of the latest direct message between user and peer
//
// The timestamp is zero padded to 19 digits so lexicographical order is chronological,
// the uuid breaks ties between two messages of the same nanosecond.
func messagePrefix(c domain.Conversation) string {
	return fmt.Sprintf("msg:%s:", c.Key())
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix(m.Conversation()), m.CreatedAt.UnixNano(), m.ID))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func correspondentPrefix(userID string) string {
	return "corr:" + userID + ":"
}

// Persist stores the message and its indexes in a single transaction.
// Missing id, timestamp and status are filled in.
func (r *MessageRepository) Persist(_ context.Context, m domain.Message) (domain.Message, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Status == 0 {
		m.Status = domain.StatusSent
	}
	if m.Kind == "" {
		m.Kind = domain.KindText
	}
	key := messageKey(m)
	err := update(r.db, func(txn *badger.Txn) error {
		if err := txn.Set(key, encodeMessage(m)); err != nil {
			return err
		}
		if err := txn.Set(messageIDKey(m.ID), key); err != nil {
			return err
		}
		if !m.IsDirect() {
			return nil
		}
		if err := txn.Set([]byte(correspondentPrefix(m.SenderID)+m.ReceiverID), key); err != nil {
			return err
		}
		return txn.Set([]byte(correspondentPrefix(m.ReceiverID)+m.SenderID), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func (r *MessageRepository) Get(_ context.Context, id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getByID(txn, id)
		return err
	})
	return m, err
}

func getByID(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	key, err := getValue(txn, messageIDKey(id))
	if err != nil {
		return domain.Message{}, err
	}
	return getByKey(txn, key)
}

func getByKey(txn *badger.Txn, key []byte) (domain.Message, error) {
	value, err := getValue(txn, key)
	if err != nil {
		return domain.Message{}, err
	}
	return decodeMessage(value)
}

// Find returns one page of a conversation, oldest first.
// The scan runs backwards from the cursor (or from the newest message),
// the returned cursor is nil once the beginning of the history is reached.
func (r *MessageRepository) Find(_ context.Context, c domain.Conversation, page domain.Page) ([]domain.Message, *string, error) {
	limit := r.limit(page.Limit)
	prefixStr := messagePrefix(c)
	prefix := []byte(prefixStr)

	var messages []domain.Message
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch page.Cursor {
		case nil:
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*page.Cursor)...)
		}
		it.Seek(seekKey)
		if page.Cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				return nil
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				m, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		lastKey = ""
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Newest first from the scan, callers read history oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func (r *MessageRepository) limit(requested int) int {
	max := defaultLimitMessages
	if r.limitMessages != nil {
		max = *r.limitMessages
	}
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}

// DistinctCorrespondents lists every user who exchanged at least one direct message with userID.
func (r *MessageRepository) DistinctCorrespondents(_ context.Context, userID string) ([]string, error) {
	var peers []string
	prefix := []byte(correspondentPrefix(userID))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			peers = append(peers, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		return nil
	})
	return peers, err
}

// LatestDirect returns the last direct message exchanged with each correspondent of userID.
func (r *MessageRepository) LatestDirect(_ context.Context, userID string) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(correspondentPrefix(userID))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			m, err := getByKey(txn, key)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

// AdvanceStatus moves the status of a message forward.
// A status lower than or equal to the current one leaves the message untouched
// and reports false.
func (r *MessageRepository) AdvanceStatus(_ context.Context, id uuid.UUID, status domain.Status) (domain.Message, bool, error) {
	var m domain.Message
	var advanced bool
	err := update(r.db, func(txn *badger.Txn) error {
		key, err := getValue(txn, messageIDKey(id))
		if err != nil {
			return err
		}
		m, err = getByKey(txn, key)
		if err != nil {
			return err
		}
		advanced = m.Status.Advance(status)
		if !advanced {
			return nil
		}
		m.Status = status
		return txn.Set(key, encodeMessage(m))
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, false, err
		}
		return domain.Message{}, false, fmt.Errorf("advance status of %s: %w", id, err)
	}
	return m, advanced, nil
}

// Scan visits every stored message in key order, conversation by conversation.
// A record that cannot be decoded is logged and skipped.
func (r *MessageRepository) Scan(ctx context.Context, visit func(key string, m domain.Message) error) error {
	prefix := []byte("msg:")
	return r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			m, err := decodeMessage(value)
			if err != nil {
				r.log.Warn("Skipping unreadable message record", "key", string(item.Key()), "error", err)
				continue
			}
			if err := visit(string(item.Key()), m); err != nil {
				return err
			}
		}
		return nil
	})
}
