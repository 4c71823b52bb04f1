package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

var _ contract.IMessageStore = (*BreakerMessageStore)(nil)

type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerMessageStore fails writes fast once the underlying store keeps failing,
// and lets a single trial write through after Timeout. Reads are passed through.
type BreakerMessageStore struct {
	contract.IMessageStore
	cb *gobreaker.CircuitBreaker
}

func NewBreakerMessageStore(store contract.IMessageStore, log *slog.Logger, config BreakerConfig) *BreakerMessageStore {
	settings := gobreaker.Settings{
		Name:        "message_store",
		MaxRequests: 1,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		// A missing message is an answer, not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errors.ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerMessageStore{IMessageStore: store, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerMessageStore) Persist(ctx context.Context, message domain.Message) (domain.Message, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.IMessageStore.Persist(ctx, message)
	})
	if err != nil {
		return domain.Message{}, breakerError(err)
	}
	return result.(domain.Message), nil
}

type advanced struct {
	message domain.Message
	changed bool
}

func (b *BreakerMessageStore) AdvanceStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Message, bool, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		m, changed, err := b.IMessageStore.AdvanceStatus(ctx, id, status)
		return advanced{message: m, changed: changed}, err
	})
	if err != nil {
		return domain.Message{}, false, breakerError(err)
	}
	a := result.(advanced)
	return a.message, a.changed, nil
}

func (b *BreakerMessageStore) State() gobreaker.State {
	return b.cb.State()
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return err
}
