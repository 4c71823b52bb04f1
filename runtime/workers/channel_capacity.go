package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// saturationRatio is the fill level above which a channel is reported as a warning.
const saturationRatio = 0.8

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically logs the length and capacity of internal buffers.
// Reading len and cap is non-blocking so sampling never competes with producers.
type ChannelCapacityWorker struct {
	log      *slog.Logger
	channels []NamedChannel
	interval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, interval time.Duration, channels ...NamedChannel) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, channels: channels, interval: interval}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel sampling")
			return nil
		case <-ticker.C:
			for _, nc := range w.channels {
				w.sample(nc)
			}
		}
	}
}

func (w *ChannelCapacityWorker) sample(nc NamedChannel) {
	v := reflect.ValueOf(nc.Channel)
	if v.Kind() != reflect.Chan {
		w.log.Error("Provided object is not a channel", "name", nc.Name)
		return
	}
	capacity, length := v.Cap(), v.Len()
	if Saturated(length, capacity) {
		w.log.Warn("Channel close to saturation", "name", nc.Name, "length", length, "capacity", capacity)
		return
	}
	w.log.Debug("Channel capacity", "name", nc.Name, "length", length, "capacity", capacity)
}

// Saturated reports whether a buffer holding length items out of capacity should be flagged.
// Unbuffered channels are never saturated.
func Saturated(length, capacity int) bool {
	if capacity == 0 {
		return false
	}
	return float64(length) >= saturationRatio*float64(capacity)
}
