package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type countingCounter struct {
	calls atomic.Int32
}

func (c *countingCounter) OnlineCount() int {
	c.calls.Add(1)
	return 3
}

func TestHealthWorker_Reports_Periodically(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	counter := &countingCounter{}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := NewHealthWorker(log, counter, 20*time.Millisecond).Run(ctx)

	req.NoError(err)
	req.GreaterOrEqual(counter.calls.Load(), int32(2))
}
