package workers

import (
	"context"
	"log/slog"
	"pulse-chat/domain"
	"pulse-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresenceWorker_Announces_In_Order(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	broadcaster := mocks.NewMockIPresenceBroadcaster(ctrl)

	transitions := make(chan domain.Transition, 2)
	online := domain.Transition{UserID: "alice", Online: true, At: time.Now()}
	offline := domain.Transition{UserID: "alice", Online: false, At: time.Now()}
	transitions <- online
	transitions <- offline
	close(transitions)

	// Then online is announced before offline
	gomock.InOrder(
		broadcaster.EXPECT().Announce(gomock.Any(), online).Return(1),
		broadcaster.EXPECT().Announce(gomock.Any(), offline).Return(1),
	)

	// When the worker drains the channel
	err := NewPresenceWorker(log, transitions, broadcaster).Run(context.Background())
	req.NoError(err)
}

func TestPresenceWorker_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	broadcaster := mocks.NewMockIPresenceBroadcaster(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPresenceWorker(log, make(chan domain.Transition), broadcaster).Run(ctx)
	req.NoError(err)
}
