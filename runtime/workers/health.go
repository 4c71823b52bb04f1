package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// OnlineCounter reports how many users are connected.
type OnlineCounter interface {
	OnlineCount() int
}

// HealthWorker periodically logs the resource usage of the server process along with the connected user count.
type HealthWorker struct {
	log      *slog.Logger
	counter  OnlineCounter
	interval time.Duration
	pid      int32
}

func NewHealthWorker(log *slog.Logger, counter OnlineCounter, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, counter: counter, interval: interval, pid: int32(os.Getpid())}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *HealthWorker) report(p *process.Process) {
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}
	w.log.Info("Health",
		"online_users", w.counter.OnlineCount(),
		"cpu_percent", cpu,
		"rss_bytes", mem.RSS)
}
