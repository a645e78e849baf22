package workers

import (
	"context"
	"dm-relay/contract"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Backlogged is implemented by connections able to report their outbound queue length.
type Backlogged interface {
	Pending() int
}

type Stats struct {
	Online     int
	Backlog    int
	MaxBacklog int
	RSS        uint64
	CPU        float64
}

// TelemetryWorker periodically logs the relay load and the process resources.
// Queue lengths are read without blocking any session.
type TelemetryWorker struct {
	log            *slog.Logger
	registry       contract.IRegistry
	metricInterval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, registry contract.IRegistry, metricInterval time.Duration) *TelemetryWorker {
	if metricInterval <= 0 {
		metricInterval = 30 * time.Second
	}
	return &TelemetryWorker{log: log, registry: registry, metricInterval: metricInterval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			stats := w.Collect(p)
			w.log.Info("Relay telemetry",
				"online", stats.Online,
				"backlog", stats.Backlog,
				"max_backlog", stats.MaxBacklog,
				"rss_bytes", stats.RSS,
				"cpu_percent", stats.CPU)
		}
	}
}

// Collect samples the registry and, when p is not nil, the process.
func (w *TelemetryWorker) Collect(p *process.Process) Stats {
	entries := w.registry.Entries()
	stats := Stats{Online: len(entries)}
	for _, entry := range entries {
		b, ok := entry.Conn.(Backlogged)
		if !ok {
			continue
		}
		pending := b.Pending()
		stats.Backlog += pending
		stats.MaxBacklog = max(stats.MaxBacklog, pending)
	}

	if p == nil {
		return stats
	}
	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.RSS = memInfo.RSS
	} else {
		w.log.Error("Failed to collect memory stats", "error", err)
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPU = cpu
	} else {
		w.log.Error("Failed to collect cpu stats", "error", err)
	}
	return stats
}
