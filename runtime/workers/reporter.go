package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"dm-relay/contract"
	"dm-relay/observability"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*ReporterWorker)(nil)

// ReporterWorker periodically logs a metrics snapshot together with process
// CPU and memory usage.
type ReporterWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
	interval time.Duration
}

func NewReporterWorker(
	log *slog.Logger,
	registry contract.IRegistry,
	metrics *observability.Metrics,
	interval time.Duration,
) *ReporterWorker {
	return &ReporterWorker{log: log, registry: registry, metrics: metrics, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping reporter worker")
			return ctx.Err()
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *ReporterWorker) report(proc *process.Process) {
	snap := w.metrics.Snapshot()
	attrs := []any{
		"online", w.registry.Online(),
		"delivered", snap.MessagesDelivered,
		"queued", snap.MessagesQueued,
		"rejected", snap.MessagesRejected,
		"read_receipts", snap.ReadReceipts,
		"reactions", snap.ReactionsRouted,
		"typing_dropped", snap.TypingDropped,
		"presence_events", snap.PresenceEvents,
		"sessions_opened", snap.SessionsOpened,
		"sessions_replaced", snap.SessionsReplaced,
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
	}
	w.log.Info("Runtime report", attrs...)
}
