package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dm-relay/contract"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.Worker = (*StoreGCWorker)(nil)

// StoreGCWorker reclaims badger value-log space on an interval.
type StoreGCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewStoreGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration) *StoreGCWorker {
	return &StoreGCWorker{log: log, db: db, interval: interval}
}

func (w *StoreGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping store GC worker")
			return ctx.Err()
		case <-ticker.C:
			// Each successful pass rewrites one value-log file; loop until
			// there is nothing left to reclaim.
			for {
				err := w.db.RunValueLogGC(0.5)
				if errors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					w.log.Warn("Value log GC failed", "error", err)
					break
				}
			}
		}
	}
}
