// Package janitor finalizes orphaned searches and enforces history
// retention on a schedule.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Store is the maintenance slice of the search store.
type Store interface {
	FailStale(ctx context.Context, maxAge time.Duration) (int64, error)
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// Janitor periodically fails stale searches and purges old history.
type Janitor struct {
	store     Store
	cron      *cron.Cron
	log       *slog.Logger
	interval  time.Duration
	staleAge  time.Duration
	retention time.Duration // 0 disables purging
}

// New returns a Janitor. retention of zero keeps history forever.
func New(store Store, log *slog.Logger, interval, staleAge, retention time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		store:     store,
		cron:      cron.New(),
		log:       log,
		interval:  interval,
		staleAge:  staleAge,
		retention: retention,
	}
}

// Start schedules the maintenance job and runs one sweep immediately so
// a restart cleans up orphans of the previous process without waiting a
// full interval.
func (j *Janitor) Start() error {
	spec := fmt.Sprintf("@every %s", j.interval)
	if _, err := j.cron.AddFunc(spec, j.sweep); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.Start()
	go j.sweep()
	j.log.Info("janitor started", "interval", j.interval, "stale_age", j.staleAge, "retention", j.retention)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	failed, err := j.store.FailStale(ctx, j.staleAge)
	if err != nil {
		j.log.Error("fail stale searches", "err", err)
	} else if failed > 0 {
		j.log.Info("failed stale searches", "count", failed)
	}

	if j.retention == 0 {
		return
	}
	purged, err := j.store.PurgeOlderThan(ctx, j.retention)
	if err != nil {
		j.log.Error("purge old searches", "err", err)
	} else if purged > 0 {
		j.log.Info("purged old searches", "count", purged)
	}
}
