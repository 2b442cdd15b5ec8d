package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher refreshes the snapshot store on a fixed schedule so user
// requests mostly hit a warm cache.
type Refresher struct {
	store   *Store
	cron    *cron.Cron
	timeout time.Duration
}

// NewRefresher creates a background refresher running every interval.
func NewRefresher(store *Store, interval, timeout time.Duration) (*Refresher, error) {
	r := &Refresher{
		store:   store,
		cron:    cron.New(),
		timeout: timeout,
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("scheduling snapshot refresh: %w", err)
	}
	return r, nil
}

// Start begins the refresh schedule and performs one immediate refresh so
// the cache is warm before the first request.
func (r *Refresher) Start() {
	r.run()
	r.cron.Start()
	logrus.Info("Snapshot refresher started")
}

// Stop halts the schedule, waiting for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logrus.Info("Snapshot refresher stopped")
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.store.Refresh(ctx); err != nil {
		logrus.WithError(err).Warn("Scheduled snapshot refresh failed")
	}
}
