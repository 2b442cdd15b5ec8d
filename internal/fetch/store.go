package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/lp-apy/internal/model"
)

// Fetcher retrieves a fresh pool snapshot from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.PoolSnapshot, error)
}

// Admitter decides whether a fresh snapshot is sane enough to serve,
// returning a fallback snapshot when it is not.
type Admitter interface {
	Admit(snap *model.PoolSnapshot) (*model.PoolSnapshot, error)
}

// Store holds the latest admitted snapshot behind a TTL. Requests read the
// cached snapshot; a stale cache triggers a refresh on the calling request
// while the background refresher keeps the cache warm.
type Store struct {
	fetcher Fetcher
	admit   Admitter
	ttl     time.Duration

	// refreshMu serializes refreshes so a burst of requests hitting a
	// stale cache results in a single upstream fetch.
	refreshMu sync.Mutex

	mu   sync.RWMutex
	snap *model.PoolSnapshot
}

// NewStore creates a snapshot store. admit may be nil, in which case every
// fetched snapshot is served as-is.
func NewStore(fetcher Fetcher, admit Admitter, ttl time.Duration) *Store {
	return &Store{
		fetcher: fetcher,
		admit:   admit,
		ttl:     ttl,
	}
}

// Get returns the cached snapshot, refreshing first when it is missing or
// older than the TTL.
func (s *Store) Get(ctx context.Context) (*model.PoolSnapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap != nil && time.Since(snap.FetchedAt) < s.ttl {
		return snap, nil
	}
	return s.refresh(ctx, false)
}

// Refresh fetches a fresh snapshot through the admitter and caches the
// result. When the fetch fails and a previous snapshot exists, the stale
// snapshot is served rather than failing the request.
func (s *Store) Refresh(ctx context.Context) (*model.PoolSnapshot, error) {
	return s.refresh(ctx, true)
}

// refresh performs the actual fetch under refreshMu. Unless forced, the
// freshness check is repeated after the lock is acquired so that requests
// queued behind an in-flight refresh reuse its result instead of fetching
// again.
func (s *Store) refresh(ctx context.Context, force bool) (*model.PoolSnapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !force {
		s.mu.RLock()
		snap := s.snap
		s.mu.RUnlock()

		if snap != nil && time.Since(snap.FetchedAt) < s.ttl {
			return snap, nil
		}
	}

	fresh, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.mu.RLock()
		stale := s.snap
		s.mu.RUnlock()

		if stale != nil {
			logrus.WithError(err).Warn("Upstream fetch failed, serving stale snapshot")
			return stale, nil
		}
		return nil, fmt.Errorf("refreshing pool snapshot: %w", err)
	}

	if s.admit != nil {
		admitted, admitErr := s.admit.Admit(fresh)
		if admitErr != nil {
			logrus.WithError(admitErr).Warn("Snapshot rejected by guard")
			if admitted == nil {
				return nil, fmt.Errorf("snapshot rejected: %w", admitErr)
			}
			fresh = admitted
		} else {
			fresh = admitted
		}
	}

	s.mu.Lock()
	s.snap = fresh
	s.mu.Unlock()

	return fresh, nil
}

// Cached returns the current snapshot without refreshing, nil when none
// has been fetched yet.
func (s *Store) Cached() *model.PoolSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
