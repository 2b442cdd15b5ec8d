// Package guard protects the service from serving degenerate upstream
// snapshots: empty responses, sudden pool-set collapses, or snapshot-wide
// APY jumps that point at upstream breakage rather than market movement.
package guard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/lp-apy/internal/model"
	"github.com/yourorg/lp-apy/internal/normalize"
	"github.com/yourorg/lp-apy/internal/stats"
)

// State represents the current state of the guard.
type State int

// Guard states.
const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripped, serving last good snapshot
	StateHalfOpen              // testing whether upstream has recovered
)

// String renders the state for status endpoints.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Thresholds defines the limits that trip the guard.
type Thresholds struct {
	// MinPoolFraction is the minimum size of a fresh snapshot relative
	// to the last good one, e.g. 0.5 trips when half the pools vanish
	MinPoolFraction float64 `json:"min_pool_fraction"`

	// MaxMedianAPYJump is the maximum allowed ratio between the fresh
	// and last good median reported APY, in either direction
	MaxMedianAPYJump float64 `json:"max_median_apy_jump"`
}

// Guard implements a circuit-breaker over pool snapshots with a last-good
// fallback.
type Guard struct {
	thresholds       Thresholds
	cooldown         time.Duration
	successThreshold int

	mu           sync.RWMutex
	state        State
	lastTrip     time.Time
	successCount int

	lastGood       *model.PoolSnapshot
	lastGoodMedian float64
	lastGoodCount  int
}

// New creates a Guard with the provided thresholds.
func New(t Thresholds, cooldown time.Duration) *Guard {
	return &Guard{
		thresholds:       t,
		cooldown:         cooldown,
		successThreshold: 3,
	}
}

// Admit evaluates a fresh snapshot. A sane snapshot is recorded as the new
// last-good and returned. An insane one trips the guard; the last good
// snapshot (possibly nil) is returned together with the error so callers
// can keep serving.
func (g *Guard) Admit(snap *model.PoolSnapshot) (*model.PoolSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateOpen && time.Since(g.lastTrip) > g.cooldown {
		g.state = StateHalfOpen
		g.successCount = 0
		logrus.Info("Snapshot guard half-open: probing upstream recovery")
	}

	if err := g.inspect(snap); err != nil {
		g.trip(err.Error())
		return g.lastGood, err
	}

	g.record(snap)

	if g.state == StateHalfOpen {
		g.successCount++
		if g.successCount >= g.successThreshold {
			g.state = StateClosed
			g.successCount = 0
			logrus.Info("Snapshot guard closed: upstream recovered")
		}
	}

	return snap, nil
}

// inspect applies the sanity rules. Caller holds the lock.
func (g *Guard) inspect(snap *model.PoolSnapshot) error {
	if snap == nil || len(snap.Pools) == 0 {
		return errors.New("empty snapshot")
	}

	if g.lastGoodCount > 0 && g.thresholds.MinPoolFraction > 0 {
		fraction := float64(len(snap.Pools)) / float64(g.lastGoodCount)
		if fraction < g.thresholds.MinPoolFraction {
			return fmt.Errorf("pool set collapsed: %d pools, %.0f%% of last good",
				len(snap.Pools), fraction*100)
		}
	}

	if g.lastGoodMedian > 0 && g.thresholds.MaxMedianAPYJump > 1 {
		median := snapshotMedian(snap)
		if median > 0 {
			ratio := median / g.lastGoodMedian
			if ratio > g.thresholds.MaxMedianAPYJump || ratio < 1/g.thresholds.MaxMedianAPYJump {
				return fmt.Errorf("median APY jumped %.1fx against last good snapshot", ratio)
			}
		}
	}

	return nil
}

// record stores the snapshot as the new last-good. Caller holds the lock.
func (g *Guard) record(snap *model.PoolSnapshot) {
	g.lastGood = snap
	g.lastGoodCount = len(snap.Pools)
	if median := snapshotMedian(snap); median > 0 {
		g.lastGoodMedian = median
	}
}

func (g *Guard) trip(reason string) {
	if g.state != StateOpen {
		logrus.Warnf("Snapshot guard tripped: %s", reason)
	}
	g.state = StateOpen
	g.lastTrip = time.Now()
}

// GetState returns the current guard state.
func (g *Guard) GetState() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Reset forcibly closes the guard.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateClosed
	g.successCount = 0
	logrus.Info("Snapshot guard manually reset")
}

// LastGood returns the most recent admitted snapshot, nil when none.
func (g *Guard) LastGood() *model.PoolSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastGood
}

// snapshotMedian computes the median reported APY of a raw snapshot. The
// thin threshold does not matter here, only the APY values do.
func snapshotMedian(snap *model.PoolSnapshot) float64 {
	pools, _ := normalize.NormalizeAll(snap.Pools, 0)
	return stats.MedianAPY(pools)
}
