// Package sweeper runs the periodic maintenance tasks: physical deletion of
// processed-and-expired pending updates and the opportunistic resync of
// customer snapshots that never matched an account. Correctness never depends
// on either task; query-time expiry filtering and the apply-pending hook do
// the real work.
package sweeper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/paywise/tiersync/internal/pkg/env"
	"github.com/paywise/tiersync/internal/pkg/pendingstore"
	"github.com/paywise/tiersync/internal/pkg/reconcile"
)

const (
	defaultSweepIntervalMinutes  = 60
	defaultResyncIntervalMinutes = 30
	resyncBatchSize              = 100
)

// Manager owns the background tickers. Start and Stop are safe to call more
// than once.
type Manager struct {
	pending *pendingstore.Service
	engine  *reconcile.Engine

	sweepTicker  *time.Ticker
	resyncTicker *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
}

// NewManager creates a sweeper over the pending store and the engine.
func NewManager(pending *pendingstore.Service, engine *reconcile.Engine) *Manager {
	return &Manager{pending: pending, engine: engine}
}

// Start launches the sweep and resync workers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.stopCh = make(chan struct{})
	m.running = true

	sweepInterval := intervalFromEnv("SWEEP_INTERVAL_MINUTES", defaultSweepIntervalMinutes)
	resyncInterval := intervalFromEnv("RESYNC_INTERVAL_MINUTES", defaultResyncIntervalMinutes)
	log.Infof("[Sweeper] Starting background tasks (sweep: %s, resync: %s)", sweepInterval, resyncInterval)

	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker()

	m.resyncTicker = time.NewTicker(resyncInterval)
	m.wg.Add(1)
	go m.resyncWorker()
}

// Stop signals the workers and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[Sweeper] Stopping background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.resyncTicker != nil {
		m.resyncTicker.Stop()
	}
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	log.Info("[Sweeper] Stopped")
}

func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			m.RunSweep(context.Background())
		}
	}
}

func (m *Manager) resyncWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Resync worker stopping")
			return
		case <-m.resyncTicker.C:
			m.RunResync(context.Background())
		}
	}
}

// RunSweep deletes processed-and-expired pending updates once. Also callable
// from the admin API for an on-demand run.
func (m *Manager) RunSweep(ctx context.Context) {
	runID := uuid.New().String()
	deleted, err := m.pending.Sweep(ctx)
	if err != nil {
		log.Errorf("[Sweeper] Sweep run %s failed: %v", runID, err)
		return
	}
	if deleted > 0 {
		log.Infof("[Sweeper] Sweep run %s deleted %d expired pending updates", runID, deleted)
	} else {
		log.Debugf("[Sweeper] Sweep run %s found nothing to delete", runID)
	}
}

// RunResync re-attempts apply-pending for unsynced customer snapshots once.
func (m *Manager) RunResync(ctx context.Context) {
	runID := uuid.New().String()
	applied, err := m.engine.ResyncUnsynced(ctx, resyncBatchSize)
	if err != nil {
		log.Errorf("[Sweeper] Resync run %s failed: %v", runID, err)
		return
	}
	if applied > 0 {
		log.Infof("[Sweeper] Resync run %s applied %d staged updates", runID, applied)
	} else {
		log.Debugf("[Sweeper] Resync run %s had nothing to apply", runID)
	}
}

func intervalFromEnv(key string, fallbackMinutes int) time.Duration {
	if raw := env.GetEnv(key, ""); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return time.Duration(v) * time.Minute
		}
		log.Warnf("[Sweeper] Invalid %s value %q, using default", key, raw)
	}
	return time.Duration(fallbackMinutes) * time.Minute
}
