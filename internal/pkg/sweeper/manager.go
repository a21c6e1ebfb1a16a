package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AccShop/internal/pkg/env"
)

// DefaultInterval is how often stale invoices and webhook records are swept.
const DefaultInterval = time.Minute

// Store is the retention side of the deposit service.
type Store interface {
	ExpireStale(ctx context.Context) (int64, error)
	PurgeExpired(ctx context.Context) (invoices int64, webhooks int64, err error)
}

// Locker elects one sweeping instance per tick. A nil Locker always sweeps.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context) error
}

// Report counts what one sweep changed.
type Report struct {
	Expired         int64
	PurgedInvoices  int64
	PurgedWebhooks  int64
	SkippedNotOwner bool
}

// Manager runs the expiry sweep on a ticker.
type Manager struct {
	store    Store
	locker   Locker
	interval time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewManager(store Store, locker Locker, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{store: store, locker: locker, interval: interval}
}

// IntervalFromEnv reads SWEEPER_INTERVAL (e.g. "30s"), defaulting to one minute.
func IntervalFromEnv() time.Duration {
	return env.GetDuration("SWEEPER_INTERVAL", DefaultInterval)
}

// Start launches the sweep worker. It sweeps once immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	m.ticker = time.NewTicker(m.interval)

	m.wg.Add(1)
	go m.worker(m.ticker.C, m.stopCh)

	log.Infof("[Sweeper] Started, interval %s", m.interval)
}

// Stop halts the worker and waits for a running sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.stopCh)
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	log.Info("[Sweeper] Stopped")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) worker(tick <-chan time.Time, stopCh <-chan struct{}) {
	defer m.wg.Done()

	m.sweep()
	for {
		select {
		case <-stopCh:
			return
		case <-tick:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	report, err := m.RunOnce(ctx)
	if err != nil {
		log.Errorf("[Sweeper] sweep failed: %v", err)
		return
	}
	if report.Expired > 0 || report.PurgedInvoices > 0 || report.PurgedWebhooks > 0 {
		log.Infof("[Sweeper] expired=%d purged_invoices=%d purged_webhooks=%d",
			report.Expired, report.PurgedInvoices, report.PurgedWebhooks)
	}
}

func (m *Manager) unlock() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.locker.Unlock(ctx); err != nil {
		log.Warnf("[Sweeper] could not release lock, it expires in %s: %v", m.interval, err)
	}
}

// RunOnce demotes overdue pending invoices, then deletes invoices and webhook
// records past their retention.
func (m *Manager) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	if m.locker != nil {
		owner, err := m.locker.TryLock(ctx, m.interval)
		if err != nil {
			log.Warnf("[Sweeper] lock unavailable, sweeping anyway: %v", err)
		} else if !owner {
			report.SkippedNotOwner = true
			return report, nil
		} else {
			defer m.unlock()
		}
	}

	expired, err := m.store.ExpireStale(ctx)
	if err != nil {
		return report, err
	}
	report.Expired = expired

	report.PurgedInvoices, report.PurgedWebhooks, err = m.store.PurgeExpired(ctx)
	return report, err
}
