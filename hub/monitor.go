/*
monitor.go - Background consistency monitor

PURPOSE:
  Periodically runs VerifySystemConsistency and logs drift between the
  ledger's circulating supply and the account balance sum.

DESIGN:
  - Single goroutine on a configurable ticker
  - Verification ONLY: the monitor never reconciles. Correction requires an
    explicit admin actor and reason (see reconcile.go), because silent
    correction could mask real accounting bugs.

USAGE:
  monitor := hub.NewMonitor(service, 15*time.Minute, logger)
  monitor.Start()
  // ... on shutdown
  monitor.Stop()
*/
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Monitor periodically verifies ledger consistency.
type Monitor struct {
	service  *Service
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a consistency monitor. Interval must be positive.
func NewMonitor(service *Service, interval time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		service:  service,
		interval: interval,
		log:      log,
	}
}

// Start begins periodic verification. The first check runs immediately.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		return
	}
	m.ticker = time.NewTicker(m.interval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run()
	m.log.Info().Dur("interval", m.interval).Msg("consistency monitor started")
}

// Stop halts the monitor and waits for an in-flight check to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.log.Info().Msg("consistency monitor stopped")
}

func (m *Monitor) run() {
	defer m.wg.Done()

	m.check()
	for {
		select {
		case <-m.ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := m.service.VerifySystemConsistency(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("consistency check failed")
		return
	}
	if report.IsConsistent {
		m.log.Debug().Int64("circulating", report.HubCirculatingSupply).Msg("supply consistent")
	}
	// Drift itself is already logged by VerifySystemConsistency.
}
