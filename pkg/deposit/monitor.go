package deposit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultInterval = 15 * time.Second

// StatusReporter receives periodic monitor summaries.
type StatusReporter interface {
	SendStatusMessage(ctx context.Context, depositsSeen int, uptime time.Duration, lastCheck time.Time)
}

// Monitor runs Tracker.Check on a fixed interval.
type Monitor struct {
	tracker   *Tracker
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	waitGroup sync.WaitGroup
	logger    logrus.FieldLogger

	reporter     StatusReporter
	statusEvery  time.Duration
	startedAt    time.Time
	mu           sync.Mutex
	depositsSeen int
	lastCheck    time.Time
}

// NewMonitor creates a new monitor with the provided dependencies
func NewMonitor(tracker *Tracker, interval time.Duration, logger logrus.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		tracker:  tracker,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// WithStatusReports sends a summary to reporter every interval. Call it
// before Start.
func (m *Monitor) WithStatusReports(reporter StatusReporter, every time.Duration) *Monitor {
	if every > 0 {
		m.reporter = reporter
		m.statusEvery = every
	}
	return m
}

// Stats returns the number of deposits found since Start and the time of
// the last completed check.
func (m *Monitor) Stats() (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depositsSeen, m.lastCheck
}

// Start checks once immediately, then keeps checking in the background
// until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Infof("Starting deposit monitor for %s every %s...", m.tracker.Wallet(), m.interval)
	m.startedAt = time.Now()
	m.waitGroup.Add(1)

	// First check immediately
	m.check(ctx, "Error in initial deposit check")

	var statusC <-chan time.Time
	var statusTicker *time.Ticker
	if m.reporter != nil {
		statusTicker = time.NewTicker(m.statusEvery)
		statusC = statusTicker.C
	}

	go func() {
		defer m.waitGroup.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		if statusTicker != nil {
			defer statusTicker.Stop()
		}

		for {
			select {
			case <-ticker.C:
				m.check(ctx, "Error checking deposits")
			case <-statusC:
				seen, last := m.Stats()
				m.reporter.SendStatusMessage(ctx, seen, time.Since(m.startedAt), last)
			case <-m.stopCh:
				m.logger.Info("Stopping deposit monitor...")
				return
			case <-ctx.Done():
				m.logger.Info("Context cancelled, stopping deposit monitor...")
				return
			}
		}
	}()

	return nil
}

func (m *Monitor) check(ctx context.Context, failure string) {
	found, err := m.tracker.Check(ctx)
	if err != nil {
		m.logger.WithError(err).Error(failure)
		return
	}
	m.mu.Lock()
	m.depositsSeen += len(found)
	m.lastCheck = time.Now()
	m.mu.Unlock()
}

// Stop gracefully stops the monitoring process. It is safe to call more
// than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.waitGroup.Wait()
}
