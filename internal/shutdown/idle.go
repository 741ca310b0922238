// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PendingWorkChecker reports whether deferred work (queued retries, an
// in-flight fan-out) is still outstanding. Idle shutdown is held off
// while it returns true.
type PendingWorkChecker func() bool

// IdleMonitor tracks request activity and signals when the server has
// been idle long enough to stop. Platforms like Fly.io restart the
// machine on the next inbound request.
type IdleMonitor struct {
	timeout        time.Duration
	logger         *slog.Logger
	activeRequests int64
	lastActivity   time.Time
	mu             sync.RWMutex
	shutdownChan   chan struct{}
	stopChan       chan struct{}
	excludePaths   []string
	pendingCheck   PendingWorkChecker
}

// IdleMonitorConfig holds configuration for the idle monitor.
type IdleMonitorConfig struct {
	Timeout      time.Duration // zero disables the monitor
	Logger       *slog.Logger
	ExcludePaths []string // paths that don't count as activity, e.g. /healthz
	PendingCheck PendingWorkChecker
}

// NewIdleMonitor creates a new idle monitor.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	return &IdleMonitor{
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
		stopChan:     make(chan struct{}),
		excludePaths: cfg.ExcludePaths,
		pendingCheck: cfg.PendingCheck,
	}
}

// Start begins monitoring for idle periods.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		m.logger.Debug("idle monitoring disabled (timeout=0)")
		return
	}

	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop stops the idle monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan returns a channel that is closed when the idle timeout
// is reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware tracks request activity, skipping excluded paths so health
// probes don't keep the server alive.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		excluded := false
		for _, prefix := range m.excludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				excluded = true
				break
			}
		}

		if !excluded {
			m.requestStart()
			defer m.requestEnd()
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) requestStart() {
	atomic.AddInt64(&m.activeRequests, 1)
	m.touch()
}

func (m *IdleMonitor) requestEnd() {
	atomic.AddInt64(&m.activeRequests, -1)
	m.touch()
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	// Check well inside the timeout window so shutdown is responsive
	checkInterval := m.timeout / 6
	if checkInterval < 5*time.Second {
		checkInterval = 5 * time.Second
	}
	if checkInterval > 30*time.Second {
		checkInterval = 30 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := atomic.LoadInt64(&m.activeRequests)
			m.mu.RLock()
			idleTime := time.Since(m.lastActivity)
			m.mu.RUnlock()

			pending := false
			if m.pendingCheck != nil {
				pending = m.pendingCheck()
			}

			// Pending retries reset the clock: the process must stick
			// around until the queue drains and then a full grace period.
			if active > 0 || pending {
				m.touch()
				idleTime = 0
			}

			if active == 0 && !pending && idleTime >= m.timeout {
				m.logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idleTime,
					"timeout", m.timeout,
				)
				close(m.shutdownChan)
				return
			}

			m.logger.Debug("idle check",
				"idle_time", idleTime,
				"active_requests", active,
				"pending_work", pending,
				"timeout", m.timeout,
			)
		}
	}
}
