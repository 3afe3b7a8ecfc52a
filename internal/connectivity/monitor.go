// Package connectivity determines network and service reachability with
// result caching and change notification. The Monitor is an injectable
// component instance; its state has a single writer.
package connectivity

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tildaslashalef/fieldsync/internal/config"
	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

// State is the cached connectivity snapshot
type State struct {
	IsConnected   bool
	LastCheckedAt time.Time
}

// Listener receives the new status on every online/offline transition
type Listener func(online bool)

// Monitor performs tiered reachability probes and caches the result within
// a freshness window. Probe failures are mapped to "unreachable", never
// surfaced as errors.
type Monitor struct {
	healthURL    string
	fallbackURL  string
	freshness    time.Duration
	probeTimeout time.Duration
	interval     time.Duration

	httpClient *http.Client
	logger     *loggy.Logger

	// linkCheck reports device-level network attachment; replaceable in tests
	linkCheck func() bool

	mu         sync.Mutex
	state      State
	listeners  map[int]Listener
	nextListen int
}

// NewMonitor creates a connectivity monitor probing the given service health
// endpoint, falling back to the configured well-known external host
func NewMonitor(healthURL string, cfg config.ConnectivityConfig, logger *loggy.Logger) *Monitor {
	return &Monitor{
		healthURL:    healthURL,
		fallbackURL:  cfg.FallbackURL,
		freshness:    cfg.Freshness,
		probeTimeout: cfg.ProbeTimeout,
		interval:     cfg.CheckInterval,
		httpClient:   &http.Client{},
		logger:       logger,
		linkCheck:    hasActiveInterface,
		listeners:    make(map[int]Listener),
	}
}

// CurrentStatus returns the current reachability status. A cached result is
// returned when it is within the freshness window unless forceRefresh is set.
func (m *Monitor) CurrentStatus(ctx context.Context, forceRefresh bool) bool {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if !forceRefresh && !state.LastCheckedAt.IsZero() && time.Since(state.LastCheckedAt) < m.freshness {
		return state.IsConnected
	}

	return m.refresh(ctx)
}

// Snapshot returns the cached connectivity state without probing
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener for online/offline transitions and returns
// an unsubscribe function. Listeners are notified only on changes, not on
// steady-state checks.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextListen
	m.nextListen++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Start runs periodic reachability checks until the context is cancelled.
// Reconnect transitions observed here drive automatic sync runs.
func (m *Monitor) Start(ctx context.Context) {
	// Seed the cache so the first transition fires against a known state
	m.refresh(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// refresh runs the tiered probe and updates the cached state
func (m *Monitor) refresh(ctx context.Context) bool {
	online := m.probe(ctx)

	m.mu.Lock()
	previous := m.state.IsConnected
	seeded := !m.state.LastCheckedAt.IsZero()
	m.state = State{IsConnected: online, LastCheckedAt: time.Now()}

	var notify []Listener
	if seeded && previous != online {
		notify = make([]Listener, 0, len(m.listeners))
		for _, fn := range m.listeners {
			notify = append(notify, fn)
		}
	}
	m.mu.Unlock()

	if len(notify) > 0 {
		m.logger.Info("Connectivity changed", "online", online)
		for _, fn := range notify {
			fn(online)
		}
	}

	return online
}

// probe runs the tiered reachability check: device link, service health
// endpoint, then a well-known external host. First success wins.
func (m *Monitor) probe(ctx context.Context) bool {
	if !m.linkCheck() {
		m.logger.Debug("No active network interface")
		return false
	}

	if m.probeURL(ctx, m.healthURL) {
		return true
	}

	m.logger.Debug("Service health probe failed, trying fallback", "url", m.fallbackURL)
	return m.probeURL(ctx, m.fallbackURL)
}

// probeURL issues a bounded HEAD request; any error or timeout means unreachable
func (m *Monitor) probeURL(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Debug("Reachability probe failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// hasActiveInterface reports whether a non-loopback interface is up
func hasActiveInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "docker") || strings.HasPrefix(iface.Name, "veth") {
			continue
		}
		return true
	}

	return false
}
