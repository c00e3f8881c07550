package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// Prober checks whether the upstream is reachable.
type Prober interface {
	Health(ctx context.Context) error
}

// Signal is the read side of the monitor used by hooks and the replay driver.
type Signal interface {
	Online() bool
}

// Monitor tracks upstream reachability. The zero state is online until the
// first probe says otherwise.
type Monitor struct {
	prober   Prober
	logg     *logger.Logger
	interval time.Duration
	timeout  time.Duration

	online atomic.Bool
	forced atomic.Pointer[bool]

	mu   sync.Mutex
	subs map[int]chan bool
	next int
}

func New(prober Prober, cfg config.ConnectivityConfig, logg *logger.Logger) *Monitor {
	if logg == nil {
		logg = logger.Nop()
	}
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	m := &Monitor{
		prober:   prober,
		logg:     logg,
		interval: interval,
		timeout:  timeout,
		subs:     map[int]chan bool{},
	}
	m.online.Store(true)
	return m
}

// Online reports the current reachability, honoring a manual override.
func (m *Monitor) Online() bool {
	if forced := m.forced.Load(); forced != nil {
		return *forced
	}
	return m.online.Load()
}

// SetOnline pins the signal to a fixed value until ClearOverride.
func (m *Monitor) SetOnline(online bool) {
	before := m.Online()
	m.forced.Store(&online)
	if before != online {
		m.broadcast(online)
	}
}

// ClearOverride returns control to the probe loop.
func (m *Monitor) ClearOverride() {
	before := m.Online()
	m.forced.Store(nil)
	if after := m.Online(); after != before {
		m.broadcast(after)
	}
}

// Subscribe returns a channel receiving every transition and a cancel func.
// Slow subscribers miss intermediate transitions rather than block probing.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// Probe runs one health check and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Health(probeCtx)
	m.record(ctx, err == nil, err)
	return m.Online()
}

// Run probes on an interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) record(ctx context.Context, online bool, err error) {
	before := m.Online()
	prev := m.online.Swap(online)
	if prev == online {
		return
	}
	if online {
		m.logg.Info(ctx, "upstream reachable")
	} else {
		m.logg.Warn(m.logg.WithError(ctx, err), "upstream unreachable")
	}
	if after := m.Online(); after != before {
		m.broadcast(after)
	}
}

func (m *Monitor) broadcast(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
			// drop the stale value so the latest state wins
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}
