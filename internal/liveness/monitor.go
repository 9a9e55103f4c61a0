package liveness

import (
	"context"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lymphgo/lymph/internal/stat"
)

// pid is stamped into diagnostic log lines so multi-process deployments can
// correlate which process emitted a given tick.
var pid = os.Getpid()

const rttWindowCapacity = 100

// rttFactor scales seconds into the milliseconds the sample window stores
// values in.
const rttFactor = 1000.0

// Monitor tracks one peer connection's liveness. It is created alongside the
// connection, immediately spawns its two cooperative loops, and is retired
// only once Close has moved it to StatusClosed.
//
// A Monitor never owns its transport: Ping and Disconnect are invoked on the
// Transport supplied at construction, which this package treats as an
// external collaborator.
type Monitor struct {
	endpoint   string
	transport  Transport
	thresholds Thresholds
	logger     zerolog.Logger
	now        func() time.Time

	mu               sync.Mutex
	status           Status
	createdAt        time.Time
	lastSeen         time.Time // zero value means "never seen"
	lastMessage      time.Time
	lastStatusChange time.Time

	receivedCount int
	sentCount     int
	heartbeats    int

	rtt *stat.Window

	closeOnce sync.Once
	closeCh   chan struct{}
	loopsDone sync.WaitGroup
}

// Settings configures a new Monitor. Logger may be left at its zero value,
// in which case Monitor logs nothing (zerolog.Logger's zero value is a
// working no-op logger). Now defaults to time.Now.
type Settings struct {
	Thresholds Thresholds
	Logger     zerolog.Logger
	Now        func() time.Time
}

// New creates a Monitor for endpoint over transport and starts its
// heartbeat and status loops as goroutines. Callers must eventually call
// Close, directly or via the transport's own teardown, or the loops leak.
func New(endpoint string, transport Transport, settings Settings) *Monitor {
	if settings.Thresholds.HeartbeatInterval <= 0 ||
		settings.Thresholds.Timeout <= 0 ||
		settings.Thresholds.IdleTimeout <= 0 ||
		settings.Thresholds.UnresponsiveDisconnect <= 0 ||
		settings.Thresholds.IdleDisconnect <= 0 {
		panic("liveness: all Thresholds fields must be positive")
	}
	now := settings.Now
	if now == nil {
		now = time.Now
	}

	t := now()
	m := &Monitor{
		endpoint:         endpoint,
		transport:        transport,
		thresholds:       settings.Thresholds,
		logger:           settings.Logger,
		now:              now,
		status:           StatusUnknown,
		createdAt:        t,
		lastMessage:      t,
		lastStatusChange: t,
		rtt:              stat.NewWindow(rttWindowCapacity),
		closeCh:          make(chan struct{}),
	}

	m.loopsDone.Add(2)
	go m.heartbeatLoop()
	go m.statusLoop()

	return m
}

// OnRecv is called by the transport reader whenever a frame arrives from
// the peer. It always refreshes lastSeen; it refreshes lastMessage too
// unless msg is idle chatter.
func (m *Monitor) OnRecv(msg Message) {
	now := m.now()
	m.mu.Lock()
	m.lastSeen = now
	if !msg.IsIdleChatter() {
		m.lastMessage = now
	}
	m.receivedCount++
	m.mu.Unlock()
}

// OnSend is called before a frame is transmitted to the peer.
func (m *Monitor) OnSend(msg Message) {
	now := m.now()
	m.mu.Lock()
	if !msg.IsIdleChatter() {
		m.lastMessage = now
	}
	m.sentCount++
	m.mu.Unlock()
}

// Close idempotently transitions the Monitor to StatusClosed and requests
// the transport disconnect the peer. Both loops exit at their next
// iteration; Close does not wait for them.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.setStatusLocked(StatusClosed)
		m.mu.Unlock()
		close(m.closeCh)
		m.transport.Disconnect(m.endpoint)
	})
}

// IsAlive reports whether status is Responsive or Idle — the two states in
// which the connection is still considered usable, just possibly quiet.
func (m *Monitor) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusResponsive || m.status == StatusIdle
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Stats returns a point-in-time snapshot of the connection's health.
func (m *Monitor) Stats() Snapshot {
	rtt := m.rtt.Stats()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Endpoint: m.endpoint,
		RTT:      RTTStats{Mean: rtt.Mean, StdDev: rtt.StdDev},
		Phi:      m.phiLocked(),
		Status:   m.status,
		Sent:     m.sentCount,
		Received: m.receivedCount,
	}
}

// phiLocked computes the Phi-accrual-style suspicion score from the sample
// window's empirical survival function: phi = -log10(P(rtt >= elapsed)).
// Callers must hold m.mu.
func (m *Monitor) phiLocked() float64 {
	elapsed := 0.0
	if !m.lastSeen.IsZero() {
		elapsed = m.now().Sub(m.lastSeen).Seconds() * rttFactor
	}
	p := m.rtt.P(elapsed)
	if p == 0 {
		return math.Inf(1)
	}
	return -math.Log10(p)
}

// setStatusLocked updates last_status_change only when status actually
// changes, matching the original connection's set_status. Callers must
// hold m.mu.
func (m *Monitor) setStatusLocked(s Status) {
	if s != m.status {
		m.lastStatusChange = m.now()
	}
	m.status = s
}

// heartbeatLoop pings the peer once per HeartbeatInterval, folding
// successful round trips into the sample window. A ping timeout or
// transport error is swallowed: the resulting silence is what drives the
// status loop to Unresponsive, not an explicit error path.
func (m *Monitor) heartbeatLoop() {
	defer m.loopsDone.Done()
	interval := m.thresholds.HeartbeatInterval
	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		start := m.now()
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		err := m.transport.Ping(ctx, m.endpoint)
		cancel()
		if err == nil {
			m.rtt.Add(m.now().Sub(start).Seconds() * rttFactor)
			m.mu.Lock()
			m.heartbeats++
			m.mu.Unlock()
		}

		select {
		case <-m.closeCh:
			return
		case <-time.After(interval):
		}
	}
}

// statusLoop re-evaluates the state machine and logs a diagnostic line once
// per Timeout, until the connection is closed.
func (m *Monitor) statusLoop() {
	defer m.loopsDone.Done()
	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		m.tick()
		m.logTick()

		select {
		case <-m.closeCh:
			return
		case <-time.After(m.thresholds.Timeout):
		}
	}
}

// tick applies the state machine's ordered transitions for one status-loop
// iteration. It is separated from statusLoop so it can be exercised
// directly, without waiting on real sleeps, in tests.
func (m *Monitor) tick() {
	shouldClose := func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.lastSeen.IsZero() || m.status == StatusClosed {
			return false
		}
		now := m.now()
		th := m.thresholds

		switch {
		case m.status == StatusUnresponsive && now.Sub(m.lastStatusChange) >= th.UnresponsiveDisconnect:
			return true
		case now.Sub(m.lastSeen) >= th.Timeout:
			m.setStatusLocked(StatusUnresponsive)
		case m.status == StatusIdle && now.Sub(m.lastStatusChange) >= th.IdleDisconnect:
			return true
		case now.Sub(m.lastMessage) >= th.IdleTimeout:
			m.setStatusLocked(StatusIdle)
		default:
			m.setStatusLocked(StatusResponsive)
		}
		return false
	}()

	if shouldClose {
		m.Close()
	}
}

// logTick emits the per-tick diagnostic line: rolling-window and lifetime
// RTT stats, phi, heartbeat rate, and status. This mirrors a per-connection
// debug line the ping/status machinery has always produced; it is gated at
// debug level so it costs nothing unless the logger is configured to show
// it.
func (m *Monitor) logTick() {
	roundtrip := m.rtt.Stats()
	total := m.rtt.TotalStats()

	m.mu.Lock()
	uptime := m.now().Sub(m.createdAt).Seconds()
	heartbeats := m.heartbeats
	status := m.status
	phi := m.phiLocked()
	m.mu.Unlock()

	if uptime < 1 {
		uptime = 1
	}

	m.logger.Debug().
		Int("pid", pid).
		Str("endpoint", m.endpoint).
		Float64("rtt_mean_ms", roundtrip.Mean).
		Float64("rtt_stddev_ms", roundtrip.StdDev).
		Float64("rtt_total_mean_ms", total.Mean).
		Float64("rtt_total_stddev_ms", total.StdDev).
		Float64("phi", phi).
		Float64("ping_rate", float64(heartbeats)/uptime).
		Str("status", status.String()).
		Msg("connection liveness tick")
}
