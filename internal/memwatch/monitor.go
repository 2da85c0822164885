// Package memwatch bounds the resident memory held by materialized tree
// nodes. It samples process memory on a fixed interval, classifies the
// pressure level, and evicts the children of collapsed nodes when pressure
// is high. Sampling failures are logged and skipped; monitoring must never
// take the session down.
package memwatch

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luisOO/json-view/internal/events"
	"github.com/luisOO/json-view/internal/tree"
)

// Level classifies current memory pressure.
type Level int32

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
)

var levelStr = [...]string{
	LevelNormal:   "normal",
	LevelWarning:  "warning",
	LevelCritical: "critical",
}

func (l Level) String() string {
	if int(l) >= len(levelStr) {
		return "unknown"
	}
	return levelStr[l]
}

// Defaults for Config fields left zero.
const (
	DefaultInterval      = 2 * time.Second
	DefaultWarnBytes     = 300 << 20
	DefaultCriticalBytes = 500 << 20
	DefaultWarningStreak = 3
	DefaultMinIdle       = 30 * time.Second
)

// Config holds monitor settings. Thresholds are configuration, not policy.
type Config struct {
	Interval      time.Duration // sampling period
	WarnBytes     uint64        // Warning threshold
	CriticalBytes uint64        // Critical threshold
	WarningStreak int           // consecutive Warnings that escalate to an aggressive sweep
	MinIdle       time.Duration // regular sweeps skip nodes touched more recently than this
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.WarnBytes == 0 {
		c.WarnBytes = DefaultWarnBytes
	}
	if c.CriticalBytes == 0 {
		c.CriticalBytes = DefaultCriticalBytes
	}
	if c.WarningStreak <= 0 {
		c.WarningStreak = DefaultWarningStreak
	}
	if c.MinIdle <= 0 {
		c.MinIdle = DefaultMinIdle
	}
	return c
}

// Status is the externally visible monitor state.
type Status struct {
	Level         Level
	ResidentBytes uint64
	CacheSize     int
}

// sweepAction is what one sample decided to do.
type sweepAction int

const (
	actNone sweepAction = iota
	actSweep
	actAggressive
)

// classify maps a memory sample to a pressure level.
func classify(resident uint64, cfg Config) Level {
	switch {
	case resident >= cfg.CriticalBytes:
		return LevelCritical
	case resident >= cfg.WarnBytes:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// decide turns a pressure level and the running Warning streak into a sweep
// action and the new streak. Pure, so scheduling and policy test separately.
func decide(level Level, streak int, cfg Config) (sweepAction, int) {
	switch level {
	case LevelCritical:
		return actAggressive, 0
	case LevelWarning:
		streak++
		if streak >= cfg.WarningStreak {
			return actAggressive, 0
		}
		return actSweep, streak
	default:
		return actNone, 0
	}
}

// Monitor periodically samples memory and evicts collapsed subtrees.
type Monitor struct {
	tree *tree.Tree
	bus  *events.Bus
	log  zerolog.Logger
	cfg  Config

	// sample reports current resident bytes; replaced in tests.
	sample func() (uint64, error)

	mu      sync.Mutex
	level   Level
	streak  int
	last    Status
	running bool
	stopCh  chan struct{}
}

// New builds a Monitor over t publishing to bus.
func New(t *tree.Tree, bus *events.Bus, log zerolog.Logger, cfg Config) *Monitor {
	return &Monitor{
		tree:   t,
		bus:    bus,
		log:    log.With().Str("component", "memwatch").Logger(),
		cfg:    cfg.withDefaults(),
		sample: heapSample,
		stopCh: make(chan struct{}),
	}
}

func heapSample() (uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, nil
}

// Start begins background sampling.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.RunOnce()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts background sampling.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
}

// Status returns the most recent sample's classification.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// RunOnce performs a single sample-classify-act cycle. A sampling error is
// logged and the cycle skipped; it never propagates.
func (m *Monitor) RunOnce() {
	resident, err := m.sample()
	if err != nil {
		m.log.Warn().Err(err).Msg("memory sample failed; skipping cycle")
		return
	}

	level := classify(resident, m.cfg)

	m.mu.Lock()
	act, streak := decide(level, m.streak, m.cfg)
	changed := level != m.level
	m.level = level
	m.streak = streak
	m.mu.Unlock()

	switch act {
	case actSweep:
		m.sweep(false)
	case actAggressive:
		m.sweep(true)
	}
	if level == LevelCritical {
		debug.FreeOSMemory()
	}

	st := Status{Level: level, ResidentBytes: resident, CacheSize: m.tree.CacheSize()}
	m.mu.Lock()
	m.last = st
	m.mu.Unlock()

	if changed {
		m.log.Info().Str("level", level.String()).Uint64("resident", resident).Msg("memory level changed")
	}
	m.bus.Publish(events.Event{Type: events.TypeMemoryLevel, Data: map[string]any{
		"level":    level.String(),
		"resident": resident,
		"cache":    st.CacheSize,
	}})
}

// sweep evicts the children of loaded, collapsed nodes. Regular sweeps skip
// nodes touched within MinIdle; aggressive sweeps ignore recency. Nodes that
// are expanded, loading, on the focus path, or that shelter an expanded
// descendant are never evicted.
func (m *Monitor) sweep(aggressive bool) {
	cutoff := time.Now().Add(-m.cfg.MinIdle)

	var candidates []*tree.Node
	m.tree.Walk(func(n *tree.Node) bool {
		if n.State() != tree.StateLoaded || n.Expanded() {
			return true
		}
		if m.tree.OnFocusPath(n) {
			return true
		}
		if !aggressive && n.LastAccess().After(cutoff) {
			return true
		}
		if hasExpandedDescendant(n) {
			return true
		}
		candidates = append(candidates, n)
		return true
	})

	evicted := 0
	for _, n := range candidates {
		if m.tree.Evict(n) {
			evicted++
			m.bus.Publish(events.Event{Type: events.TypeNodeEvicted, Data: map[string]any{
				"path": n.Path.String(),
			}})
		}
	}
	if evicted > 0 {
		m.log.Debug().Int("evicted", evicted).Bool("aggressive", aggressive).Msg("eviction sweep")
		m.bus.Publish(events.Event{Type: events.TypeEvictionSweep, Data: map[string]any{
			"evicted":    evicted,
			"aggressive": aggressive,
		}})
	}
}

func hasExpandedDescendant(n *tree.Node) bool {
	for _, c := range n.Children() {
		if c.Expanded() || hasExpandedDescendant(c) {
			return true
		}
	}
	return false
}
