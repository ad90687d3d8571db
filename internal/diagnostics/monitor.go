package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/logging"
)

// Anomaly kinds
const (
	AnomalyRace  = "race"
	AnomalySlow  = "slow"
	AnomalyStuck = "stuck"
)

// AnomalyRecorder receives one call per detected anomaly
type AnomalyRecorder interface {
	RecordAnomaly(kind string)
}

// Config configures a Monitor
type Config struct {
	Enabled           bool
	Verbose           bool
	RaceWindow        time.Duration
	SlowThreshold     time.Duration
	DeadlockThreshold time.Duration
	StaleTimeout      time.Duration

	Logger   *zap.Logger
	Recorder AnomalyRecorder

	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RaceWindow:        10 * time.Millisecond,
		SlowThreshold:     5 * time.Second,
		DeadlockThreshold: 30 * time.Second,
		StaleTimeout:      5 * time.Minute,
	}
}

// Tracker describes one in-flight operation
type Tracker struct {
	ID          string    `json:"id"`
	Goroutine   string    `json:"goroutine"`
	GoroutineID uint64    `json:"goroutine_id"`
	Type        string    `json:"type"`
	ResourceID  string    `json:"resource_id"`
	StartTime   time.Time `json:"start_time"`
	// ParentID is the operation already in flight on the same goroutine
	ParentID string `json:"parent_id,omitempty"`
	Stack    string `json:"stack,omitempty"`
}

// Stats is a snapshot of the monitor counters
type Stats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Anomalies int64 `json:"anomalies"`
}

// String formats the snapshot for logs and the CLI
func (s Stats) String() string {
	return fmt.Sprintf("diagnostics: total=%d active=%d anomalies=%d", s.Total, s.Active, s.Anomalies)
}

// Monitor tracks in-flight operations and flags likely races, slow
// operations and stuck operations. Anomalies are logged and counted only.
type Monitor struct {
	config  Config
	logger  *zap.Logger
	now     func() time.Time
	enabled atomic.Bool
	verbose atomic.Bool

	active      sync.Map // operation id → *Tracker
	byGoroutine sync.Map // goroutine id → operation id
	lastAccess  sync.Map // "type:resource" → time.Time

	total      atomic.Int64
	concurrent atomic.Int64
	anomalies  atomic.Int64

	scanMu sync.Mutex
}

// New creates a monitor; zero thresholds take their defaults
func New(config Config) *Monitor {
	defaults := DefaultConfig()
	if config.RaceWindow <= 0 {
		config.RaceWindow = defaults.RaceWindow
	}
	if config.SlowThreshold <= 0 {
		config.SlowThreshold = defaults.SlowThreshold
	}
	if config.DeadlockThreshold <= 0 {
		config.DeadlockThreshold = defaults.DeadlockThreshold
	}
	if config.StaleTimeout <= 0 {
		config.StaleTimeout = defaults.StaleTimeout
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	m := &Monitor{
		config: config,
		logger: logging.OrNop(config.Logger).With(zap.String("component", "diagnostics")),
		now:    config.Now,
	}
	m.enabled.Store(config.Enabled)
	m.verbose.Store(config.Verbose)
	return m
}

// SetEnabled turns monitoring on or off
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Enabled reports whether monitoring is on
func (m *Monitor) Enabled() bool {
	return m != nil && m.enabled.Load()
}

// SetVerbose toggles stack capture and per-operation logging
func (m *Monitor) SetVerbose(verbose bool) {
	m.verbose.Store(verbose)
}

// TrackStart records the start of an operation and returns its id, or "" when
// monitoring is disabled. An operation on the same type and resource within
// the race window of the previous one counts as a potential race.
func (m *Monitor) TrackStart(opType, resourceID string) string {
	if !m.Enabled() {
		return ""
	}

	gid := goroutineID()
	tracker := &Tracker{
		Goroutine:   fmt.Sprintf("goroutine-%d", gid),
		GoroutineID: gid,
		Type:        opType,
		ResourceID:  resourceID,
		StartTime:   m.now(),
	}
	if tracker.ResourceID == "" {
		tracker.ResourceID = "unknown"
	}
	if m.verbose.Load() {
		tracker.Stack = string(debug.Stack())
	}

	if parent, ok := m.byGoroutine.Load(gid); ok {
		tracker.ParentID = parent.(string)
	}

	for {
		tracker.ID = newOperationID()
		if _, loaded := m.active.LoadOrStore(tracker.ID, tracker); !loaded {
			break
		}
	}
	m.byGoroutine.Store(gid, tracker.ID)

	m.total.Add(1)
	m.concurrent.Add(1)

	m.checkRace(opType, resourceID, tracker.StartTime)

	if m.verbose.Load() {
		m.logger.Info("Operation started",
			zap.String("id", tracker.ID),
			zap.String("type", opType),
			zap.String("goroutine", tracker.Goroutine),
			zap.String("resource", resourceID))
	}

	return tracker.ID
}

// TrackEnd records the end of an operation started by TrackStart
func (m *Monitor) TrackEnd(id string, success bool) {
	if !m.Enabled() || id == "" {
		return
	}

	value, ok := m.active.LoadAndDelete(id)
	if !ok {
		return
	}
	tracker := value.(*Tracker)
	duration := m.now().Sub(tracker.StartTime)
	m.release(tracker)
	m.concurrent.Add(-1)

	if duration > m.config.SlowThreshold {
		m.logger.Warn("Slow operation",
			zap.String("id", id),
			zap.String("type", tracker.Type),
			zap.Duration("duration", duration))
		m.anomaly(AnomalySlow, 1)
	}

	if m.verbose.Load() {
		m.logger.Info("Operation finished",
			zap.String("id", id),
			zap.String("type", tracker.Type),
			zap.Duration("duration", duration),
			zap.Bool("success", success))
	}
}

// release hands the goroutine back to the parent operation when it is still open
func (m *Monitor) release(t *Tracker) {
	if t.ParentID != "" {
		if _, open := m.active.Load(t.ParentID); open {
			m.byGoroutine.CompareAndSwap(t.GoroutineID, t.ID, t.ParentID)
			return
		}
	}
	m.byGoroutine.CompareAndDelete(t.GoroutineID, t.ID)
}

// Current returns the innermost operation in flight on the calling goroutine
func (m *Monitor) Current() (Tracker, bool) {
	if !m.Enabled() {
		return Tracker{}, false
	}
	id, ok := m.byGoroutine.Load(goroutineID())
	if !ok {
		return Tracker{}, false
	}
	value, ok := m.active.Load(id)
	if !ok {
		return Tracker{}, false
	}
	return *value.(*Tracker), true
}

func (m *Monitor) checkRace(opType, resourceID string, now time.Time) {
	if resourceID == "" {
		return
	}

	key := opType + ":" + resourceID
	prev, loaded := m.lastAccess.Swap(key, now)
	if !loaded {
		return
	}
	if since := now.Sub(prev.(time.Time)); since < m.config.RaceWindow {
		m.logger.Warn("Potential race",
			zap.String("type", opType),
			zap.String("resource", resourceID),
			zap.Duration("since_last_access", since))
		m.anomaly(AnomalyRace, 1)
	}
}

// CheckForDeadlocks returns the operations open longer than the deadlock
// threshold, logging each and adding their count to the anomalies
func (m *Monitor) CheckForDeadlocks() []Tracker {
	if !m.Enabled() {
		return nil
	}

	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	now := m.now()
	var stuck []Tracker
	m.active.Range(func(_, value any) bool {
		t := value.(*Tracker)
		if now.Sub(t.StartTime) > m.config.DeadlockThreshold {
			stuck = append(stuck, *t)
		}
		return true
	})
	if len(stuck) == 0 {
		return nil
	}

	sortByStart(stuck)
	m.logger.Error("Operations appear stuck",
		zap.Int("count", len(stuck)),
		zap.Duration("threshold", m.config.DeadlockThreshold))
	for _, t := range stuck {
		fields := []zap.Field{
			zap.String("id", t.ID),
			zap.String("type", t.Type),
			zap.String("goroutine", t.Goroutine),
			zap.Duration("open_for", now.Sub(t.StartTime)),
		}
		if t.ParentID != "" {
			fields = append(fields, zap.String("parent", t.ParentID))
		}
		if t.Stack != "" {
			fields = append(fields, zap.String("stack", t.Stack))
		}
		m.logger.Error("Stuck operation", fields...)
	}
	m.anomaly(AnomalyStuck, len(stuck))

	return stuck
}

// CleanupStaleOperations drops operations open longer than the stale
// timeout and returns how many were removed
func (m *Monitor) CleanupStaleOperations() int {
	now := m.now()
	removed := 0
	m.active.Range(func(key, value any) bool {
		t := value.(*Tracker)
		if now.Sub(t.StartTime) <= m.config.StaleTimeout {
			return true
		}
		if _, ok := m.active.LoadAndDelete(key); ok {
			m.release(t)
			m.concurrent.Add(-1)
			removed++
			m.logger.Warn("Removed stale operation",
				zap.String("id", t.ID),
				zap.String("type", t.Type))
		}
		return true
	})
	return removed
}

// Stats returns the current counters
func (m *Monitor) Stats() Stats {
	return Stats{
		Total:     m.total.Load(),
		Active:    m.concurrent.Load(),
		Anomalies: m.anomalies.Load(),
	}
}

// Active returns the in-flight operations ordered by start time
func (m *Monitor) Active() []Tracker {
	var out []Tracker
	m.active.Range(func(_, value any) bool {
		out = append(out, *value.(*Tracker))
		return true
	})
	sortByStart(out)
	return out
}

// Reset zeroes the total and anomaly counters and forgets access history.
// In-flight operations and the active count are kept.
func (m *Monitor) Reset() {
	m.total.Store(0)
	m.anomalies.Store(0)
	m.lastAccess.Range(func(key, _ any) bool {
		m.lastAccess.Delete(key)
		return true
	})
}

// Run scans for stuck and stale operations every interval until ctx is done
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckForDeadlocks()
			m.CleanupStaleOperations()
		}
	}
}

func (m *Monitor) anomaly(kind string, n int) {
	m.anomalies.Add(int64(n))
	if m.config.Recorder != nil {
		for i := 0; i < n; i++ {
			m.config.Recorder.RecordAnomaly(kind)
		}
	}
}

func sortByStart(ts []Tracker) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].StartTime.Equal(ts[j].StartTime) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].StartTime.Before(ts[j].StartTime)
	})
}

func newOperationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// goroutineID parses the current goroutine id from the stack header
// ("goroutine 42 [running]:")
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i > 0 {
		field = field[:i]
	}
	id, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
