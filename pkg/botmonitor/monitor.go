package botmonitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StageInbound  = "inbound"
	StageEngine   = "engine"
	StageOutbound = "outbound" // one per answered inbound message
	StageDelivery = "delivery" // one per provider send call
	StageReminder = "reminder"

	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	TenantID   string            `json:"tenant_id"`
	ChatJID    string            `json:"chat_jid"`
	Provider   string            `json:"provider"`
	Stage      string            `json:"stage"`       // inbound | engine | outbound | delivery | reminder
	Kind       string            `json:"kind"`        // text | image | intent | flow | ...
	Status     string            `json:"status"`      // ok | error | skipped
	Error      string            `json:"error"`       // optional
	Metadata   map[string]string `json:"metadata"`    // optional
	DurationMs int64             `json:"duration_ms"` // optional
}

type Stats struct {
	TotalInbound       int64   `json:"total_inbound"`
	TotalEngineCalls   int64   `json:"total_engine_calls"`
	TotalEngineReplies int64   `json:"total_engine_replies"`
	TotalOutbound      int64   `json:"total_outbound"`
	TotalDeliveries    int64   `json:"total_deliveries"`
	TotalReminders     int64   `json:"total_reminders"`
	TotalErrors        int64   `json:"total_errors"`
	DroppedSinkEvents  int64   `json:"dropped_sink_events"`
	RecentEvents       []Event `json:"recent_events"`
}

// Sink receives every recorded event off the hot path (database, broker).
type Sink interface {
	Write(ctx context.Context, e Event) error
}

type Monitor struct {
	eventsMu sync.Mutex
	events   []Event
	idx      int
	count    int
	ttl      time.Duration

	totalInbound       int64
	totalEngineCalls   int64
	totalEngineReplies int64
	totalOutbound      int64
	totalDeliveries    int64
	totalReminders     int64
	totalErrors        int64
	dropped            int64

	sinks   []Sink
	queueMu sync.RWMutex
	queue   chan Event
	done    chan struct{}
	closed  bool
}

// New builds a ring of size events. Events older than ttl are hidden from GetStats (0 keeps all).
func New(size int, ttl time.Duration, sinks ...Sink) *Monitor {
	if size <= 0 {
		size = 200
	}
	m := &Monitor{events: make([]Event, size), ttl: ttl, sinks: sinks}
	if len(sinks) > 0 {
		m.queue = make(chan Event, size)
		m.done = make(chan struct{})
		go m.drain()
	}
	return m
}

func (m *Monitor) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	switch e.Stage {
	case StageInbound:
		atomic.AddInt64(&m.totalInbound, 1)
	case StageEngine:
		atomic.AddInt64(&m.totalEngineCalls, 1)
		if e.Status == StatusOK {
			atomic.AddInt64(&m.totalEngineReplies, 1)
		}
	case StageOutbound:
		atomic.AddInt64(&m.totalOutbound, 1)
	case StageDelivery:
		if e.Status == StatusOK {
			atomic.AddInt64(&m.totalDeliveries, 1)
		}
	case StageReminder:
		if e.Status == StatusOK {
			atomic.AddInt64(&m.totalReminders, 1)
		}
	}
	if e.Status == StatusError {
		atomic.AddInt64(&m.totalErrors, 1)
	}

	m.eventsMu.Lock()
	m.events[m.idx] = e
	m.idx = (m.idx + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	m.eventsMu.Unlock()

	m.queueMu.RLock()
	if m.queue != nil && !m.closed {
		select {
		case m.queue <- e:
		default:
			atomic.AddInt64(&m.dropped, 1)
		}
	}
	m.queueMu.RUnlock()
}

func (m *Monitor) drain() {
	defer close(m.done)
	for e := range m.queue {
		for _, s := range m.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Write(ctx, e); err != nil {
				logrus.WithError(err).WithField("stage", e.Stage).Warn("[MONITOR] sink write failed")
			}
			cancel()
		}
	}
}

// Close flushes queued events to the sinks and stops the drain goroutine.
func (m *Monitor) Close() {
	m.queueMu.Lock()
	if m.queue == nil || m.closed {
		m.queueMu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.queueMu.Unlock()
	<-m.done
}

func (m *Monitor) GetStats() Stats {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()

	res := make([]Event, 0, m.count)
	cutoff := time.Time{}
	if m.ttl > 0 {
		cutoff = time.Now().UTC().Add(-m.ttl)
	}
	start := (m.idx - m.count) % len(m.events)
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		e := m.events[(start+i)%len(m.events)]
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		res = append(res, e)
	}

	return Stats{
		TotalInbound:       atomic.LoadInt64(&m.totalInbound),
		TotalEngineCalls:   atomic.LoadInt64(&m.totalEngineCalls),
		TotalEngineReplies: atomic.LoadInt64(&m.totalEngineReplies),
		TotalOutbound:      atomic.LoadInt64(&m.totalOutbound),
		TotalDeliveries:    atomic.LoadInt64(&m.totalDeliveries),
		TotalReminders:     atomic.LoadInt64(&m.totalReminders),
		TotalErrors:        atomic.LoadInt64(&m.totalErrors),
		DroppedSinkEvents:  atomic.LoadInt64(&m.dropped),
		RecentEvents:       res,
	}
}
