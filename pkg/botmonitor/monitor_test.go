package botmonitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Write(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func TestMonitorCounters(t *testing.T) {
	m := New(10, 0)
	m.Record(Event{Stage: StageInbound, Status: StatusOK})
	m.Record(Event{Stage: StageEngine, Status: StatusOK})
	m.Record(Event{Stage: StageEngine, Status: StatusError})
	m.Record(Event{Stage: StageOutbound, Status: StatusOK})
	m.Record(Event{Stage: StageDelivery, Status: StatusOK})
	m.Record(Event{Stage: StageDelivery, Status: StatusError})
	m.Record(Event{Stage: StageReminder, Status: StatusOK})

	s := m.GetStats()
	assert.EqualValues(t, 1, s.TotalInbound)
	assert.EqualValues(t, 2, s.TotalEngineCalls)
	assert.EqualValues(t, 1, s.TotalEngineReplies)
	assert.EqualValues(t, 1, s.TotalOutbound)
	assert.EqualValues(t, 1, s.TotalDeliveries)
	assert.EqualValues(t, 1, s.TotalReminders)
	assert.EqualValues(t, 2, s.TotalErrors)
	assert.Len(t, s.RecentEvents, 7)
}

func TestMonitorRingKeepsNewest(t *testing.T) {
	m := New(3, 0)
	for _, kind := range []string{"a", "b", "c", "d", "e"} {
		m.Record(Event{Stage: StageInbound, Kind: kind})
	}

	recent := m.GetStats().RecentEvents
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].Kind)
	assert.Equal(t, "e", recent[2].Kind)
}

func TestMonitorTTLHidesOldEvents(t *testing.T) {
	m := New(5, time.Minute)
	m.Record(Event{Stage: StageInbound, Kind: "old", Timestamp: time.Now().UTC().Add(-time.Hour)})
	m.Record(Event{Stage: StageInbound, Kind: "new"})

	recent := m.GetStats().RecentEvents
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].Kind)
}

func TestMonitorSinksReceiveEventsOnClose(t *testing.T) {
	sink := &captureSink{}
	m := New(10, 0, sink)
	m.Record(Event{Stage: StageOutbound, Status: StatusOK, TenantID: "t1"})
	m.Record(Event{Stage: StageInbound, TenantID: "t1"})
	m.Close()
	m.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, StageOutbound, sink.events[0].Stage)
}
