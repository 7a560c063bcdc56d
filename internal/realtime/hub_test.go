package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/attendance"
)

// loopback is an in-process stand-in for Redis shared by several hubs.
type loopback struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]map[int]func(string, []byte)
	next     int
}

func newLoopback() *loopback {
	return &loopback{handlers: make(map[uuid.UUID]map[int]func(string, []byte))}
}

func (l *loopback) PublishEvent(_ context.Context, eventID uuid.UUID, name string, payload []byte) error {
	l.mu.Lock()
	var hs []func(string, []byte)
	for _, h := range l.handlers[eventID] {
		hs = append(hs, h)
	}
	l.mu.Unlock()
	for _, h := range hs {
		h(name, payload)
	}
	return nil
}

func (l *loopback) SubscribeEvent(_ context.Context, eventID uuid.UUID, handler func(string, []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers[eventID] == nil {
		l.handlers[eventID] = make(map[int]func(string, []byte))
	}
	id := l.next
	l.next++
	l.handlers[eventID][id] = handler
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers[eventID], id)
	}, nil
}

func (l *loopback) subscribers(eventID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers[eventID])
}

func newClient(eventID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), EventID: eventID, send: make(chan WSMessage, 8)}
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func checkIns(msgs []WSMessage) []attendance.CheckInNotice {
	var out []attendance.CheckInNotice
	for _, m := range msgs {
		if m.Event != EventCheckIn {
			continue
		}
		var n attendance.CheckInNotice
		if err := json.Unmarshal(m.Data, &n); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func TestHubLocalBroadcast(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	watching, other := newClient(eventID), newClient(uuid.New())
	hub.Register(context.Background(), watching)
	hub.Register(context.Background(), other)
	assert.Equal(t, 1, hub.Watchers(eventID))

	notice := attendance.CheckInNotice{AttendanceID: uuid.New(), Name: "Rina", CheckedInAt: time.Now().UTC()}
	require.NoError(t, hub.PublishCheckIn(context.Background(), eventID, notice))

	got := checkIns(drain(watching))
	require.Len(t, got, 1)
	assert.Equal(t, "Rina", got[0].Name)
	assert.Empty(t, checkIns(drain(other)))
}

func TestHubFanOutAcrossInstances(t *testing.T) {
	bus := newLoopback()
	a := NewHub(nil, bus, bus)
	b := NewHub(nil, bus, bus)
	eventID := uuid.New()
	ca, cb := newClient(eventID), newClient(eventID)
	a.Register(context.Background(), ca)
	b.Register(context.Background(), cb)
	assert.Equal(t, 2, bus.subscribers(eventID))

	require.NoError(t, a.PublishCheckIn(context.Background(), eventID, attendance.CheckInNotice{Name: "Budi"}))

	assert.Len(t, checkIns(drain(ca)), 1)
	assert.Len(t, checkIns(drain(cb)), 1)

	b.Unregister(cb)
	assert.Equal(t, 1, bus.subscribers(eventID))
	assert.Equal(t, 0, b.Watchers(eventID))
}

func TestHubWatcherCount(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	first, second := newClient(eventID), newClient(eventID)
	hub.Register(context.Background(), first)
	hub.Register(context.Background(), second)

	msgs := drain(first)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, EventWatchers, last.Event)
	assert.JSONEq(t, `{"count":2}`, string(last.Data))

	hub.Unregister(second)
	msgs = drain(first)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"count":1}`, string(msgs[0].Data))

	// Unregistering twice is harmless.
	hub.Unregister(second)
}

// gatedSubscriber holds every subscribe until the test releases it or the
// subscribe context ends.
type gatedSubscriber struct {
	entered   chan struct{}
	release   chan error
	cancelled atomic.Bool
}

func newGatedSubscriber() *gatedSubscriber {
	return &gatedSubscriber{entered: make(chan struct{}, 4), release: make(chan error, 1)}
}

func (g *gatedSubscriber) SubscribeEvent(ctx context.Context, _ uuid.UUID, _ func(string, []byte)) (func(), error) {
	g.entered <- struct{}{}
	select {
	case err := <-g.release:
		if err != nil {
			return nil, err
		}
		return func() { g.cancelled.Store(true) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type countingPublisher struct{ n atomic.Int32 }

func (p *countingPublisher) PublishEvent(context.Context, uuid.UUID, string, []byte) error {
	p.n.Add(1)
	return nil
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestHubSubscribeRunsOutsideLock(t *testing.T) {
	sub, pub := newGatedSubscriber(), &countingPublisher{}
	hub := NewHub(nil, pub, sub)
	eventID := uuid.New()
	watching := newClient(eventID)

	done := make(chan struct{})
	go func() {
		hub.Register(context.Background(), watching)
		close(done)
	}()
	waitFor(t, sub.entered, "subscribe")

	counted := make(chan struct{})
	go func() {
		assert.Equal(t, 0, hub.Watchers(uuid.New()))
		assert.Equal(t, 1, hub.Watchers(eventID))
		close(counted)
	}()
	waitFor(t, counted, "Watchers during a pending subscribe")

	// Pending subscription: the local watcher is served directly.
	require.NoError(t, hub.PublishCheckIn(context.Background(), eventID, attendance.CheckInNotice{Name: "Rina"}))
	assert.Len(t, checkIns(drain(watching)), 1)

	sub.release <- errors.New("redis down")
	waitFor(t, done, "Register")
	assert.False(t, hub.subscribed(eventID))

	// Failed subscription: still served directly, and still published.
	require.NoError(t, hub.PublishCheckIn(context.Background(), eventID, attendance.CheckInNotice{Name: "Budi"}))
	got := checkIns(drain(watching))
	require.Len(t, got, 1)
	assert.Equal(t, "Budi", got[0].Name)
	assert.Equal(t, int32(2), pub.n.Load())
}

func TestHubSubscribeTimeoutThenRetry(t *testing.T) {
	bus := newLoopback()
	sub := newGatedSubscriber()
	hub := NewHub(nil, bus, sub)
	hub.SetSubscribeTimeout(20 * time.Millisecond)
	eventID := uuid.New()
	first := newClient(eventID)

	done := make(chan struct{})
	go func() {
		hub.Register(context.Background(), first)
		close(done)
	}()
	waitFor(t, done, "Register to give up on the subscribe")
	assert.False(t, hub.subscribed(eventID))

	// The next watcher retries; this time the subscribe goes through the bus.
	hub.sub = bus
	second := newClient(eventID)
	hub.Register(context.Background(), second)
	require.True(t, hub.subscribed(eventID))
	drain(first)
	drain(second)

	require.NoError(t, hub.PublishCheckIn(context.Background(), eventID, attendance.CheckInNotice{Name: "Sari"}))
	assert.Len(t, checkIns(drain(first)), 1)
	assert.Len(t, checkIns(drain(second)), 1)
}

func TestHubCancelsSubscriptionOfEmptiedRoom(t *testing.T) {
	sub := newGatedSubscriber()
	hub := NewHub(nil, &countingPublisher{}, sub)
	eventID := uuid.New()
	c := newClient(eventID)

	done := make(chan struct{})
	go func() {
		hub.Register(context.Background(), c)
		close(done)
	}()
	waitFor(t, sub.entered, "subscribe")
	hub.Unregister(c)

	sub.release <- nil
	waitFor(t, done, "Register")
	assert.True(t, sub.cancelled.Load())
	assert.False(t, hub.subscribed(eventID))
	assert.Equal(t, 0, hub.Watchers(eventID))
}
