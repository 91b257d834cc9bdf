package eventing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentuity/go-apiclient/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, bus Bus, d Dispatcher, types ...Type) (<-chan Event, Subscriber) {
	t.Helper()
	ch := make(chan Event, 16)
	sub, err := bus.Subscribe(context.Background(), d, func(ctx context.Context, ev Event) {
		ch <- ev
	}, types...)
	require.NoError(t, err)
	return ch, sub
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewLocalBus(context.Background(), logger.NewTestLogger())
	defer bus.Close()

	all, _ := collect(t, bus, Inline)
	started, _ := collect(t, bus, Inline, SessionStarted)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: SessionStarted, UserID: 7}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: SessionEnded, PreviousUserID: 7, Error: "bye"}))

	ev := next(t, all)
	assert.Equal(t, SessionStarted, ev.Type)
	assert.Equal(t, int64(7), ev.UserID)
	ev = next(t, all)
	assert.Equal(t, SessionEnded, ev.Type)
	assert.Equal(t, "bye", ev.Error)

	ev = next(t, started)
	assert.Equal(t, SessionStarted, ev.Type)
	select {
	case ev := <-started:
		t.Fatalf("unexpected event %s", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDoesNotBlockOnSlowHandler(t *testing.T) {
	bus := NewLocalBus(context.Background(), logger.NewTestLogger())
	defer bus.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var got []int64
	_, err := bus.Subscribe(context.Background(), Inline, func(ctx context.Context, ev Event) {
		<-release
		mu.Lock()
		got = append(got, ev.UserID)
		mu.Unlock()
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := int64(1); i <= 100; i++ {
			bus.Publish(context.Background(), Event{Type: SessionStarted, UserID: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow handler")
	}
	close(release)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for i, id := range got {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestLoopDispatcher(t *testing.T) {
	bus := NewLocalBus(context.Background(), logger.NewTestLogger())
	defer bus.Close()

	loop := NewLoop(4)
	ch, _ := collect(t, bus, loop)
	require.NoError(t, bus.Publish(context.Background(), Event{Type: SessionFailed, Error: "nope"}))

	select {
	case <-ch:
		t.Fatal("delivered before the loop ran")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	ev := next(t, ch)
	assert.Equal(t, SessionFailed, ev.Type)
}

func TestSubscriberClose(t *testing.T) {
	bus := NewLocalBus(context.Background(), logger.NewTestLogger())
	defer bus.Close()

	ch, sub := collect(t, bus, Inline)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.NoError(t, bus.Publish(context.Background(), Event{Type: SessionStarted}))
	select {
	case <-ch:
		t.Fatal("closed subscriber received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeContextCancel(t *testing.T) {
	bus := NewLocalBus(context.Background(), logger.NewTestLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event, 1)
	_, err := bus.Subscribe(ctx, Inline, func(ctx context.Context, ev Event) { ch <- ev })
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool {
		b := bus.(*localBus)
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subscribers) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestClosedBus(t *testing.T) {
	bus := NewLocalBus(context.Background(), logger.NewTestLogger())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Type: SessionStarted}), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Inline, func(context.Context, Event) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHandlerPanicIsContained(t *testing.T) {
	log := logger.NewTestLogger()
	bus := NewLocalBus(context.Background(), log)
	defer bus.Close()

	ch := make(chan Event, 2)
	_, err := bus.Subscribe(context.Background(), Inline, func(ctx context.Context, ev Event) {
		if ev.UserID == 1 {
			panic("boom")
		}
		ch <- ev
	})
	require.NoError(t, err)
	bus.Publish(context.Background(), Event{Type: SessionStarted, UserID: 1})
	bus.Publish(context.Background(), Event{Type: SessionStarted, UserID: 2})
	ev := next(t, ch)
	assert.Equal(t, int64(2), ev.UserID)
	assert.Equal(t, 1, log.Count("ERROR"))
}
