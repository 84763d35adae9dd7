package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	bus := NewBus(log, nil)
	defer bus.Close()

	ch := bus.Subscribe("test.created", 10)

	e := &testEvent{BaseEvent: NewBaseEvent("test.created", "test", "1"), Message: "hello"}
	err := bus.Publish(context.Background(), e)
	require.NoError(t, err)

	select {
	case received := <-ch:
		assert.Equal(t, "test.created", received.EventType())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Persisted as well
	stored, err := log.ForEntity(context.Background(), "test", "1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()

	ch := bus.SubscribeAll(10)

	e1 := &testEvent{BaseEvent: NewBaseEvent("test.first", "test", "1"), Message: "first"}
	e2 := &testEvent{BaseEvent: NewBaseEvent("test.second", "test", "2"), Message: "second"}

	require.NoError(t, bus.Publish(context.Background(), e1))
	require.NoError(t, bus.Publish(context.Background(), e2))

	received := make([]Event, 0, 2)
	timeout := time.After(time.Second)
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			received = append(received, e)
		case <-timeout:
			t.Fatalf("timeout waiting for event %d", i+1)
		}
	}

	assert.Len(t, received, 2)
}

func TestBus_SubscribeEntity(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()

	ch := bus.SubscribeEntity(EntityJob, "job-a", 10)

	require.NoError(t, bus.Publish(context.Background(),
		&JobCleared{BaseEvent: NewBaseEvent(EventJobCleared, EntityJob, "job-b")}))
	require.NoError(t, bus.Publish(context.Background(),
		&JobCleared{BaseEvent: NewBaseEvent(EventJobCleared, EntityJob, "job-a")}))

	select {
	case e := <-ch:
		assert.Equal(t, "job-a", e.EntityID())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()

	_ = bus.Subscribe("test.event", 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			e := &testEvent{BaseEvent: NewBaseEvent("test.event", "test", "1")}
			_ = bus.Publish(context.Background(), e)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, int64(4), bus.Dropped())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()

	ch := bus.Subscribe("test.event", 10)
	bus.Unsubscribe(ch)

	e := &testEvent{BaseEvent: NewBaseEvent("test.event", "test", "1"), Message: "hello"}
	require.NoError(t, bus.Publish(context.Background(), e))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus(nil, nil)
	ch := bus.SubscribeAll(1)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, ok := <-ch
	assert.False(t, ok)

	late := bus.Subscribe("test.event", 1)
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil, nil)
	defer bus.Close()

	ch := bus.SubscribeAll(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e := &testEvent{BaseEvent: NewBaseEvent("test.concurrent", "test", string(rune('a'+n))), Message: "concurrent"}
			_ = bus.Publish(context.Background(), e)
		}(i)
	}

	wg.Wait()

	count := 0
	timeout := time.After(time.Second)
loop:
	for {
		select {
		case <-ch:
			count++
			if count == 10 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}

	assert.Equal(t, 10, count)
}
