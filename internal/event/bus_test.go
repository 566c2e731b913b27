package event

import (
	"sync"
	"testing"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe("test.event", func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var receivedEvent Event
	bus.Subscribe("job.started", func(e Event) {
		receivedEvent = e
	})

	bus.Publish(NewJobStartedEvent("job-1", "llm hello", false))

	if receivedEvent == nil {
		t.Fatal("Handler should have received the event")
	}
	if receivedEvent.EventType() != "job.started" {
		t.Errorf("Expected event type 'job.started', got '%s'", receivedEvent.EventType())
	}

	started, ok := receivedEvent.(JobStartedEvent)
	if !ok {
		t.Fatalf("Expected JobStartedEvent, got %T", receivedEvent)
	}
	if started.Command != "llm hello" {
		t.Errorf("Command = %q, want %q", started.Command, "llm hello")
	}
}

func TestBus_PublishToWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe("job.aborted", func(e Event) {
		order = append(order, "specific")
	})
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard")
	})

	bus.Publish(NewJobAbortedEvent("job-2", 1, "exit"))

	if len(order) != 2 {
		t.Fatalf("Expected 2 handler calls, got %d", len(order))
	}
	if order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("Specific handlers should run before wildcard handlers, got %v", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe("job.tick", func(e Event) {
		called = true
	})

	if !bus.Unsubscribe(id) {
		t.Error("Unsubscribe should return true for a known ID")
	}
	if bus.Unsubscribe("nonexistent") {
		t.Error("Unsubscribe should return false for an unknown ID")
	}

	bus.Publish(NewJobTickEvent("job-1", 1))
	if called {
		t.Error("Unsubscribed handler should not be called")
	}
}

func TestBus_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe("job.completed", func(e Event) {
		panic("handler failure")
	})

	called := false
	bus.Subscribe("job.completed", func(e Event) {
		called = true
	})

	bus.Publish(NewJobCompletedEvent("job-1", 3))

	if !called {
		t.Error("Second handler should run even when the first panics")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("job.tick", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(frame int) {
			defer wg.Done()
			bus.Publish(NewJobTickEvent("job-1", frame))
		}(i)
	}
	wg.Wait()

	if count != 10 {
		t.Errorf("Expected 10 handler calls, got %d", count)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("a", func(e Event) {})
	bus.Subscribe("b", func(e Event) {})

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after Clear, got %d", bus.SubscriptionCount())
	}
}
