package server

import (
	"testing"
	"time"

	"chatd/internal/protocol"
)

func qMsg(text string) protocol.Message {
	return protocol.NewMessage("q", time.Now(), text)
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Push(qMsg("a"))
	q.Push(qMsg("b"))
	q.Push(qMsg("c"))
	if q.Len() != 3 {
		t.Fatalf("len: got %d, want 3", q.Len())
	}
	for _, want := range []string{"a", "b", "c"} {
		msg, ok := q.Pop()
		if !ok {
			t.Fatal("queue reported closed")
		}
		if msg.Text != want {
			t.Errorf("got %q, want %q", msg.Text, want)
		}
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan protocol.Message, 1)
	go func() {
		msg, ok := q.Pop()
		if ok {
			got <- msg
		}
	}()

	// Give the consumer a moment to block.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("Pop returned before Push")
	default:
	}

	q.Push(qMsg("wake"))
	select {
	case msg := <-got:
		if msg.Text != "wake" {
			t.Errorf("got %q", msg.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue()
	q.Push(qMsg("queued"))
	q.Close()

	// The queued item is still delivered.
	msg, ok := q.Pop()
	if !ok || msg.Text != "queued" {
		t.Fatalf("got (%q, %v)", msg.Text, ok)
	}
	// Then the queue reports closed.
	if _, ok := q.Pop(); ok {
		t.Error("expected closed queue after drain")
	}
	// Pushes after close are dropped.
	q.Push(qMsg("late"))
	if _, ok := q.Pop(); ok {
		t.Error("push after close must be dropped")
	}
}

func TestQueueCloseWakesBlockedPop(t *testing.T) {
	q := NewQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Error("expected ok=false from closed empty queue")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake blocked Pop")
	}
}
