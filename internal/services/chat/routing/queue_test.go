package routing

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	q := NewWaitingQueue()
	q.Enqueue(WaitingEntry{ConnectionID: "c1", UserID: "u1"})
	q.Enqueue(WaitingEntry{ConnectionID: "c2", UserID: "u2"})

	first, ok := q.DequeueFront()
	if !ok || first.UserID != "u1" {
		t.Fatalf("first dequeue = %+v ok=%v, want u1", first, ok)
	}
	second, ok := q.DequeueFront()
	if !ok || second.UserID != "u2" {
		t.Fatalf("second dequeue = %+v ok=%v, want u2", second, ok)
	}
	if _, ok := q.DequeueFront(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueueRemoveByConnectionOutOfOrder(t *testing.T) {
	q := NewWaitingQueue()
	q.Enqueue(WaitingEntry{ConnectionID: "c1", UserID: "u1"})
	q.Enqueue(WaitingEntry{ConnectionID: "c2", UserID: "u2"})
	q.Enqueue(WaitingEntry{ConnectionID: "c3", UserID: "u3"})

	if !q.RemoveByConnection("c2") {
		t.Fatal("expected c2 removal")
	}
	if q.RemoveByConnection("c2") {
		t.Fatal("second removal should find nothing")
	}
	if q.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", q.Len())
	}

	first, _ := q.DequeueFront()
	second, _ := q.DequeueFront()
	if first.UserID != "u1" || second.UserID != "u3" {
		t.Fatalf("drain order = %q,%q, want u1,u3", first.UserID, second.UserID)
	}
}

func TestQueueContains(t *testing.T) {
	q := NewWaitingQueue()
	if q.Contains("c1") {
		t.Fatal("empty queue should contain nothing")
	}
	q.Enqueue(WaitingEntry{ConnectionID: "c1", UserID: "u1"})
	if !q.Contains("c1") {
		t.Fatal("expected c1 to be waiting")
	}
}
