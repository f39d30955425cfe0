package routing

// WaitingEntry is the minimal data needed to complete a deferred assignment
// once an operator becomes available.
type WaitingEntry struct {
	ConnectionID string
	UserID       string
}

// WaitingQueue is the FIFO backlog of users with no operator yet. Users are
// served strictly in arrival order among those still waiting. Not safe for
// concurrent use; the Router serializes all access.
type WaitingQueue struct {
	entries []WaitingEntry
}

// NewWaitingQueue returns an empty queue.
func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{}
}

// Enqueue appends an entry to the tail.
func (q *WaitingQueue) Enqueue(entry WaitingEntry) {
	q.entries = append(q.entries, entry)
}

// DequeueFront removes and returns the head entry.
func (q *WaitingQueue) DequeueFront() (WaitingEntry, bool) {
	if len(q.entries) == 0 {
		return WaitingEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// RemoveByConnection removes the at-most-one entry for a connection out of
// order, reporting whether one was found. Used when a user disconnects while
// still waiting.
func (q *WaitingQueue) RemoveByConnection(connectionID string) bool {
	for i, entry := range q.entries {
		if entry.ConnectionID == connectionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether a connection already has a waiting entry.
func (q *WaitingQueue) Contains(connectionID string) bool {
	for _, entry := range q.entries {
		if entry.ConnectionID == connectionID {
			return true
		}
	}
	return false
}

// Len returns the number of waiting entries.
func (q *WaitingQueue) Len() int {
	return len(q.entries)
}
