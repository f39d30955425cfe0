package routing

import (
	"log"
	"sync"
	"time"
)

const defaultSweepInterval = 3 * time.Second

// Config defines the inputs for the routing core.
type Config struct {
	// Sender delivers outbound events to transport connections.
	Sender Sender
	// SweepInterval is the period of the backlog drain timer.
	SweepInterval time.Duration
	// Clock can be injected for tests; nil means time.Now.
	Clock func() time.Time
}

func (c *Config) norm() {
	if c.Sender == nil {
		c.Sender = nopSender{}
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

type nopSender struct{}

func (nopSender) Send(string, Event) {}

// Router is the single routing authority. Every inbound event mutates the
// registry and waiting queue, and emits the notifications that mutation
// triggers, as one indivisible step under one mutex. The Sender is called
// with the mutex held, which is why its contract requires it not to block.
type Router struct {
	sender     Sender
	clock      func() time.Time
	sweepEvery time.Duration

	mu       sync.Mutex
	registry *Registry
	queue    *WaitingQueue
	sweeping bool

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewRouter builds a routing core with an empty registry and queue.
func NewRouter(config Config) *Router {
	config.norm()
	return &Router{
		sender:     config.Sender,
		clock:      config.Clock,
		sweepEvery: config.SweepInterval,
		registry:   NewRegistry(),
		queue:      NewWaitingQueue(),
		stopCh:     make(chan struct{}),
	}
}

// Close stops the backlog sweep. Safe to call more than once.
func (r *Router) Close() {
	r.closeOnce.Do(func() { close(r.stopCh) })
}

// HandleOperatorRegister adds an operator to the pool. Registering an
// operator id that is already online is treated as a reconnect: the new
// connection takes over and the stale record is dropped. At most one waiting
// user is assigned synchronously; the rest of the backlog drains via the
// sweep.
func (r *Router) HandleOperatorRegister(connectionID, operatorID, name string) {
	if connectionID == "" || operatorID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, isUser := r.registry.SessionByConnection(connectionID); isUser {
		log.Printf("routing: dropping operator registration from user connection %s", connectionID)
		return
	}
	if prev, ok := r.registry.OperatorByID(operatorID); ok && prev.ConnectionID != connectionID {
		r.registry.RemoveOperator(prev.ConnectionID)
	}
	r.registry.RegisterOperator(connectionID, operatorID, name)
	r.drainOneLocked()
}

// HandleUserRegister pairs a user with the first available operator, or
// enqueues the user when the pool is empty. A user is assigned exactly once:
// either immediately here or later by the sweep, never both.
func (r *Router) HandleUserRegister(connectionID, userID string) {
	if connectionID == "" || userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, isOperator := r.registry.OperatorByConnection(connectionID); isOperator {
		log.Printf("routing: dropping user registration from operator connection %s", connectionID)
		return
	}
	if _, hasSession := r.registry.SessionByConnection(connectionID); hasSession || r.queue.Contains(connectionID) {
		// Already paired or already waiting; a repeat registration is a no-op.
		return
	}
	if op, ok := r.registry.FirstOperator(); ok {
		r.assignLocked(connectionID, userID, op)
		return
	}
	r.queue.Enqueue(WaitingEntry{ConnectionID: connectionID, UserID: userID})
	r.armSweepLocked()
}

// HandleMessage relays a chat message to the sender's counterparty. The
// sender's role is inferred from the registry: a session connection routes to
// its assigned operator, an operator connection routes to the session whose
// user id matches the payload. Anything unresolvable is dropped.
func (r *Router) HandleMessage(senderConnectionID, userID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC().Format(time.RFC3339)
	if sess, ok := r.registry.SessionByConnection(senderConnectionID); ok {
		op, ok := r.registry.OperatorByID(sess.OperatorID)
		if !ok {
			return
		}
		r.sender.Send(op.ConnectionID, Event{
			Type: EventNewMessage,
			Payload: NewMessagePayload{
				Message:   message,
				UserID:    sess.UserID,
				Timestamp: now,
			},
		})
		return
	}
	if op, ok := r.registry.OperatorByConnection(senderConnectionID); ok {
		sess, ok := r.registry.FindSessionByUser(userID)
		if !ok {
			return
		}
		r.sender.Send(sess.ConnectionID, Event{
			Type: EventNewMessage,
			Payload: NewMessagePayload{
				Message:    message,
				OperatorID: op.OperatorID,
				Timestamp:  now,
			},
		})
	}
}

// HandleTyping forwards a typing indicator from a user session to its
// assigned operator. There is no acknowledgment path back, and operator
// typing is not relayed. The session's own user id is authoritative; the
// payload's is ignored.
func (r *Router) HandleTyping(senderConnectionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.registry.SessionByConnection(senderConnectionID)
	if !ok {
		return
	}
	op, ok := r.registry.OperatorByID(sess.OperatorID)
	if !ok {
		return
	}
	r.sender.Send(op.ConnectionID, Event{
		Type:    EventUserTyping,
		Payload: UserTypingPayload{UserID: sess.UserID},
	})
}

// HandleDisconnect tears down whatever the connection held: an operator
// record orphans its sessions, a session notifies its operator, and a stale
// waiting entry is dropped. Disconnecting an unknown connection is a no-op,
// so a second delivery has no additional effect.
func (r *Router) HandleDisconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op, ok := r.registry.RemoveOperator(connectionID); ok {
		// After a reconnect the operator id may live on under a newer
		// connection; sessions are only orphaned when it does not.
		if _, still := r.registry.OperatorByID(op.OperatorID); !still {
			for _, sess := range r.registry.Sessions() {
				if sess.OperatorID == op.OperatorID {
					r.sender.Send(sess.ConnectionID, Event{Type: EventOperatorDisconnected})
				}
			}
		}
	}
	if sess, ok := r.registry.RemoveSession(connectionID); ok {
		if op, ok := r.registry.OperatorByID(sess.OperatorID); ok {
			r.sender.Send(op.ConnectionID, Event{
				Type:    EventUserDisconnected,
				Payload: UserDisconnectedPayload{UserID: sess.UserID},
			})
		}
	}
	r.queue.RemoveByConnection(connectionID)
}

// drainOneLocked dequeues the head waiting user and assigns it to the first
// available operator. No-op when the queue is empty or the pool is.
func (r *Router) drainOneLocked() {
	if r.queue.Len() == 0 {
		return
	}
	op, ok := r.registry.FirstOperator()
	if !ok {
		return
	}
	entry, ok := r.queue.DequeueFront()
	if !ok {
		return
	}
	r.assignLocked(entry.ConnectionID, entry.UserID, op)
}

func (r *Router) assignLocked(connectionID, userID string, op Operator) {
	r.registry.CreateSession(connectionID, userID, op.OperatorID, r.clock())
	r.sender.Send(connectionID, Event{
		Type: EventOperatorAssigned,
		Payload: OperatorAssignedPayload{
			OperatorID:   op.OperatorID,
			OperatorName: op.Name,
		},
	})
	r.sender.Send(op.ConnectionID, Event{
		Type: EventNewUser,
		Payload: NewUserPayload{
			UserID:       userID,
			ConnectionID: connectionID,
		},
	})
}

// armSweepLocked starts the backlog sweep if it is not already running. The
// sweep must be re-armed on every empty-to-non-empty queue transition; it is
// the queue's only guaranteed-progress mechanism.
func (r *Router) armSweepLocked() {
	if r.sweeping {
		return
	}
	select {
	case <-r.stopCh:
		return
	default:
	}
	r.sweeping = true
	go r.sweep()
}

// sweep drains one waiting user per tick until the queue empties, then stops
// itself. It competes for the same mutex as every other inbound event, so a
// tick is just another indivisible routing step.
func (r *Router) sweep() {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.drainOneLocked()
			done := r.queue.Len() == 0
			if done {
				r.sweeping = false
			}
			r.mu.Unlock()
			if done {
				return
			}
		}
	}
}
