package routing

import "time"

// Operator is one registered operator connection. An operator exists in the
// registry exactly as long as its connection is live; there is no other
// status to model.
type Operator struct {
	ConnectionID string
	OperatorID   string
	Name         string
}

// Session is the live pairing between one user connection and one operator.
// StartedAt is assignment time. The referenced operator may disappear before
// the session does; routing then degrades to a no-op.
type Session struct {
	ConnectionID string
	UserID       string
	OperatorID   string
	StartedAt    time.Time
}

// Registry is the authoritative mapping of connection id to operator record
// or session. It is pure data with lookup/insert/remove operations and is not
// safe for concurrent use; the Router serializes all access.
//
// Operator iteration follows registration order so that first-available
// selection is deterministic.
type Registry struct {
	operators     map[string]Operator
	operatorOrder []string
	sessions      map[string]Session
	sessionOrder  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		operators: make(map[string]Operator),
		sessions:  make(map[string]Session),
	}
}

// RegisterOperator inserts or overwrites the operator record for a
// connection. Overwriting keeps the connection's position in registration
// order.
func (r *Registry) RegisterOperator(connectionID, operatorID, name string) Operator {
	op := Operator{
		ConnectionID: connectionID,
		OperatorID:   operatorID,
		Name:         name,
	}
	if _, exists := r.operators[connectionID]; !exists {
		r.operatorOrder = append(r.operatorOrder, connectionID)
	}
	r.operators[connectionID] = op
	return op
}

// RemoveOperator deletes the operator record for a connection and returns it
// so disconnect handling can notify affected sessions.
func (r *Registry) RemoveOperator(connectionID string) (Operator, bool) {
	op, ok := r.operators[connectionID]
	if !ok {
		return Operator{}, false
	}
	delete(r.operators, connectionID)
	r.operatorOrder = removeString(r.operatorOrder, connectionID)
	return op, true
}

// OperatorByConnection looks up the operator record for a connection.
func (r *Registry) OperatorByConnection(connectionID string) (Operator, bool) {
	op, ok := r.operators[connectionID]
	return op, ok
}

// OperatorByID returns the earliest-registered operator record carrying the
// given operator id.
func (r *Registry) OperatorByID(operatorID string) (Operator, bool) {
	for _, connectionID := range r.operatorOrder {
		if op := r.operators[connectionID]; op.OperatorID == operatorID {
			return op, true
		}
	}
	return Operator{}, false
}

// FirstOperator returns the earliest-registered operator still present, if
// any. This is first-available selection, not true round-robin: with a stable
// pool the same operator is returned every time.
func (r *Registry) FirstOperator() (Operator, bool) {
	if len(r.operatorOrder) == 0 {
		return Operator{}, false
	}
	return r.operators[r.operatorOrder[0]], true
}

// Operators returns a snapshot of all operator records in registration order.
func (r *Registry) Operators() []Operator {
	out := make([]Operator, 0, len(r.operatorOrder))
	for _, connectionID := range r.operatorOrder {
		out = append(out, r.operators[connectionID])
	}
	return out
}

// CreateSession inserts a session pairing a user connection with an operator.
func (r *Registry) CreateSession(connectionID, userID, operatorID string, now time.Time) Session {
	sess := Session{
		ConnectionID: connectionID,
		UserID:       userID,
		OperatorID:   operatorID,
		StartedAt:    now,
	}
	if _, exists := r.sessions[connectionID]; !exists {
		r.sessionOrder = append(r.sessionOrder, connectionID)
	}
	r.sessions[connectionID] = sess
	return sess
}

// SessionByConnection looks up the session owned by a connection.
func (r *Registry) SessionByConnection(connectionID string) (Session, bool) {
	sess, ok := r.sessions[connectionID]
	return sess, ok
}

// FindSessionByUser returns the earliest-created session matching a user id.
// User ids are not unique across connections (duplicate tabs), so the lookup
// is inherently ambiguous; callers get one arbitrary-but-stable match.
func (r *Registry) FindSessionByUser(userID string) (Session, bool) {
	for _, connectionID := range r.sessionOrder {
		if sess := r.sessions[connectionID]; sess.UserID == userID {
			return sess, true
		}
	}
	return Session{}, false
}

// RemoveSession deletes and returns the session owned by a connection.
func (r *Registry) RemoveSession(connectionID string) (Session, bool) {
	sess, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connectionID)
	r.sessionOrder = removeString(r.sessionOrder, connectionID)
	return sess, true
}

// Sessions returns a snapshot of all sessions in creation order.
func (r *Registry) Sessions() []Session {
	out := make([]Session, 0, len(r.sessionOrder))
	for _, connectionID := range r.sessionOrder {
		out = append(out, r.sessions[connectionID])
	}
	return out
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
