package routing

// Inbound event types accepted from the transport.
const (
	EventRegisterOperator = "register_operator"
	EventRegisterUser     = "register_user"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
)

// Outbound event types emitted to specific connections.
const (
	EventOperatorAssigned     = "operator_assigned"
	EventNewUser              = "new_user"
	EventNewMessage           = "new_message"
	EventUserTyping           = "user_typing"
	EventOperatorDisconnected = "operator_disconnected"
	EventUserDisconnected     = "user_disconnected"
)

// Event is an outbound notification addressed to a single connection.
// A nil Payload means the event type itself is the whole message.
type Event struct {
	Type    string
	Payload any
}

// Sender delivers events to live transport connections.
//
// Delivery is fire-and-forget: sending to a connection that is no longer
// attached must be a silent no-op. Send is called from inside the routing
// step, so implementations must not block; queue the event for asynchronous
// delivery and drop it if the peer cannot keep up.
type Sender interface {
	Send(connectionID string, event Event)
}

// OperatorAssignedPayload tells a newly paired user who picked them up.
type OperatorAssignedPayload struct {
	OperatorID   string `json:"operatorId"`
	OperatorName string `json:"operatorName"`
}

// NewUserPayload tells an operator about a user assigned to them.
type NewUserPayload struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

// NewMessagePayload relays a chat message to the counterparty. Exactly one
// of UserID and OperatorID is set, identifying the sender's role. Timestamp
// is assigned at routing time, not by the sender.
type NewMessagePayload struct {
	Message    string `json:"message"`
	UserID     string `json:"userId,omitempty"`
	OperatorID string `json:"operatorId,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// UserTypingPayload signals typing activity to the assigned operator.
type UserTypingPayload struct {
	UserID string `json:"userId"`
}

// UserDisconnectedPayload tells an operator that a paired user left.
type UserDisconnectedPayload struct {
	UserID string `json:"userId"`
}
