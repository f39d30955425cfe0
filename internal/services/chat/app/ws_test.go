package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

type wsTestFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(Config{SweepInterval: 10 * time.Millisecond}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsTestFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func registerOperator(t *testing.T, conn *websocket.Conn, operatorID, name string) {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type": "register_operator",
		"payload": map[string]any{
			"operatorId": operatorID,
			"name":       name,
		},
	})
}

func registerUser(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type": "register_user",
		"payload": map[string]any{
			"userId": userID,
		},
	})
}

// pairUserWithOperator registers both peers and waits for the assignment
// notifications on each side.
func pairUserWithOperator(t *testing.T, operatorConn, userConn *websocket.Conn, operatorID, name, userID string) {
	t.Helper()
	registerOperator(t, operatorConn, operatorID, name)
	registerUser(t, userConn, userID)

	assigned := readFrame(t, userConn)
	if assigned.Type != "operator_assigned" {
		t.Fatalf("user frame type = %q, want %q", assigned.Type, "operator_assigned")
	}
	newUser := readFrame(t, operatorConn)
	if newUser.Type != "new_user" {
		t.Fatalf("operator frame type = %q, want %q", newUser.Type, "new_user")
	}
}

func TestWebSocketAssignsUserToOnlineOperator(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)

	registerOperator(t, operatorConn, "op1", "Alice")
	registerUser(t, userConn, "u1")

	assigned := readFrame(t, userConn)
	if assigned.Type != "operator_assigned" {
		t.Fatalf("user frame type = %q, want %q", assigned.Type, "operator_assigned")
	}
	var assignedPayload struct {
		OperatorID   string `json:"operatorId"`
		OperatorName string `json:"operatorName"`
	}
	if err := json.Unmarshal(assigned.Payload, &assignedPayload); err != nil {
		t.Fatalf("decode operator_assigned payload: %v", err)
	}
	if assignedPayload.OperatorID != "op1" || assignedPayload.OperatorName != "Alice" {
		t.Fatalf("operator_assigned payload = %+v, want op1/Alice", assignedPayload)
	}

	newUser := readFrame(t, operatorConn)
	if newUser.Type != "new_user" {
		t.Fatalf("operator frame type = %q, want %q", newUser.Type, "new_user")
	}
	var newUserPayload struct {
		UserID       string `json:"userId"`
		ConnectionID string `json:"connectionId"`
	}
	if err := json.Unmarshal(newUser.Payload, &newUserPayload); err != nil {
		t.Fatalf("decode new_user payload: %v", err)
	}
	if newUserPayload.UserID != "u1" {
		t.Fatalf("new_user userId = %q, want %q", newUserPayload.UserID, "u1")
	}
	if newUserPayload.ConnectionID == "" {
		t.Fatal("new_user payload missing connectionId")
	}
}

func TestWebSocketQueuedUserAssignedWhenOperatorArrives(t *testing.T) {
	srv := newTestServer(t)
	userConn := dialWS(t, srv)

	registerUser(t, userConn, "u1")

	// No operator online yet; the user must stay unassigned until one
	// registers and the backlog drains.
	operatorConn := dialWS(t, srv)
	registerOperator(t, operatorConn, "op1", "Alice")

	assigned := readFrame(t, userConn)
	if assigned.Type != "operator_assigned" {
		t.Fatalf("user frame type = %q, want %q", assigned.Type, "operator_assigned")
	}
	if !strings.Contains(string(assigned.Payload), "Alice") {
		t.Fatalf("operator_assigned payload = %s, expected operator name", string(assigned.Payload))
	}
}

func TestWebSocketRelaysMessageUserToOperator(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)
	pairUserWithOperator(t, operatorConn, userConn, "op1", "Alice", "u1")

	writeFrame(t, userConn, map[string]any{
		"type": "send_message",
		"payload": map[string]any{
			"message": "hello operator",
		},
	})

	got := readFrame(t, operatorConn)
	if got.Type != "new_message" {
		t.Fatalf("operator frame type = %q, want %q", got.Type, "new_message")
	}
	var payload struct {
		Message   string `json:"message"`
		UserID    string `json:"userId"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode new_message payload: %v", err)
	}
	if payload.Message != "hello operator" || payload.UserID != "u1" {
		t.Fatalf("new_message payload = %+v, want hello operator/u1", payload)
	}
	if _, err := time.Parse(time.RFC3339, payload.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", payload.Timestamp, err)
	}
}

func TestWebSocketRelaysMessageOperatorToUser(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)
	pairUserWithOperator(t, operatorConn, userConn, "op1", "Alice", "u1")

	writeFrame(t, operatorConn, map[string]any{
		"type": "send_message",
		"payload": map[string]any{
			"userId":  "u1",
			"message": "hello user",
		},
	})

	got := readFrame(t, userConn)
	if got.Type != "new_message" {
		t.Fatalf("user frame type = %q, want %q", got.Type, "new_message")
	}
	var payload struct {
		Message    string `json:"message"`
		OperatorID string `json:"operatorId"`
	}
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode new_message payload: %v", err)
	}
	if payload.Message != "hello user" || payload.OperatorID != "op1" {
		t.Fatalf("new_message payload = %+v, want hello user/op1", payload)
	}
}

func TestWebSocketTypingReachesOperator(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)
	pairUserWithOperator(t, operatorConn, userConn, "op1", "Alice", "u1")

	writeFrame(t, userConn, map[string]any{
		"type":    "typing",
		"payload": map[string]any{"userId": "u1"},
	})

	got := readFrame(t, operatorConn)
	if got.Type != "user_typing" {
		t.Fatalf("operator frame type = %q, want %q", got.Type, "user_typing")
	}
	if !strings.Contains(string(got.Payload), "u1") {
		t.Fatalf("user_typing payload = %s, expected user id", string(got.Payload))
	}
}

func TestWebSocketOperatorDisconnectOrphansUsers(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)
	pairUserWithOperator(t, operatorConn, userConn, "op1", "Alice", "u1")

	if err := operatorConn.Close(); err != nil {
		t.Fatalf("close operator connection: %v", err)
	}

	got := readFrame(t, userConn)
	if got.Type != "operator_disconnected" {
		t.Fatalf("user frame type = %q, want %q", got.Type, "operator_disconnected")
	}
}

func TestWebSocketUserDisconnectNotifiesOperator(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)
	pairUserWithOperator(t, operatorConn, userConn, "op1", "Alice", "u1")

	if err := userConn.Close(); err != nil {
		t.Fatalf("close user connection: %v", err)
	}

	got := readFrame(t, operatorConn)
	if got.Type != "user_disconnected" {
		t.Fatalf("operator frame type = %q, want %q", got.Type, "user_disconnected")
	}
	if !strings.Contains(string(got.Payload), "u1") {
		t.Fatalf("user_disconnected payload = %s, expected user id", string(got.Payload))
	}
}

func TestWebSocketUnknownFrameTypeIgnored(t *testing.T) {
	srv := newTestServer(t)
	operatorConn := dialWS(t, srv)
	userConn := dialWS(t, srv)

	writeFrame(t, userConn, map[string]any{
		"type":    "mystery",
		"payload": map[string]any{},
	})

	// The connection must survive the unknown frame and carry on routing.
	pairUserWithOperator(t, operatorConn, userConn, "op1", "Alice", "u1")
}

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/ws", nil)
	if err != nil {
		t.Fatalf("build preflight request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("allow-origin = %q, want %q", origin, "*")
	}
}

func TestWSEndpointRejectsNonGet(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/ws", "application/json", nil)
	if err != nil {
		t.Fatalf("post /ws: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
