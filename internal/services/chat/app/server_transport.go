package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/perbarindodpdjateng/chat/internal/services/chat/routing"
)

type registerOperatorPayload struct {
	OperatorID string `json:"operatorId"`
	Name       string `json:"name"`
}

type registerUserPayload struct {
	UserID string `json:"userId"`
}

type sendMessagePayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type typingPayload struct {
	UserID string `json:"userId"`
}

func newHandler(router *routing.Router, table *connTable, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, router, table)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	return withCORS(mux)
}

// withCORS applies the permissive policy the dashboard clients expect. CORS
// is a transport concern; the routing core never sees it.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWSConn owns one connection from accept to close. The connection id
// is transport-assigned and never survives a reconnect; the disconnect is
// delivered to the routing core exactly once, when this function returns.
func handleWSConn(conn *websocket.Conn, router *routing.Router, table *connTable) {
	defer func() {
		_ = conn.Close()
	}()

	connectionID := uuid.NewString()
	peer := newWSPeer(conn)
	table.attach(connectionID, peer)
	log.Printf("chat: peer connected: %s", connectionID)
	defer func() {
		table.detach(connectionID)
		router.HandleDisconnect(connectionID)
		log.Printf("chat: peer disconnected: %s", connectionID)
	}()

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			log.Printf("chat: dropping oversized %q frame from %s", frame.Type, connectionID)
			continue
		}
		dispatchFrame(router, connectionID, frame)
	}
}

func dispatchFrame(router *routing.Router, connectionID string, frame wsFrame) {
	switch frame.Type {
	case routing.EventRegisterOperator:
		var payload registerOperatorPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("chat: invalid %q payload from %s: %v", frame.Type, connectionID, err)
			return
		}
		router.HandleOperatorRegister(connectionID, strings.TrimSpace(payload.OperatorID), strings.TrimSpace(payload.Name))
	case routing.EventRegisterUser:
		var payload registerUserPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("chat: invalid %q payload from %s: %v", frame.Type, connectionID, err)
			return
		}
		router.HandleUserRegister(connectionID, strings.TrimSpace(payload.UserID))
	case routing.EventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("chat: invalid %q payload from %s: %v", frame.Type, connectionID, err)
			return
		}
		router.HandleMessage(connectionID, strings.TrimSpace(payload.UserID), payload.Message)
	case routing.EventTyping:
		var payload typingPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("chat: invalid %q payload from %s: %v", frame.Type, connectionID, err)
			return
		}
		router.HandleTyping(connectionID, strings.TrimSpace(payload.UserID))
	default:
		log.Printf("chat: dropping unsupported frame type %q from %s", frame.Type, connectionID)
	}
}
