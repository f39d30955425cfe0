package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/perbarindodpdjateng/chat/internal/platform/timeouts"
	"github.com/perbarindodpdjateng/chat/internal/services/chat/routing"
)

// peerSendBuffer bounds the per-connection outbound backlog. A peer that
// cannot drain it loses frames rather than stalling the routing step.
const peerSendBuffer = 64

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsPeer owns all writes to one websocket connection. Frames are queued and
// written by a dedicated goroutine so senders never block on the socket.
type wsPeer struct {
	conn      *websocket.Conn
	sendCh    chan wsFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	p := &wsPeer{
		conn:   conn,
		sendCh: make(chan wsFrame, peerSendBuffer),
		done:   make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func (p *wsPeer) writeLoop() {
	encoder := json.NewEncoder(p.conn)
	for {
		select {
		case <-p.done:
			return
		case frame := <-p.sendCh:
			_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WSWrite))
			if err := encoder.Encode(frame); err != nil {
				log.Printf("chat: write %q frame: %v", frame.Type, err)
			}
		}
	}
}

// enqueue queues a frame for delivery, dropping it when the peer is slow or
// already gone.
func (p *wsPeer) enqueue(frame wsFrame) {
	select {
	case <-p.done:
	case p.sendCh <- frame:
	default:
		log.Printf("chat: dropping %q frame for slow peer", frame.Type)
	}
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// connTable maps live connection ids to their peers and implements the
// routing core's Sender. Sending to a detached connection is a silent no-op.
type connTable struct {
	mu    sync.Mutex
	peers map[string]*wsPeer
}

func newConnTable() *connTable {
	return &connTable{peers: make(map[string]*wsPeer)}
}

func (t *connTable) attach(connectionID string, peer *wsPeer) {
	t.mu.Lock()
	t.peers[connectionID] = peer
	t.mu.Unlock()
}

func (t *connTable) detach(connectionID string) {
	t.mu.Lock()
	peer := t.peers[connectionID]
	delete(t.peers, connectionID)
	t.mu.Unlock()
	if peer != nil {
		peer.close()
	}
}

// Send implements routing.Sender.
func (t *connTable) Send(connectionID string, event routing.Event) {
	t.mu.Lock()
	peer := t.peers[connectionID]
	t.mu.Unlock()
	if peer == nil {
		return
	}
	peer.enqueue(wsFrame{Type: event.Type, Payload: mustJSON(event.Payload)})
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("chat: marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
