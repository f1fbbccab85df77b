// Package relay implements the point-to-point signaling actor used to
// exchange call-setup metadata between two peers. No rooms, no history: pure
// forward-by-id with best-effort delivery.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/chatstream/internal/logger"
)

// Signaling message types. Other values are forwarded verbatim; the relay
// never interprets the payload.
const (
	TypeOffer   = "offer"
	TypeAnswer  = "answer"
	TypeIce     = "ice"
	TypeReject  = "reject"
	TypeEndCall = "end_call"
)

// Message is the signaling envelope forwarded between peers.
type Message struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Peer is one registered signaling identity with its bounded outbound queue.
// The transport layer drains Send.
type Peer struct {
	ID   string
	Send chan []byte
}

// Relay owns the peer routing table and forwards envelopes one at a time.
type Relay struct {
	peers map[string]*Peer
	mu    sync.RWMutex

	Register   chan *Peer
	Unregister chan *Peer
	Forward    chan Message

	logger *logger.Logger
}

func NewRelay(log *logger.Logger) *Relay {
	return &Relay{
		peers:      make(map[string]*Peer),
		Register:   make(chan *Peer),
		Unregister: make(chan *Peer),
		Forward:    make(chan Message),
		logger:     log,
	}
}

// Run drains the relay's operation channels. All mutation of the peer table
// happens here.
func (r *Relay) Run() {
	for {
		select {
		case peer := <-r.Register:
			r.registerPeer(peer)
		case peer := <-r.Unregister:
			r.unregisterPeer(peer)
		case msg := <-r.Forward:
			r.forward(msg)
		}
	}
}

// registerPeer indexes the peer by id. A second registration under the same
// id replaces the first.
func (r *Relay) registerPeer(peer *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.peers[peer.ID]; ok && prev != peer {
		close(prev.Send)
	}
	r.peers[peer.ID] = peer
	r.logger.Infof("Peer %s registered", peer.ID)
}

// unregisterPeer removes the peer and closes its queue. A no-op if the id is
// gone or was re-registered by a newer peer.
func (r *Relay) unregisterPeer(peer *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.peers[peer.ID]; ok && current == peer {
		delete(r.peers, peer.ID)
		close(peer.Send)
		r.logger.Infof("Peer %s unregistered", peer.ID)
	}
}

// Peers returns a snapshot of the registered peer ids.
func (r *Relay) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// forward delivers the full envelope to the addressed peer. Unknown peer or a
// saturated queue means the message is dropped; nothing persists past this
// point.
func (r *Relay) forward(msg Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	to, ok := r.peers[msg.To]
	if !ok {
		r.logger.Debugf("Dropping signaling message to unknown peer %s", msg.To)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Errorf("Failed to marshal signaling message: %v", err)
		return
	}

	r.logger.Infof("Forwarding signaling message: from=%s to=%s type=%s", msg.From, msg.To, msg.Type)
	select {
	case to.Send <- data:
	default:
		// Peer's queue is full; dropping beats stalling the relay.
		r.logger.Warnf("Dropping signaling message to %s: send queue full", msg.To)
	}
}
