package observer

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"hexadvisor.ai/internal/observerproto"
	"hexadvisor.ai/internal/protocol"
)

// Hub fans advisories out to the watchers of each session. Slow watchers miss
// pushes instead of stalling ingestion.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan<- []byte

	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[uint64]chan<- []byte{}}
}

func (h *Hub) subscribe(sessionID string, out chan<- []byte) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	m, ok := h.subs[sessionID]
	if !ok {
		m = map[uint64]chan<- []byte{}
		h.subs[sessionID] = m
	}
	m[h.nextID] = out
	return h.nextID
}

func (h *Hub) unsubscribe(sessionID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.subs[sessionID]
	delete(m, id)
	if len(m) == 0 {
		delete(h.subs, sessionID)
	}
}

// Record implements advisor.AdvisoryRecorder.
func (h *Hub) Record(sessionID string, seq uint64, adv protocol.Advisory) {
	h.mu.Lock()
	n := len(h.subs[sessionID])
	h.mu.Unlock()
	if n == 0 {
		return
	}
	b, err := encodeAdvisory(sessionID, seq, adv)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, out := range h.subs[sessionID] {
		select {
		case out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func encodeAdvisory(sessionID string, seq uint64, adv protocol.Advisory) ([]byte, error) {
	return json.Marshal(observerproto.AdvisoryMsg{
		Type:            observerproto.TypeAdvisory,
		ProtocolVersion: observerproto.Version,
		SessionID:       sessionID,
		Seq:             seq,
		Advisory:        adv,
	})
}
