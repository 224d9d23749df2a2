package advisor

import (
	"hexadvisor.ai/internal/persistence/snapshot"
	"hexadvisor.ai/internal/sim/state"
)

// SessionArchive receives the final state of sessions that leave memory. The
// server never reads state back; LastSeq only lets a reopened id continue
// its frame numbering in the same journal.
type SessionArchive interface {
	Save(snap snapshot.SessionV1) error
	LastSeq(sessionID string) (uint64, error)
}

// Snapshot captures the session except its recent event log.
func (s *Session) Snapshot(seq uint64) snapshot.SessionV1 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := snapshot.SessionV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			SessionID: s.id,
			Seq:       seq,
			SavedAt:   s.now().UTC(),
		},
		Perspective: s.perspective,
		Inbound:     s.inbound,
		Parsed:      s.parsed,
		LastError:   s.lastError,
		NextCursor:  s.nextCursor,
		State:       s.state.Snapshot(),
	}
	if s.lastMessageAt != nil {
		at := *s.lastMessageAt
		out.LastMessageAt = &at
	}
	return out
}

// RestoreSession rebuilds a session from an archived snapshot for offline
// inspection. A non-empty opts.Perspective overrides the saved one.
func RestoreSession(snap snapshot.SessionV1, opts Options) *Session {
	if opts.Perspective == "" {
		opts.Perspective = snap.Perspective
	}
	s := NewSession(snap.Header.SessionID, opts)
	s.state = state.Restore(snap.State)
	s.inbound = snap.Inbound
	s.parsed = snap.Parsed
	s.lastError = snap.LastError
	if snap.LastMessageAt != nil {
		at := *snap.LastMessageAt
		s.lastMessageAt = &at
	}
	if snap.NextCursor > s.nextCursor {
		s.nextCursor = snap.NextCursor
	}
	return s
}
