// Package observerproto is the read-only watch protocol: a display attaches
// to a session and is pushed every new advisory.
package observerproto

import "hexadvisor.ai/internal/protocol"

// Version is the observer protocol version (separate from the client WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeAdvisory  = "ADVISORY"
)

// Client -> Server. First message on the observer WS connection; re-sending it
// switches to another session.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

// Server -> Client. Sent on subscribe and after every ingested frame.
type AdvisoryMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	SessionID       string            `json:"session_id"`
	Seq             uint64            `json:"seq"`
	Advisory        protocol.Advisory `json:"advisory"`
}
