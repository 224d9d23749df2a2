package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// SessionID resumes an existing session instead of opening a new one.
	SessionID           string `json:"session_id,omitempty"`
	PerspectivePlayerID string `json:"perspective_player_id,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Resumed         bool   `json:"resumed,omitempty"`
}

// FRAME (client -> server): one raw message captured from the game server.
// Payload is either a JSON string holding the raw text or any JSON value.
type FrameMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

// ADVICE (server -> client)
type AdviceMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	EventsProcessed int      `json:"events_processed"`
	Advisory        Advisory `json:"advisory"`
}

// STATE (client -> server) asks for the current advisory without ingesting.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
