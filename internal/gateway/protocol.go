package gateway

import "encoding/json"

// Client-to-server events.
const (
	EventJoin      = "join"
	EventLeave     = "leave"
	EventBroadcast = "broadcast"
)

// Server-to-client events.
const (
	EventJoined                  = "joined"
	EventLeft                    = "left"
	EventParticipantConnected    = "participant-connected"
	EventParticipantDisconnected = "participant-disconnected"
	EventError                   = "error"
)

// ClientMessage is the frame clients send: an event name plus an opaque
// payload whose shape depends on the event.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage is every frame the server sends.
type ServerMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

type presencePayload struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

// relayPayload wraps a relayed broadcast with the sender's identity.
type relayPayload struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

func encode(event string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	msg, err := json.Marshal(ServerMessage{Event: event, Payload: raw})
	if err != nil {
		return nil
	}
	return msg
}

func encodeError(message string) []byte {
	return encode(EventError, errorPayload{Message: message})
}
