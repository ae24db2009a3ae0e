package domain

import "encoding/json"

// Wire event names. These are the compatibility contract with existing
// majlis clients; never rename them.
const (
	EventTextMessage       = "textMessage"
	EventVoiceMessage      = "voiceMessage"
	EventDrawing           = "drawing"
	EventJoinGroup         = "joinGroup"
	EventLeaveGroup        = "leaveGroup"
	EventGroupMessage      = "groupMessage"
	EventGroupVoiceMessage = "groupVoiceMessage"
	EventGroupVoiceChunk   = "groupVoiceChunk"
	EventGroupActive       = "groupActive"
	EventGroupJoined       = "groupJoined"
	EventGroupLeft         = "groupLeft"
	EventGroupCount        = "groupCount"
	EventGroupStatus       = "groupStatus"
)

// Envelope is one websocket text frame: the event name plus its payload.
// Data is kept raw so the relay can forward payloads unchanged.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server payloads.

type TextMessage struct {
	Message string `json:"message"`
}

type VoiceMessage struct {
	Audio string `json:"audio"`
}

type Drawing struct {
	Image string `json:"image"`
}

type JoinGroup struct {
	Username string `json:"username"`
}

type LeaveGroup struct {
	Username string `json:"username"`
}

type GroupMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type GroupVoiceMessage struct {
	Username string `json:"username"`
	Audio    string `json:"audio"`
}

type GroupVoiceChunk struct {
	Username string `json:"username"`
	Chunk    string `json:"chunk"`
}

// Server -> client presence payloads, derived by the relay.

type GroupActive struct {
	Active bool `json:"active"`
}

type GroupJoined struct {
	Username string `json:"username"`
}

type GroupLeft struct {
	Username string `json:"username"`
}

type GroupCount struct {
	Count int `json:"count"`
}

type GroupStatus struct {
	Message string `json:"message"`
}
