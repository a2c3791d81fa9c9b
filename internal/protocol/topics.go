package protocol

import "strings"

// Topic patterns the supervisor subscribes to. The single wildcard segment
// is the session id.
const (
	ActionsPattern = "game.*.actions"
	ControlPattern = "game.*.control"
)

// ActionsTopic returns the inbound action topic for a session.
func ActionsTopic(sessionID string) string {
	return "game." + sessionID + ".actions"
}

// EventsTopic returns the outbound event topic for a session.
func EventsTopic(sessionID string) string {
	return "game." + sessionID + ".events"
}

// ControlTopic returns the control topic for a session.
func ControlTopic(sessionID string) string {
	return "game." + sessionID + ".control"
}

// SplitTopic extracts the session id and the topic class (actions, events
// or control) from a game topic. ok is false for anything else.
func SplitTopic(topic string) (sessionID, class string, ok bool) {
	parts := strings.Split(topic, ".")
	if len(parts) != 3 || parts[0] != "game" || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case "actions", "events", "control":
		return parts[1], parts[2], true
	}
	return "", "", false
}

// Control commands accepted on the control topic.
const (
	ControlCreate = "create"
	ControlStop   = "stop"
	ControlSync   = "sync"
	ControlLeave  = "leave"
)

// ControlCommand is the frame gateways publish on game.<id>.control.
type ControlCommand struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id"`
	PlayerID  *int   `json:"player_id,omitempty"`
}

// Storage key helpers. Snapshots and heartbeats share the backing store
// but live under distinct keys.
func StateKey(sessionID string) string {
	return "game." + sessionID + ".state"
}

func HeartbeatKey(sessionID string) string {
	return "game." + sessionID + ".heartbeat"
}
