package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProtocolVersion is the envelope schema version stamped on every message.
const ProtocolVersion = 1

// Role identifies the authority level of a connection.
type Role string

const (
	RolePlayer   Role = "player"
	RoleObserver Role = "observer"
)

// Valid reports whether the role is a known role.
func (r Role) Valid() bool {
	return r == RolePlayer || r == RoleObserver
}

// Origin identifies which side of the bus produced a message.
const (
	OriginGateway = "gateway"
	OriginEngine  = "engine"
)

// Envelope is the shared frame for every action and event on the bus.
//
// PlayerID carries the author seat on inbound actions and the recipient
// seat on targeted outbound events; nil means broadcast. Version is the
// author's last observed state version on actions (0 = unknown) and the
// state version after application on events.
type Envelope struct {
	Type            string          `json:"message_type"`
	SessionID       string          `json:"session_id"`
	ActionID        string          `json:"action_id,omitempty"`
	PlayerID        *int            `json:"player_id,omitempty"`
	Role            Role            `json:"role,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	ProtocolVersion int             `json:"protocol_version"`
	Origin          string          `json:"origin"`
	Version         uint64          `json:"version,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes the envelope for publication.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses a raw bus message into an envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing message_type")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into the given value.
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("decode %s payload: empty", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// NewEvent builds an outbound event envelope. A nil playerID broadcasts;
// a non-nil playerID targets a single recipient.
func NewEvent(kind, sessionID string, playerID *int, version uint64, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Envelope{
		Type:            kind,
		SessionID:       sessionID,
		PlayerID:        playerID,
		Timestamp:       time.Now().UTC(),
		ProtocolVersion: ProtocolVersion,
		Origin:          OriginEngine,
		Version:         version,
		Payload:         raw,
	}, nil
}
