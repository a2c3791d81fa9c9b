package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EncodeSnapshot serializes the state into its persisted form. The encoding
// is canonical JSON: struct fields keep declaration order and map keys are
// sorted, so equal states produce identical bytes.
func EncodeSnapshot(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot restores a state from its persisted form. It refuses
// records that fail integrity checks, so a truncated or tampered snapshot
// never boots a worker: the session stays unroutable instead of resuming
// from a corrupt table.
func DecodeSnapshot(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.SessionID == "" {
		return nil, fmt.Errorf("decode snapshot: missing session id")
	}
	if err := s.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.VerifyConservation(); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Checksum fingerprints the game position as a hex SHA-256 over the
// canonical snapshot encoding. Two states with the same checksum hold the
// same cards, scores and turn; replay verification compares these to catch
// divergence. LastAppliedActionID is excluded because it marks delivery
// progress, not the game position.
func Checksum(s *State) (string, error) {
	canon := s.Clone()
	canon.LastAppliedActionID = ""

	data, err := EncodeSnapshot(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
