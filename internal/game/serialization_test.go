package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := craftedState(t)
	s = closeAuction(t, s, 0, 70)
	s = mustApply(t, s, CallSuitAction{PlayerID: 0, Suit: protocol.SuitCups})
	s = mustApply(t, s, PlayAction{PlayerID: 0, Card: card("coins", 2)})

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)

	restored, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, s.SessionID, restored.SessionID)
	assert.Equal(t, s.Phase, restored.Phase)
	assert.Equal(t, s.Version, restored.Version)
	assert.Equal(t, s.TrumpSuit, restored.TrumpSuit)
	assert.Equal(t, s.CurrentPlayer, restored.CurrentPlayer)
	assert.Equal(t, s.CurrentTrick, restored.CurrentTrick)
	require.NotNil(t, restored.CallerID)
	assert.Equal(t, 0, *restored.CallerID)
	for i := range s.Players {
		assert.Equal(t, s.Players[i].Hand, restored.Players[i].Hand, "seat %d hand", i)
	}
	require.NoError(t, restored.VerifyConservation())
}

func TestSnapshotRoundTripPreservesChecksum(t *testing.T) {
	s := seatedState(t, "SNAP01", DefaultRules(), 42)

	before, err := Checksum(s)
	require.NoError(t, err)

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)
	restored, err := DecodeSnapshot(data)
	require.NoError(t, err)

	after, err := Checksum(restored)
	require.NoError(t, err)
	assert.Equal(t, before, after, "round trip must not move the game position")
}

func TestChecksumIsDeterministic(t *testing.T) {
	// Two sessions built independently from the same seed and actions must
	// fingerprint identically, including the map-valued scores.
	build := func() *State {
		s := seatedState(t, "SNAP01", DefaultRules(), 42)
		s = mustApply(t, s, BidAction{PlayerID: 0, Amount: 65})
		s = mustApply(t, s, BidAction{PlayerID: 1, Amount: protocol.PassBid})
		return s
	}

	first, err := Checksum(build())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Checksum(build())
		require.NoError(t, err)
		assert.Equal(t, first, again, "rebuild %d diverged", i)
	}
}

func TestChecksumDetectsStateChange(t *testing.T) {
	s := craftedState(t)

	before, err := Checksum(s)
	require.NoError(t, err)

	next := mustApply(t, s, BidAction{PlayerID: 0, Amount: 61})
	after, err := Checksum(next)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	// Same position again: same fingerprint.
	unchanged, err := Checksum(s)
	require.NoError(t, err)
	assert.Equal(t, before, unchanged)
}

func TestChecksumIgnoresDeliveryMarker(t *testing.T) {
	s := craftedState(t)
	before, err := Checksum(s)
	require.NoError(t, err)

	stamped := s.Clone()
	stamped.LastAppliedActionID = "act-99"
	after, err := Checksum(stamped)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the ack marker is not part of the game position")
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot([]byte("nope"))
	assert.Error(t, err)

	_, err = DecodeSnapshot([]byte(`{}`))
	assert.Error(t, err, "a snapshot without a session id is not a snapshot")

	_, err = DecodeSnapshot([]byte(`{"session_id":"X","rules":{"seats":9}}`))
	assert.Error(t, err, "unplayable rules must not boot a worker")
}

func TestDecodeSnapshotRejectsMissingCards(t *testing.T) {
	s := craftedState(t)
	data, err := EncodeSnapshot(s)
	require.NoError(t, err)

	tampered, err := DecodeSnapshot(data)
	require.NoError(t, err)
	tampered.Players[2].Hand = tampered.Players[2].Hand[:4]
	bad, err := EncodeSnapshot(tampered)
	require.NoError(t, err)

	_, err = DecodeSnapshot(bad)
	assert.Error(t, err, "a snapshot that lost cards is corrupt")
}
