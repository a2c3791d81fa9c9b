package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

func card(suit protocol.Suit, rank int) protocol.Card {
	return protocol.Card{Suit: suit, Rank: rank}
}

// craftedState builds a five-seat session at the start of bidding with a
// fixed, known deal: seat 0 holds coins 1-8, seat 1 coins 9-10 and cups
// 1-6, seat 2 cups 7-10 and swords 1-4, seat 3 swords 5-10 and clubs 1-2,
// seat 4 clubs 3-10. Tests that depend on who holds which card use this
// instead of a seeded shuffle.
func craftedState(t *testing.T) *State {
	t.Helper()

	hands := [][]protocol.Card{
		{card("coins", 1), card("coins", 2), card("coins", 3), card("coins", 4), card("coins", 5), card("coins", 6), card("coins", 7), card("coins", 8)},
		{card("coins", 9), card("coins", 10), card("cups", 1), card("cups", 2), card("cups", 3), card("cups", 4), card("cups", 5), card("cups", 6)},
		{card("cups", 7), card("cups", 8), card("cups", 9), card("cups", 10), card("swords", 1), card("swords", 2), card("swords", 3), card("swords", 4)},
		{card("swords", 5), card("swords", 6), card("swords", 7), card("swords", 8), card("swords", 9), card("swords", 10), card("clubs", 1), card("clubs", 2)},
		{card("clubs", 3), card("clubs", 4), card("clubs", 5), card("clubs", 6), card("clubs", 7), card("clubs", 8), card("clubs", 9), card("clubs", 10)},
	}

	s := NewState("CRAFT1", DefaultRules(), 12345)
	for i, hand := range hands {
		s.Players[i] = &Player{
			ID:        i,
			Name:      []string{"anna", "bruno", "carla", "dario", "elena"}[i],
			Hand:      append([]protocol.Card(nil), hand...),
			Connected: true,
		}
	}
	s.Phase = PhaseBidding
	s.HandNumber = 1
	s.CurrentPlayer = 0

	require.NoError(t, s.VerifyConservation())
	return s
}

// seatedState creates a session and fills it through real join actions.
func seatedState(t *testing.T, sessionID string, rules Rules, seed int64) *State {
	t.Helper()

	s := NewState(sessionID, rules, seed)
	names := []string{"anna", "bruno", "carla", "dario", "elena"}
	for i := 0; i < rules.Seats; i++ {
		s = mustApply(t, s, JoinAction{PlayerID: i, Name: names[i%len(names)]})
	}
	require.Equal(t, PhaseBidding, s.Phase)
	return s
}

// mustApply applies a player action and fails the test on rejection.
func mustApply(t *testing.T, s *State, act Action) *State {
	t.Helper()
	next, _, rej := Apply(s, act, protocol.RolePlayer)
	require.Nil(t, rej, "action %s rejected: %+v", act.Kind(), rej)
	return next
}

// mustApplyEvents is mustApply keeping the produced events.
func mustApplyEvents(t *testing.T, s *State, act Action) (*State, []Event) {
	t.Helper()
	next, events, rej := Apply(s, act, protocol.RolePlayer)
	require.Nil(t, rej, "action %s rejected: %+v", act.Kind(), rej)
	return next, events
}

// mustReject asserts the action bounces with the given code and that the
// returned state is the untouched input.
func mustReject(t *testing.T, s *State, act Action, role protocol.Role, code protocol.Code) {
	t.Helper()
	next, events, rej := Apply(s, act, role)
	require.NotNil(t, rej, "expected %s to be rejected", act.Kind())
	require.Equal(t, code, rej.Code, "reason: %s", rej.Reason)
	require.Same(t, s, next, "rejected action must not produce a new state")
	require.Empty(t, events)
}

// closeAuction has winner bid amount and every other seat pass in turn.
func closeAuction(t *testing.T, s *State, winner, amount int) *State {
	t.Helper()
	require.Equal(t, PhaseBidding, s.Phase)
	require.Equal(t, winner, s.CurrentPlayer, "harness assumes the winner opens the auction")

	s = mustApply(t, s, BidAction{PlayerID: winner, Amount: amount})
	for s.Phase == PhaseBidding {
		s = mustApply(t, s, BidAction{PlayerID: s.CurrentPlayer, Amount: protocol.PassBid})
	}
	require.Equal(t, PhaseCallingPartner, s.Phase)
	return s
}

func eventKinds(events []Event) []string {
	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// findEvent returns the first event of the kind, failing if absent.
func findEvent(t *testing.T, events []Event, kind string) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("no %s event in %v", kind, eventKinds(events))
	return Event{}
}

// syncView applies a sync for the requester and returns the payload.
func syncView(t *testing.T, s *State, role protocol.Role, requester int) protocol.SyncPayload {
	t.Helper()
	_, events, rej := Apply(s, SyncAction{PlayerID: requester}, role)
	require.Nil(t, rej)
	require.Len(t, events, 1)
	view, ok := events[0].Payload.(protocol.SyncPayload)
	require.True(t, ok, "sync event payload has wrong type %T", events[0].Payload)
	return view
}
