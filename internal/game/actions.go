package game

import (
	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// Action is one decoded player intent. The set of implementations is
// closed; the engine switches over it exhaustively.
type Action interface {
	Kind() string
}

// JoinAction seats or reconnects a player.
type JoinAction struct {
	PlayerID int
	Name     string
}

func (JoinAction) Kind() string { return protocol.ActionJoin }

// SyncAction requests a role-tailored snapshot. PlayerID is NoPlayer for
// observers.
type SyncAction struct {
	PlayerID int
}

func (SyncAction) Kind() string { return protocol.ActionSync }

// BidAction places an auction bid or passes.
type BidAction struct {
	PlayerID int
	Amount   int
}

func (BidAction) Kind() string { return protocol.ActionBid }

// CallRankAction declares the partner by card rank.
type CallRankAction struct {
	PlayerID int
	Rank     int
}

func (CallRankAction) Kind() string { return protocol.ActionCallPartnerRank }

// CallSuitAction declares the trump suit; the partner card is its ace.
type CallSuitAction struct {
	PlayerID int
	Suit     protocol.Suit
}

func (CallSuitAction) Kind() string { return protocol.ActionCallPartnerSuit }

// PlayAction puts a card on the current trick.
type PlayAction struct {
	PlayerID int
	Card     protocol.Card
}

func (PlayAction) Kind() string { return protocol.ActionPlay }

// ReorderAction rewrites the author's hand order.
type ReorderAction struct {
	PlayerID int
	Hand     []protocol.Card
}

func (ReorderAction) Kind() string { return protocol.ActionReorder }

// LeaveAction marks a seat disconnected without freeing it.
type LeaveAction struct {
	PlayerID int
}

func (LeaveAction) Kind() string { return protocol.ActionLeave }

// DecodeAction maps an inbound envelope to its action variant. Malformed
// payloads and unknown kinds come back as rejections, not Go errors: the
// session answers them with an error result and keeps running.
func DecodeAction(env *protocol.Envelope) (Action, *protocol.Rejection) {
	playerID := NoPlayer
	if env.PlayerID != nil {
		playerID = *env.PlayerID
	}

	switch env.Type {
	case protocol.ActionJoin:
		var p protocol.JoinPayload
		if len(env.Payload) > 0 {
			if err := env.DecodePayload(&p); err != nil {
				return nil, protocol.Reject(protocol.CodeInvalidAction, "malformed join payload")
			}
		}
		if env.PlayerID == nil {
			return nil, protocol.Reject(protocol.CodeJoinFailed, "join without a seat")
		}
		return JoinAction{PlayerID: playerID, Name: p.Name}, nil

	case protocol.ActionSync:
		return SyncAction{PlayerID: playerID}, nil

	case protocol.ActionBid:
		var p protocol.BidPayload
		if err := env.DecodePayload(&p); err != nil {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "malformed bid payload")
		}
		return BidAction{PlayerID: playerID, Amount: p.Bid}, nil

	case protocol.ActionCallPartnerRank:
		var p protocol.CallRankPayload
		if err := env.DecodePayload(&p); err != nil {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "malformed call payload")
		}
		if p.PartnerRank < protocol.MinRank || p.PartnerRank > protocol.MaxRank {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "partner rank out of range")
		}
		return CallRankAction{PlayerID: playerID, Rank: p.PartnerRank}, nil

	case protocol.ActionCallPartnerSuit:
		var p protocol.CallSuitPayload
		if err := env.DecodePayload(&p); err != nil {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "malformed call payload")
		}
		if !p.PartnerSuit.Valid() {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "unknown partner suit")
		}
		return CallSuitAction{PlayerID: playerID, Suit: p.PartnerSuit}, nil

	case protocol.ActionPlay:
		var p protocol.PlayPayload
		if err := env.DecodePayload(&p); err != nil {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "malformed play payload")
		}
		if !p.Card.Valid() {
			return nil, protocol.Reject(protocol.CodeInvalidCard, "card does not exist")
		}
		return PlayAction{PlayerID: playerID, Card: p.Card}, nil

	case protocol.ActionReorder:
		var p protocol.ReorderPayload
		if err := env.DecodePayload(&p); err != nil {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "malformed reorder payload")
		}
		for _, c := range p.Hand {
			if !c.Valid() {
				return nil, protocol.Reject(protocol.CodeInvalidAction, "reorder names a card that does not exist")
			}
		}
		return ReorderAction{PlayerID: playerID, Hand: p.Hand}, nil

	case protocol.ActionLeave:
		if env.PlayerID == nil {
			return nil, protocol.Reject(protocol.CodeInvalidAction, "leave without a seat")
		}
		return LeaveAction{PlayerID: playerID}, nil
	}

	return nil, protocol.Reject(protocol.CodeInvalidAction, "unknown action kind "+env.Type)
}
