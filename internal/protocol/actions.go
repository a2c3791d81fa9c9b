package protocol

// Action kinds accepted on the game.<id>.actions topic.
const (
	ActionJoin            = "join"
	ActionSync            = "sync"
	ActionBid             = "bid"
	ActionCallPartnerRank = "call-partner-rank"
	ActionCallPartnerSuit = "call-partner-suit"
	ActionPlay            = "play"
	ActionReorder         = "reorder"
	ActionLeave           = "leave"
)

// PassBid is the sentinel bid value clients send to pass the auction.
const PassBid = -1

// IsActionKind reports whether kind names a known action.
func IsActionKind(kind string) bool {
	switch kind {
	case ActionJoin, ActionSync, ActionBid, ActionCallPartnerRank,
		ActionCallPartnerSuit, ActionPlay, ActionReorder, ActionLeave:
		return true
	}
	return false
}

// JoinPayload carries the display name for a join action. The author seat
// rides in the envelope, stamped by the gateway after token verification.
type JoinPayload struct {
	Name string `json:"name,omitempty"`
}

// BidPayload carries an auction bid; PassBid passes.
type BidPayload struct {
	Bid int `json:"bid"`
}

// CallRankPayload names the partner card rank for a rank call.
type CallRankPayload struct {
	PartnerRank int `json:"partner_rank"`
}

// CallSuitPayload names the trump suit for a suit call; the partner card
// is the ace of that suit.
type CallSuitPayload struct {
	PartnerSuit Suit `json:"partner_suit"`
}

// PlayPayload carries the card to play.
type PlayPayload struct {
	Card Card `json:"card"`
}

// ReorderPayload carries the author's full hand in the desired order.
type ReorderPayload struct {
	Hand []Card `json:"hand"`
}
