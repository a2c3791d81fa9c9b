package game

import (
	"fmt"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// Follow policy names accepted in the rule configuration.
const (
	PolicyAnyCard    = "any"
	PolicyFollowSuit = "follow-suit"
)

// FollowPolicy decides which cards a player may legally put on the current
// trick. Implementations must be pure: the engine calls them during apply
// and the verdict has to be reproducible on replay.
type FollowPolicy interface {
	Name() string
	LegalPlay(hand []protocol.Card, trick []protocol.PlayedCard, trump protocol.Suit, card protocol.Card) bool
}

// FollowPolicyByName resolves a configured policy name.
func FollowPolicyByName(name string) (FollowPolicy, error) {
	switch name {
	case "", PolicyAnyCard:
		return anyCardPolicy{}, nil
	case PolicyFollowSuit:
		return followSuitPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown follow policy %q", name)
}

// anyCardPolicy is standard Briscola: any held card is playable.
type anyCardPolicy struct{}

func (anyCardPolicy) Name() string { return PolicyAnyCard }

func (anyCardPolicy) LegalPlay([]protocol.Card, []protocol.PlayedCard, protocol.Suit, protocol.Card) bool {
	return true
}

// followSuitPolicy forces players holding the lead suit to follow it.
type followSuitPolicy struct{}

func (followSuitPolicy) Name() string { return PolicyFollowSuit }

func (followSuitPolicy) LegalPlay(hand []protocol.Card, trick []protocol.PlayedCard, _ protocol.Suit, card protocol.Card) bool {
	if len(trick) == 0 {
		return true
	}
	lead := trick[0].Card.Suit
	if card.Suit == lead {
		return true
	}
	for _, held := range hand {
		if held.Suit == lead {
			return false
		}
	}
	return true
}
