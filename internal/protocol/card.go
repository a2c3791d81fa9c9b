package protocol

import "fmt"

// Suit identifies one of the four Italian card suits.
type Suit string

const (
	SuitCoins  Suit = "coins"
	SuitCups   Suit = "cups"
	SuitSwords Suit = "swords"
	SuitClubs  Suit = "clubs"
)

// Suits lists all suits in canonical deck order.
var Suits = []Suit{SuitCoins, SuitCups, SuitSwords, SuitClubs}

// Valid reports whether the suit is one of the four known suits.
func (s Suit) Valid() bool {
	switch s {
	case SuitCoins, SuitCups, SuitSwords, SuitClubs:
		return true
	}
	return false
}

// MinRank and MaxRank bound the rank range of a 40-card deck.
const (
	MinRank = 1
	MaxRank = 10
)

// Card is a single playing card as it appears on the wire.
type Card struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

// Valid reports whether the card names a real deck member.
func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank >= MinRank && c.Rank <= MaxRank
}

func (c Card) String() string {
	return fmt.Sprintf("%d of %s", c.Rank, c.Suit)
}
