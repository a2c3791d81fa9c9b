package game

import (
	"math/rand"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// DeckSize is the number of cards in a Briscola deck.
const DeckSize = 40

// TotalPoints is the sum of all card points in the deck.
const TotalPoints = 120

// cardPoints maps rank to point value. Ranks not listed are worth nothing.
var cardPoints = map[int]int{
	1:  11, // ace
	3:  10,
	10: 4, // king
	9:  3, // knight
	8:  2, // jack
}

// cardStrength orders ranks within a suit for trick resolution. Higher wins.
var cardStrength = map[int]int{
	1:  10,
	3:  9,
	10: 8,
	9:  7,
	8:  6,
	7:  5,
	6:  4,
	5:  3,
	4:  2,
	2:  1,
}

// CardPoints returns the point value of a card.
func CardPoints(c protocol.Card) int {
	return cardPoints[c.Rank]
}

// CardStrength returns the trick-taking strength of a card within its suit.
func CardStrength(c protocol.Card) int {
	return cardStrength[c.Rank]
}

// NewDeck returns the 40 cards in canonical order.
func NewDeck() []protocol.Card {
	deck := make([]protocol.Card, 0, DeckSize)
	for _, suit := range protocol.Suits {
		for rank := protocol.MinRank; rank <= protocol.MaxRank; rank++ {
			deck = append(deck, protocol.Card{Suit: suit, Rank: rank})
		}
	}
	return deck
}

// shuffledDeck returns a fresh deck shuffled by the given seed. The same
// seed always yields the same order, which keeps dealing reproducible when
// a hand is re-dealt after a snapshot reload.
func shuffledDeck(seed int64) []protocol.Card {
	deck := NewDeck()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// trickPoints sums the point values of the cards in a trick.
func trickPoints(trick []protocol.PlayedCard) int {
	total := 0
	for _, played := range trick {
		total += CardPoints(played.Card)
	}
	return total
}

// trickWinner returns the seat that takes the trick. The highest trump wins;
// with no trump on the table the highest card in the lead suit wins.
func trickWinner(trick []protocol.PlayedCard, trump protocol.Suit) int {
	best := 0
	for i := 1; i < len(trick); i++ {
		if beats(trick[i].Card, trick[best].Card, trick[0].Card.Suit, trump) {
			best = i
		}
	}
	return trick[best].PlayerID
}

// beats reports whether candidate beats incumbent given the lead and trump
// suits. Cards in neither suit never win.
func beats(candidate, incumbent protocol.Card, lead, trump protocol.Suit) bool {
	if trump != "" {
		candidateTrump := candidate.Suit == trump
		incumbentTrump := incumbent.Suit == trump
		if candidateTrump != incumbentTrump {
			return candidateTrump
		}
		if candidateTrump && incumbentTrump {
			return CardStrength(candidate) > CardStrength(incumbent)
		}
	}
	if candidate.Suit != incumbent.Suit {
		return false
	}
	if candidate.Suit != lead {
		return false
	}
	return CardStrength(candidate) > CardStrength(incumbent)
}
