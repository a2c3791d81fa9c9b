package game

import (
	"fmt"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// Phase represents the lifecycle stage of a session.
type Phase int

const (
	PhaseWaitingForPlayers Phase = iota
	PhaseBidding
	PhaseCallingPartner
	PhasePlaying
	PhaseHandEnd
	PhaseGameEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitingForPlayers:
		return "WAITING_FOR_PLAYERS"
	case PhaseBidding:
		return "BIDDING"
	case PhaseCallingPartner:
		return "CALLING_PARTNER"
	case PhasePlaying:
		return "PLAYING"
	case PhaseHandEnd:
		return "HAND_END"
	case PhaseGameEnd:
		return "GAME_END"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON writes the phase by name so snapshots stay readable.
func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON parses a phase name back into its enum value.
func (p *Phase) UnmarshalJSON(data []byte) error {
	name := string(data)
	if len(name) >= 2 && name[0] == '"' {
		name = name[1 : len(name)-1]
	}
	switch name {
	case "WAITING_FOR_PLAYERS":
		*p = PhaseWaitingForPlayers
	case "BIDDING":
		*p = PhaseBidding
	case "CALLING_PARTNER":
		*p = PhaseCallingPartner
	case "PLAYING":
		*p = PhasePlaying
	case "HAND_END":
		*p = PhaseHandEnd
	case "GAME_END":
		*p = PhaseGameEnd
	default:
		return fmt.Errorf("unknown phase %q", name)
	}
	return nil
}

// PartnerStage tracks how much of the partner identity has been disclosed.
type PartnerStage int

const (
	// PartnerHidden: identity either unresolved or resolved but not yet
	// signalled by a matching play.
	PartnerHidden PartnerStage = iota
	// PartnerCallerKnown: a matching card hit the table; only the caller's
	// views include the partner until the trick resolves.
	PartnerCallerKnown
	// PartnerPublic: the revealing trick resolved; everyone sees the partner.
	PartnerPublic
)

// Rules carries the per-session rule configuration. It rides in the
// snapshot so a reloaded session keeps the semantics it started with.
type Rules struct {
	Seats        int    `json:"seats"`
	MinBid       int    `json:"min_bid"`
	MaxBid       int    `json:"max_bid"`
	Hands        int    `json:"hands"`
	TargetScore  int    `json:"target_score"`
	FollowPolicy string `json:"follow_policy"`
}

// DefaultRules returns the standard five-seat single-hand configuration.
func DefaultRules() Rules {
	return Rules{
		Seats:        5,
		MinBid:       61,
		MaxBid:       TotalPoints,
		Hands:        1,
		TargetScore:  0,
		FollowPolicy: PolicyAnyCard,
	}
}

// Validate checks the rule configuration for playability.
func (r Rules) Validate() error {
	if r.Seats < 3 || r.Seats > 5 {
		return fmt.Errorf("seats must be between 3 and 5, got %d", r.Seats)
	}
	if r.MinBid < 1 || r.MinBid > r.MaxBid || r.MaxBid > TotalPoints {
		return fmt.Errorf("bid range [%d, %d] is invalid", r.MinBid, r.MaxBid)
	}
	if r.Hands < 1 && r.TargetScore <= 0 {
		return fmt.Errorf("either a hand count or a target score is required")
	}
	if _, err := FollowPolicyByName(r.FollowPolicy); err != nil {
		return err
	}
	return nil
}

// Player is one seat at the table. Hand order is owned by the player and
// persists across snapshots. Taken holds the cards banked from tricks won
// in the current hand.
type Player struct {
	ID        int             `json:"id"`
	Name      string          `json:"name,omitempty"`
	Hand      []protocol.Card `json:"hand"`
	Taken     []protocol.Card `json:"taken,omitempty"`
	Connected bool            `json:"connected"`
	Passed    bool            `json:"passed,omitempty"`
}

// Bid is the standing auction bid.
type Bid struct {
	Amount   int `json:"amount"`
	HolderID int `json:"holder_id"`
}

// NoPlayer marks phases where no seat holds the turn.
const NoPlayer = -1

// State is the complete authoritative session state. It serializes to JSON
// as the snapshot, and every field a reloaded worker needs rides in it.
type State struct {
	SessionID           string                `json:"session_id"`
	Rules               Rules                 `json:"rules"`
	Seed                int64                 `json:"seed"`
	Phase               Phase                 `json:"phase"`
	Players             []*Player             `json:"players"`
	DeckRemaining       []protocol.Card       `json:"deck_remaining,omitempty"`
	TrumpSuit           protocol.Suit         `json:"trump_suit,omitempty"`
	CurrentBid          *Bid                  `json:"current_bid,omitempty"`
	CallerID            *int                  `json:"caller_id,omitempty"`
	PartnerID           *int                  `json:"partner_id,omitempty"`
	PartnerCriterion    *protocol.Criterion   `json:"partner_criterion,omitempty"`
	PartnerStage        PartnerStage          `json:"partner_stage"`
	CurrentTrick        []protocol.PlayedCard `json:"current_trick"`
	CurrentPlayer       int                   `json:"current_player"`
	Scores              map[int]int           `json:"scores"`
	HandNumber          int                   `json:"hand_number"`
	HandsPlayed         int                   `json:"hands_played"`
	LastAppliedActionID string                `json:"last_applied_action_id,omitempty"`
	Version             uint64                `json:"version"`
}

// NewState builds a cold session waiting for its first join. The seed fixes
// every future deal, so two sessions created with the same id, rules and
// seed evolve identically under the same actions.
func NewState(sessionID string, rules Rules, seed int64) *State {
	return &State{
		SessionID:     sessionID,
		Rules:         rules,
		Seed:          seed,
		Phase:         PhaseWaitingForPlayers,
		Players:       make([]*Player, rules.Seats),
		CurrentTrick:  make([]protocol.PlayedCard, 0),
		CurrentPlayer: NoPlayer,
		Scores:        make(map[int]int),
	}
}

// Player returns the seat, or nil when the seat is out of range or empty.
func (s *State) Player(id int) *Player {
	if id < 0 || id >= len(s.Players) {
		return nil
	}
	return s.Players[id]
}

// SeatedCount returns the number of occupied seats.
func (s *State) SeatedCount() int {
	count := 0
	for _, p := range s.Players {
		if p != nil {
			count++
		}
	}
	return count
}

// Clone returns a deep copy. Apply works on a clone so a rejected or
// failed-to-persist action leaves the original untouched.
func (s *State) Clone() *State {
	out := *s

	out.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		if p == nil {
			continue
		}
		cp := *p
		cp.Hand = append([]protocol.Card(nil), p.Hand...)
		cp.Taken = append([]protocol.Card(nil), p.Taken...)
		out.Players[i] = &cp
	}

	out.DeckRemaining = append([]protocol.Card(nil), s.DeckRemaining...)
	out.CurrentTrick = append([]protocol.PlayedCard(nil), s.CurrentTrick...)
	if out.CurrentTrick == nil {
		out.CurrentTrick = make([]protocol.PlayedCard, 0)
	}

	out.Scores = make(map[int]int, len(s.Scores))
	for id, score := range s.Scores {
		out.Scores[id] = score
	}

	out.CurrentBid = cloneBid(s.CurrentBid)
	out.CallerID = cloneInt(s.CallerID)
	out.PartnerID = cloneInt(s.PartnerID)
	out.PartnerCriterion = cloneCriterion(s.PartnerCriterion)

	return &out
}

func cloneBid(b *Bid) *Bid {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneCriterion(c *protocol.Criterion) *protocol.Criterion {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// VerifyConservation checks that hands, the undealt deck, the open trick
// and the banked tricks together hold exactly the 40 deck cards, each once.
// Before the first deal the deck has not entered the state and the count
// must be zero.
func (s *State) VerifyConservation() error {
	seen := make(map[protocol.Card]int, DeckSize)
	count := 0

	add := func(c protocol.Card) {
		seen[c]++
		count++
	}

	for _, p := range s.Players {
		if p == nil {
			continue
		}
		for _, c := range p.Hand {
			add(c)
		}
		for _, c := range p.Taken {
			add(c)
		}
	}
	for _, c := range s.DeckRemaining {
		add(c)
	}
	for _, played := range s.CurrentTrick {
		add(played.Card)
	}

	if s.HandNumber == 0 {
		if count != 0 {
			return fmt.Errorf("cards present before the first deal: %d", count)
		}
		return nil
	}
	if count != DeckSize {
		return fmt.Errorf("card count is %d, want %d", count, DeckSize)
	}
	for card, n := range seen {
		if n != 1 {
			return fmt.Errorf("card %s appears %d times", card, n)
		}
	}
	return nil
}

// handPoints sums the card points a seat banked during the current hand.
func (s *State) handPoints(id int) int {
	p := s.Player(id)
	if p == nil {
		return 0
	}
	total := 0
	for _, c := range p.Taken {
		total += CardPoints(c)
	}
	return total
}

// holdsCard reports whether the player currently holds the card.
func (p *Player) holdsCard(card protocol.Card) bool {
	for _, c := range p.Hand {
		if c == card {
			return true
		}
	}
	return false
}

// removeCard takes the card out of the player's hand, preserving order.
func (p *Player) removeCard(card protocol.Card) bool {
	for i, c := range p.Hand {
		if c == card {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// matchesCriterion reports whether the card satisfies the partner call.
func matchesCriterion(crit *protocol.Criterion, card protocol.Card) bool {
	if crit == nil {
		return false
	}
	switch crit.Kind {
	case "rank":
		return card.Rank == crit.Rank
	case "suit":
		// Suit calls name the ace of the called suit.
		return card.Suit == crit.Suit && card.Rank == 1
	}
	return false
}

// scoresCopy returns the accumulated scores in a fresh map.
func (s *State) scoresCopy() map[int]int {
	out := make(map[int]int, len(s.Scores))
	for id, score := range s.Scores {
		out[id] = score
	}
	return out
}
