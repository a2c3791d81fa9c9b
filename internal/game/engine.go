package game

import (
	"fmt"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// Event is one outcome of an accepted action. The bridge wraps events into
// envelopes and publishes them in order, after the action.result.
type Event struct {
	Kind     string
	PlayerID *int // recipient seat; nil broadcasts
	Payload  any
}

func broadcast(kind string, payload any) Event {
	return Event{Kind: kind, Payload: payload}
}

func targeted(kind string, seat int, payload any) Event {
	return Event{Kind: kind, PlayerID: &seat, Payload: payload}
}

// Apply runs one action against the state and returns the successor state
// with the events it produced, or a rejection. It never mutates its input:
// accepted actions come back as a fresh state, so the caller can discard
// the transition if persisting it fails. Apply is deterministic given
// (state, action, role) and performs no I/O.
//
// Version increments on every accepted action except sync, which reads
// but never writes.
func Apply(s *State, act Action, role protocol.Role) (*State, []Event, *protocol.Rejection) {
	if role == protocol.RoleObserver && act.Kind() != protocol.ActionSync {
		return s, nil, protocol.Reject(protocol.CodeForbidden,
			fmt.Sprintf("observers cannot submit %s", act.Kind()))
	}

	if a, ok := act.(SyncAction); ok {
		events, rej := s.applySync(a, role)
		if rej != nil {
			return s, nil, rej
		}
		return s, events, nil
	}

	// Bump first so events built inside handlers already carry the version
	// they will be published under. A rejection discards the clone.
	next := s.Clone()
	next.Version++

	var events []Event
	var rej *protocol.Rejection

	switch a := act.(type) {
	case JoinAction:
		events, rej = next.applyJoin(a)
	case BidAction:
		events, rej = next.applyBid(a)
	case CallRankAction:
		events, rej = next.applyCall(a.PlayerID, &protocol.Criterion{Kind: "rank", Rank: a.Rank})
	case CallSuitAction:
		events, rej = next.applyCall(a.PlayerID, &protocol.Criterion{Kind: "suit", Suit: a.Suit})
	case PlayAction:
		events, rej = next.applyPlay(a)
	case ReorderAction:
		events, rej = next.applyReorder(a)
	case LeaveAction:
		events, rej = next.applyLeave(a)
	default:
		rej = protocol.Reject(protocol.CodeInvalidAction, "unknown action kind "+act.Kind())
	}

	if rej != nil {
		return s, nil, rej
	}
	return next, events, nil
}

func (s *State) applyJoin(a JoinAction) ([]Event, *protocol.Rejection) {
	if s.Phase == PhaseGameEnd {
		return nil, protocol.Reject(protocol.CodeJoinFailed, "game is over")
	}
	if a.PlayerID < 0 || a.PlayerID >= s.Rules.Seats {
		return nil, protocol.Reject(protocol.CodeJoinFailed,
			fmt.Sprintf("seat %d does not exist, the table seats %d", a.PlayerID, s.Rules.Seats))
	}

	if existing := s.Players[a.PlayerID]; existing != nil {
		// Reconnect: the seat survives disconnects, the player resumes it.
		existing.Connected = true
		if a.Name != "" {
			existing.Name = a.Name
		}
		return []Event{
			broadcast(protocol.EventPlayerReconnect, protocol.PlayerEventPayload{
				PlayerID: a.PlayerID,
				Name:     existing.Name,
			}),
			targeted(protocol.EventSync, a.PlayerID, s.viewFor(protocol.RolePlayer, a.PlayerID)),
		}, nil
	}

	if s.Phase != PhaseWaitingForPlayers {
		return nil, protocol.Reject(protocol.CodeJoinFailed, "game already started")
	}

	s.Players[a.PlayerID] = &Player{
		ID:        a.PlayerID,
		Name:      a.Name,
		Hand:      make([]protocol.Card, 0),
		Connected: true,
	}

	events := []Event{
		broadcast(protocol.EventPlayerJoin, protocol.PlayerEventPayload{
			PlayerID: a.PlayerID,
			Name:     a.Name,
		}),
	}

	if s.SeatedCount() == s.Rules.Seats {
		events = append(events, s.dealHand()...)
	}
	return events, nil
}

func (s *State) applyBid(a BidAction) ([]Event, *protocol.Rejection) {
	if s.Phase != PhaseBidding {
		return nil, protocol.Reject(protocol.CodeInvalidBid, "no auction in progress")
	}
	p := s.Player(a.PlayerID)
	if p == nil {
		return nil, protocol.Reject(protocol.CodeUnauthorized,
			fmt.Sprintf("seat %d is not joined", a.PlayerID))
	}
	if a.PlayerID != s.CurrentPlayer {
		return nil, protocol.Reject(protocol.CodeInvalidBid,
			fmt.Sprintf("it is seat %d's turn to bid", s.CurrentPlayer))
	}

	if a.Amount == protocol.PassBid {
		p.Passed = true
	} else {
		if a.Amount < s.Rules.MinBid || a.Amount > s.Rules.MaxBid {
			return nil, protocol.Reject(protocol.CodeInvalidBid,
				fmt.Sprintf("bid %d is outside %d..%d", a.Amount, s.Rules.MinBid, s.Rules.MaxBid))
		}
		if s.CurrentBid != nil && a.Amount <= s.CurrentBid.Amount {
			return nil, protocol.Reject(protocol.CodeInvalidBid,
				fmt.Sprintf("bid must exceed the standing %d", s.CurrentBid.Amount))
		}
		s.CurrentBid = &Bid{Amount: a.Amount, HolderID: a.PlayerID}
	}

	if next := s.nextBidder(a.PlayerID); next != NoPlayer {
		s.CurrentPlayer = next
		return nil, nil
	}

	// Auction closed.
	if s.CurrentBid == nil {
		// Everyone passed: the hand is thrown in and redealt.
		return s.dealHand(), nil
	}

	holder := s.CurrentBid.HolderID
	s.Phase = PhaseCallingPartner
	s.CurrentPlayer = holder
	s.CallerID = &holder

	return []Event{
		broadcast(protocol.EventPhaseChange, protocol.PhaseChangePayload{
			Phase:           s.Phase.String(),
			HandNumber:      s.HandNumber,
			CurrentPlayerID: s.currentPlayerPtr(),
			CallerID:        cloneInt(s.CallerID),
			Bid:             s.CurrentBid.Amount,
		}),
	}, nil
}

// nextBidder finds the next seat still in the auction after from, skipping
// seats that passed and the current bid holder. NoPlayer means the auction
// is over.
func (s *State) nextBidder(from int) int {
	for i := 1; i <= s.Rules.Seats; i++ {
		candidate := (from + i) % s.Rules.Seats
		p := s.Players[candidate]
		if p == nil || p.Passed {
			continue
		}
		if s.CurrentBid != nil && candidate == s.CurrentBid.HolderID {
			continue
		}
		return candidate
	}
	return NoPlayer
}

func (s *State) applyCall(playerID int, crit *protocol.Criterion) ([]Event, *protocol.Rejection) {
	if s.Phase != PhaseCallingPartner {
		return nil, protocol.Reject(protocol.CodeInvalidAction, "no partner call expected")
	}
	if s.Player(playerID) == nil {
		return nil, protocol.Reject(protocol.CodeUnauthorized,
			fmt.Sprintf("seat %d is not joined", playerID))
	}
	if playerID != s.CurrentPlayer {
		return nil, protocol.Reject(protocol.CodeInvalidAction, "only the bid holder calls the partner")
	}

	s.PartnerCriterion = crit
	if crit.Kind == "suit" {
		s.TrumpSuit = crit.Suit
	}
	s.resolvePartnerFromHands()

	s.Phase = PhasePlaying
	s.CurrentPlayer = s.firstSeat()

	return []Event{
		broadcast(protocol.EventPhaseChange, protocol.PhaseChangePayload{
			Phase:           s.Phase.String(),
			HandNumber:      s.HandNumber,
			CurrentPlayerID: s.currentPlayerPtr(),
			TrumpSuit:       s.TrumpSuit,
			CallerID:        cloneInt(s.CallerID),
			Bid:             s.CurrentBid.Amount,
			Criterion:       cloneCriterion(s.PartnerCriterion),
		}),
	}, nil
}

// resolvePartnerFromHands records the partner when the criterion already
// pins down exactly one other seat. The identity stays undisclosed until a
// matching card is played.
func (s *State) resolvePartnerFromHands() {
	if s.CallerID == nil || s.PartnerCriterion == nil {
		return
	}
	holder := NoPlayer
	for _, p := range s.Players {
		if p == nil || p.ID == *s.CallerID {
			continue
		}
		for _, c := range p.Hand {
			if matchesCriterion(s.PartnerCriterion, c) {
				if holder != NoPlayer && holder != p.ID {
					return // spread across seats, resolve on first play
				}
				holder = p.ID
			}
		}
	}
	if holder != NoPlayer {
		id := holder
		s.PartnerID = &id
	}
}

func (s *State) applyPlay(a PlayAction) ([]Event, *protocol.Rejection) {
	if s.Phase != PhasePlaying {
		return nil, protocol.Reject(protocol.CodeInvalidAction, "no trick in progress")
	}
	p := s.Player(a.PlayerID)
	if p == nil {
		return nil, protocol.Reject(protocol.CodeUnauthorized,
			fmt.Sprintf("seat %d is not joined", a.PlayerID))
	}
	if a.PlayerID != s.CurrentPlayer {
		return nil, protocol.Reject(protocol.CodeInvalidTurn,
			fmt.Sprintf("it is seat %d's turn", s.CurrentPlayer))
	}
	if !p.holdsCard(a.Card) {
		return nil, protocol.Reject(protocol.CodeInvalidCard,
			fmt.Sprintf("%s is not in your hand", a.Card))
	}
	policy, err := FollowPolicyByName(s.Rules.FollowPolicy)
	if err != nil {
		policy, _ = FollowPolicyByName(PolicyAnyCard)
	}
	if !policy.LegalPlay(p.Hand, s.CurrentTrick, s.TrumpSuit, a.Card) {
		return nil, protocol.Reject(protocol.CodeInvalidCard,
			fmt.Sprintf("%s breaks the %s rule", a.Card, policy.Name()))
	}

	p.removeCard(a.Card)
	s.CurrentTrick = append(s.CurrentTrick, protocol.PlayedCard{PlayerID: a.PlayerID, Card: a.Card})

	// A matching card from anyone but the caller reveals the partnership
	// to the caller; the table learns when the trick resolves.
	if s.PartnerStage == PartnerHidden && s.CallerID != nil &&
		a.PlayerID != *s.CallerID && matchesCriterion(s.PartnerCriterion, a.Card) {
		id := a.PlayerID
		s.PartnerID = &id
		s.PartnerStage = PartnerCallerKnown
	}

	if len(s.CurrentTrick) < s.Rules.Seats {
		s.CurrentPlayer = (a.PlayerID + 1) % s.Rules.Seats
		return []Event{
			broadcast(protocol.EventTrickPlayed, protocol.TrickPlayedPayload{
				PlayerID:        a.PlayerID,
				Card:            a.Card,
				Trick:           append([]protocol.PlayedCard(nil), s.CurrentTrick...),
				CurrentPlayerID: s.currentPlayerPtr(),
			}),
		}, nil
	}

	return s.resolveTrick(a)
}

func (s *State) resolveTrick(a PlayAction) ([]Event, *protocol.Rejection) {
	trick := append([]protocol.PlayedCard(nil), s.CurrentTrick...)
	winner := trickWinner(trick, s.TrumpSuit)
	points := trickPoints(trick)

	winnerSeat := s.Player(winner)
	for _, played := range trick {
		winnerSeat.Taken = append(winnerSeat.Taken, played.Card)
	}
	s.Scores[winner] += points
	s.CurrentTrick = s.CurrentTrick[:0]
	s.CurrentPlayer = winner

	if s.PartnerStage == PartnerCallerKnown {
		s.PartnerStage = PartnerPublic
	}

	events := []Event{
		broadcast(protocol.EventTrickPlayed, protocol.TrickPlayedPayload{
			PlayerID: a.PlayerID,
			Card:     a.Card,
			Trick:    trick,
		}),
		broadcast(protocol.EventTrickWon, protocol.TrickWonPayload{
			WinnerID:   winner,
			Points:     points,
			TrickCards: trick,
			Scores:     s.scoresCopy(),
		}),
		broadcast(protocol.EventScoreUpdate, protocol.ScoreUpdatePayload{
			Scores: s.scoresCopy(),
			Delta:  protocol.ScoreDelta{PlayerID: winner, Points: points},
		}),
	}

	if s.handsEmpty() {
		events = append(events, s.finishHand()...)
	}
	return events, nil
}

func (s *State) handsEmpty() bool {
	for _, p := range s.Players {
		if p != nil && len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// finishHand scores the completed hand and either ends the game or deals
// the next hand. HAND_END is transient: no action can arrive while the
// state rests on it, so the transition out happens in the same apply.
func (s *State) finishHand() []Event {
	s.HandsPlayed++
	s.Phase = PhaseHandEnd

	if s.PartnerID != nil {
		s.PartnerStage = PartnerPublic
	}

	winners := s.handWinners()

	events := []Event{
		broadcast(protocol.EventPhaseChange, protocol.PhaseChangePayload{
			Phase:      s.Phase.String(),
			HandNumber: s.HandNumber,
			CallerID:   cloneInt(s.CallerID),
			PartnerID:  cloneInt(s.PartnerID),
			Bid:        s.CurrentBid.Amount,
			Scores:     s.scoresCopy(),
			Winners:    winners,
		}),
	}

	if s.gameOver() {
		s.Phase = PhaseGameEnd
		s.CurrentPlayer = NoPlayer
		events = append(events, broadcast(protocol.EventPhaseChange, protocol.PhaseChangePayload{
			Phase:      s.Phase.String(),
			HandNumber: s.HandNumber,
			Scores:     s.scoresCopy(),
			Winners:    winners,
		}))
		return events
	}

	return append(events, s.dealHand()...)
}

// handWinners returns the seats that won the hand: the calling side when
// its banked points reach the bid, everyone else otherwise. A caller whose
// criterion matched no other seat plays alone.
func (s *State) handWinners() []int {
	if s.CallerID == nil || s.CurrentBid == nil {
		return nil
	}
	calling := map[int]bool{*s.CallerID: true}
	if s.PartnerID != nil {
		calling[*s.PartnerID] = true
	}

	teamPoints := 0
	for id := range calling {
		teamPoints += s.handPoints(id)
	}

	callerWon := teamPoints >= s.CurrentBid.Amount
	winners := make([]int, 0, s.Rules.Seats)
	for _, p := range s.Players {
		if p == nil {
			continue
		}
		if calling[p.ID] == callerWon {
			winners = append(winners, p.ID)
		}
	}
	return winners
}

func (s *State) gameOver() bool {
	if s.Rules.Hands > 0 && s.HandsPlayed >= s.Rules.Hands {
		return true
	}
	if s.Rules.TargetScore > 0 {
		for _, score := range s.Scores {
			if score >= s.Rules.TargetScore {
				return true
			}
		}
	}
	return false
}

// dealHand shuffles and deals the next hand and opens its auction. The
// shuffle is keyed by seed and hand number, so replaying the triggering
// action after a reload deals the same cards.
func (s *State) dealHand() []Event {
	s.HandNumber++
	deck := shuffledDeck(s.Seed + int64(s.HandNumber))

	per := DeckSize / s.Rules.Seats
	for i, p := range s.Players {
		p.Hand = append([]protocol.Card(nil), deck[i*per:(i+1)*per]...)
		p.Taken = nil
		p.Passed = false
	}
	s.DeckRemaining = append([]protocol.Card(nil), deck[s.Rules.Seats*per:]...)

	s.TrumpSuit = ""
	s.CurrentBid = nil
	s.CallerID = nil
	s.PartnerID = nil
	s.PartnerCriterion = nil
	s.PartnerStage = PartnerHidden
	s.CurrentTrick = s.CurrentTrick[:0]

	s.Phase = PhaseBidding
	s.CurrentPlayer = s.firstSeat()

	events := []Event{
		broadcast(protocol.EventPhaseChange, protocol.PhaseChangePayload{
			Phase:           s.Phase.String(),
			HandNumber:      s.HandNumber,
			CurrentPlayerID: s.currentPlayerPtr(),
		}),
	}
	for _, p := range s.Players {
		events = append(events, targeted(protocol.EventHandUpdate, p.ID, protocol.HandUpdatePayload{
			Hand: append([]protocol.Card(nil), p.Hand...),
		}))
	}
	return events
}

func (s *State) applyReorder(a ReorderAction) ([]Event, *protocol.Rejection) {
	p := s.Player(a.PlayerID)
	if p == nil {
		return nil, protocol.Reject(protocol.CodeUnauthorized,
			fmt.Sprintf("seat %d is not joined", a.PlayerID))
	}
	if s.Phase == PhaseWaitingForPlayers || s.Phase == PhaseGameEnd {
		return nil, protocol.Reject(protocol.CodeInvalidAction, "no hand to reorder")
	}
	if !samePermutation(p.Hand, a.Hand) {
		return nil, protocol.Reject(protocol.CodeInvalidAction,
			"reorder must use exactly the cards in hand")
	}

	p.Hand = append([]protocol.Card(nil), a.Hand...)

	return []Event{
		targeted(protocol.EventHandUpdate, a.PlayerID, protocol.HandUpdatePayload{
			Hand: append([]protocol.Card(nil), p.Hand...),
		}),
	}, nil
}

func samePermutation(a, b []protocol.Card) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[protocol.Card]int, len(a))
	for _, c := range a {
		counts[c]++
	}
	for _, c := range b {
		counts[c]--
		if counts[c] < 0 {
			return false
		}
	}
	return true
}

func (s *State) applyLeave(a LeaveAction) ([]Event, *protocol.Rejection) {
	if s.Phase == PhaseGameEnd {
		return nil, protocol.Reject(protocol.CodeInvalidAction, "game is over")
	}
	p := s.Player(a.PlayerID)
	if p == nil {
		return nil, protocol.Reject(protocol.CodeUnauthorized,
			fmt.Sprintf("seat %d is not joined", a.PlayerID))
	}

	p.Connected = false

	return []Event{
		broadcast(protocol.EventPlayerLeave, protocol.PlayerEventPayload{
			PlayerID: a.PlayerID,
			Name:     p.Name,
		}),
	}, nil
}

func (s *State) applySync(a SyncAction, role protocol.Role) ([]Event, *protocol.Rejection) {
	if role == protocol.RoleObserver || a.PlayerID == NoPlayer {
		// Observer views carry no hands, so broadcasting them is safe.
		return []Event{broadcast(protocol.EventSync, s.viewFor(protocol.RoleObserver, NoPlayer))}, nil
	}
	if s.Player(a.PlayerID) == nil {
		return nil, protocol.Reject(protocol.CodeUnauthorized,
			fmt.Sprintf("seat %d is not joined", a.PlayerID))
	}
	return []Event{
		targeted(protocol.EventSync, a.PlayerID, s.viewFor(protocol.RolePlayer, a.PlayerID)),
	}, nil
}

func (s *State) currentPlayerPtr() *int {
	if s.CurrentPlayer == NoPlayer {
		return nil
	}
	id := s.CurrentPlayer
	return &id
}

// firstSeat returns the seat that opens the current hand: seat 0 for hand
// one, rotating by one seat per hand dealt. The same seat opens the
// auction and leads the first trick.
func (s *State) firstSeat() int {
	return (s.HandNumber - 1) % s.Rules.Seats
}
