package game

import (
	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// viewFor builds the sync snapshot a requester is allowed to see. Players
// get their own hand and nothing of anyone else's; observers get no hands
// at all. The partner identity honors the disclosure stage: the caller
// sees it once a matching card has been played, the rest of the table only
// after that trick resolved.
func (s *State) viewFor(role protocol.Role, requester int) protocol.SyncPayload {
	view := protocol.SyncPayload{
		Phase:           s.Phase.String(),
		Version:         s.Version,
		HandNumber:      s.HandNumber,
		CurrentPlayerID: s.currentPlayerPtr(),
		TrumpSuit:       s.TrumpSuit,
		CallerID:        cloneInt(s.CallerID),
		Criterion:       cloneCriterion(s.PartnerCriterion),
		Trick:           append([]protocol.PlayedCard(nil), s.CurrentTrick...),
		Scores:          s.scoresCopy(),
		DeckCount:       len(s.DeckRemaining),
	}
	if view.Trick == nil {
		view.Trick = make([]protocol.PlayedCard, 0)
	}

	if s.CurrentBid != nil {
		view.Bid = s.CurrentBid.Amount
		holder := s.CurrentBid.HolderID
		view.BidHolderID = &holder
	}

	if s.partnerVisibleTo(role, requester) {
		view.PartnerID = cloneInt(s.PartnerID)
	}

	view.Players = make([]protocol.PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		if p == nil {
			continue
		}
		pv := protocol.PlayerView{
			PlayerID:  p.ID,
			Name:      p.Name,
			Connected: p.Connected,
			Cards:     len(p.Hand),
			Passed:    p.Passed,
		}
		if role == protocol.RolePlayer && p.ID == requester {
			pv.Hand = append([]protocol.Card(nil), p.Hand...)
		}
		view.Players = append(view.Players, pv)
	}

	return view
}

// partnerVisibleTo applies the staged disclosure rule.
func (s *State) partnerVisibleTo(role protocol.Role, requester int) bool {
	if s.PartnerID == nil {
		return false
	}
	switch s.PartnerStage {
	case PartnerPublic:
		return true
	case PartnerCallerKnown:
		return role == protocol.RolePlayer && s.CallerID != nil && requester == *s.CallerID
	}
	return false
}
