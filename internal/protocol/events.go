package protocol

// Event kinds published on the game.<id>.events topic.
const (
	EventActionResult    = "action.result"
	EventHandUpdate      = "hand.update"
	EventTrickPlayed     = "trick.played"
	EventTrickWon        = "trick.won"
	EventScoreUpdate     = "score.update"
	EventPhaseChange     = "phase.change"
	EventPlayerJoin      = "player.join"
	EventPlayerLeave     = "player.leave"
	EventPlayerReconnect = "player.reconnect"
	EventSync            = "sync"
	EventError           = "error"
	EventGameEnded       = "game.ended"
)

// Result statuses for action.result events.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Effects summarizes what an accepted action changed.
type Effects struct {
	Phase   string   `json:"phase"`
	Version uint64   `json:"version"`
	Events  []string `json:"events,omitempty"`
}

// ActionResultPayload correlates an outcome with the action that caused it.
type ActionResultPayload struct {
	Status   string   `json:"status"`
	ActionID string   `json:"action_id"`
	Effects  *Effects `json:"effects,omitempty"`
	Code     Code     `json:"code,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Recovery string   `json:"recovery,omitempty"`
}

// OKResult builds a successful action.result payload.
func OKResult(actionID string, effects *Effects) ActionResultPayload {
	return ActionResultPayload{Status: StatusOK, ActionID: actionID, Effects: effects}
}

// ErrorResult builds a failed action.result payload with its recovery hint.
func ErrorResult(actionID string, rej *Rejection) ActionResultPayload {
	return ActionResultPayload{
		Status:   StatusError,
		ActionID: actionID,
		Code:     rej.Code,
		Reason:   rej.Reason,
		Recovery: RecoveryFor(rej.Code),
	}
}

// PlayedCard is one card on the table, tagged with the seat that played it.
type PlayedCard struct {
	PlayerID int  `json:"player_id"`
	Card     Card `json:"card"`
}

// Criterion describes the partner-selection rule fixed during the call.
type Criterion struct {
	Kind string `json:"kind"` // "rank" or "suit"
	Rank int    `json:"rank,omitempty"`
	Suit Suit   `json:"suit,omitempty"`
}

// HandUpdatePayload delivers a player's current hand. Owner-only.
type HandUpdatePayload struct {
	Hand []Card `json:"hand"`
}

// TrickPlayedPayload announces a card placed on the current trick.
type TrickPlayedPayload struct {
	PlayerID        int          `json:"player_id"`
	Card            Card         `json:"card"`
	Trick           []PlayedCard `json:"trick"`
	CurrentPlayerID *int         `json:"current_player_id,omitempty"`
}

// TrickWonPayload announces a resolved trick.
type TrickWonPayload struct {
	WinnerID   int          `json:"winner_id"`
	Points     int          `json:"points"`
	TrickCards []PlayedCard `json:"trick_cards"`
	Scores     map[int]int  `json:"scores"`
}

// ScoreDelta is the per-trick change in one seat's score.
type ScoreDelta struct {
	PlayerID int `json:"player_id"`
	Points   int `json:"points"`
}

// ScoreUpdatePayload carries accumulated scores after a trick.
type ScoreUpdatePayload struct {
	Scores map[int]int `json:"scores"`
	Delta  ScoreDelta  `json:"delta"`
}

// PhaseChangePayload announces a phase transition together with whatever
// context the new phase established.
type PhaseChangePayload struct {
	Phase           string      `json:"phase"`
	HandNumber      int         `json:"hand_number"`
	CurrentPlayerID *int        `json:"current_player_id,omitempty"`
	TrumpSuit       Suit        `json:"trump_suit,omitempty"`
	CallerID        *int        `json:"caller_id,omitempty"`
	PartnerID       *int        `json:"partner_id,omitempty"`
	Bid             int         `json:"bid,omitempty"`
	Criterion       *Criterion  `json:"criterion,omitempty"`
	Scores          map[int]int `json:"scores,omitempty"`
	Winners         []int       `json:"winners,omitempty"`
}

// PlayerEventPayload backs player.join, player.leave and player.reconnect.
type PlayerEventPayload struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name,omitempty"`
}

// PlayerView is one seat as seen by a specific requester. Hand is present
// only in the owner's own view; everyone else sees the count.
type PlayerView struct {
	PlayerID  int    `json:"player_id"`
	Name      string `json:"name,omitempty"`
	Connected bool   `json:"connected"`
	Cards     int    `json:"cards"`
	Hand      []Card `json:"hand,omitempty"`
	Passed    bool   `json:"passed,omitempty"`
}

// SyncPayload is a full role-tailored snapshot of the session.
type SyncPayload struct {
	Phase           string       `json:"phase"`
	Version         uint64       `json:"version"`
	HandNumber      int          `json:"hand_number"`
	CurrentPlayerID *int         `json:"current_player_id,omitempty"`
	TrumpSuit       Suit         `json:"trump_suit,omitempty"`
	CallerID        *int         `json:"caller_id,omitempty"`
	PartnerID       *int         `json:"partner_id,omitempty"`
	Bid             int          `json:"bid,omitempty"`
	BidHolderID     *int         `json:"bid_holder_id,omitempty"`
	Criterion       *Criterion   `json:"criterion,omitempty"`
	Players         []PlayerView `json:"players"`
	Trick           []PlayedCard `json:"trick"`
	Scores          map[int]int  `json:"scores"`
	DeckCount       int          `json:"deck_count"`
}

// ErrorPayload reports a fault not correlated with any action.
type ErrorPayload struct {
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
}

// GameEndedPayload announces that a session was stopped and removed.
type GameEndedPayload struct {
	SessionID string `json:"session_id"`
}
