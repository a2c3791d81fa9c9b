package protocol

// Code classifies why an action was rejected.
type Code string

const (
	CodeUnauthorized        Code = "unauthorized"
	CodeJoinFailed          Code = "join_failed"
	CodeDuplicateConnection Code = "duplicate_connection_handled"
	CodeInvalidTurn         Code = "invalid_turn"
	CodeInvalidCard         Code = "invalid_card"
	CodeInvalidBid          Code = "invalid_bid"
	CodeInvalidAction       Code = "invalid_action"
	CodeForbidden           Code = "forbidden"
	CodeDesync              Code = "desync"
	CodeGameUnavailable     Code = "game_unavailable"
	CodeRoutingFailed       Code = "routing_failed"
)

// Recovery hints tell clients how to proceed after an error result.
const (
	RecoveryRetry     = "retry"
	RecoverySync      = "sync"
	RecoveryTransient = "transient"
)

// RecoveryFor returns the recovery hint for an error code.
func RecoveryFor(code Code) string {
	switch code {
	case CodeDesync:
		return RecoverySync
	case CodeGameUnavailable, CodeRoutingFailed:
		return RecoveryTransient
	default:
		return RecoveryRetry
	}
}

// Rejection is a rule or authorization refusal. It is a normal protocol
// outcome, not a Go error: the session stays healthy and the client gets
// an error action.result with a recovery hint.
type Rejection struct {
	Code   Code
	Reason string
}

// Reject builds a rejection with the given code and reason.
func Reject(code Code, reason string) *Rejection {
	return &Rejection{Code: code, Reason: reason}
}
