package game

import (
	"fmt"

	"github.com/pybriscola/briscola-server-go/internal/protocol"
)

// Replay is a recorded transcript of one session: the state it started
// from plus every accepted action in order, each fingerprinted with the
// version and checksum the live session reached. Because Apply is
// deterministic and deals are keyed by the seed in the initial state, the
// transcript is enough to re-derive the whole game and to prove that a
// re-derivation did not diverge.
type Replay struct {
	SessionID string
	Initial   *State
	Steps     []ReplayStep
}

// ReplayStep is one accepted action and the position it produced.
type ReplayStep struct {
	Action   Action
	Role     protocol.Role
	Version  uint64
	Checksum string
}

// NewReplay opens a transcript at the given state, usually a cold NewState.
// The state is cloned so later play cannot reach back into it.
func NewReplay(initial *State) *Replay {
	return &Replay{SessionID: initial.SessionID, Initial: initial.Clone()}
}

// Record appends an accepted action together with the fingerprint of the
// state it produced.
func (r *Replay) Record(act Action, role protocol.Role, after *State) error {
	sum, err := Checksum(after)
	if err != nil {
		return fmt.Errorf("replay record: %w", err)
	}
	r.Steps = append(r.Steps, ReplayStep{
		Action:   act,
		Role:     role,
		Version:  after.Version,
		Checksum: sum,
	})
	return nil
}

// Len returns the number of recorded steps.
func (r *Replay) Len() int { return len(r.Steps) }

// Rebuild replays the whole transcript and returns the final state. Every
// step is checked against the recorded version and checksum, so a rules
// change or a lost mutation shows up as an error naming the first step
// that diverged.
func (r *Replay) Rebuild() (*State, error) {
	return r.StateAt(len(r.Steps))
}

// StateAt replays the first n steps, letting a recorded game be inspected
// at any point between the opening deal and the last action.
func (r *Replay) StateAt(n int) (*State, error) {
	if n < 0 || n > len(r.Steps) {
		return nil, fmt.Errorf("replay: step %d out of range [0, %d]", n, len(r.Steps))
	}

	state := r.Initial.Clone()
	for i := 0; i < n; i++ {
		step := r.Steps[i]
		next, _, rej := Apply(state, step.Action, step.Role)
		if rej != nil {
			return nil, fmt.Errorf("replay: step %d (%s) rejected: %s", i, step.Action.Kind(), rej.Reason)
		}
		if next.Version != step.Version {
			return nil, fmt.Errorf("replay: step %d (%s) reached version %d, recorded %d",
				i, step.Action.Kind(), next.Version, step.Version)
		}
		sum, err := Checksum(next)
		if err != nil {
			return nil, err
		}
		if sum != step.Checksum {
			return nil, fmt.Errorf("replay: step %d (%s) diverged from the recorded position",
				i, step.Action.Kind())
		}
		state = next
	}
	return state, nil
}
