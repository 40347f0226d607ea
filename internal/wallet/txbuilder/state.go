package txbuilder

import (
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// State is the lifecycle of a transaction inside the engine.
//
//	Unsigned -> Built -> Signed -> Broadcast -> Pending -> Confirmed | Failed
//	                     Signed -> Failed (rejected or discarded)
//
// Transitions only move forward. Confirmed and Failed are terminal; a failed
// transaction is rebuilt from scratch.
type State string

const (
	StateUnsigned  State = "unsigned"
	StateBuilt     State = "built"
	StateSigned    State = "signed"
	StateBroadcast State = "broadcast"
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

var transitions = map[State][]State{
	StateUnsigned:  {StateBuilt},
	StateBuilt:     {StateSigned},
	StateSigned:    {StateBroadcast, StateFailed},
	StateBroadcast: {StatePending, StateConfirmed, StateFailed},
	StatePending:   {StatePending, StateConfirmed, StateFailed},
}

// Advance returns next if the transition is allowed, InvalidState otherwise.
// Pending -> Pending is accepted so status polling can re-apply the same state.
func (s State) Advance(next State) (State, error) {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, werrors.Newf(werrors.KindInvalidState, "illegal transition %s -> %s", s, next)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// FromNetwork maps a provider status onto the lifecycle.
func FromNetwork(s provider.State) State {
	switch s {
	case provider.StateConfirmed:
		return StateConfirmed
	case provider.StateFailed:
		return StateFailed
	default:
		return StatePending
	}
}
