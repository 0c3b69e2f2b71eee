// Package moderation holds the listing lifecycle state machine and the
// visibility rules that decide which listings an actor may read or change.
package moderation

import (
	"errors"
	"fmt"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
)

// Trigger is a moderator action on a listing
type Trigger string

const (
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
)

// ErrInvalidTransition is returned for an unknown state or trigger
var ErrInvalidTransition = errors.New("invalid moderation transition")

// transitions is current state × trigger → next state. Self transitions are
// idempotent no-ops and nothing leads back to PENDING.
var transitions = map[model.ModerationState]map[Trigger]model.ModerationState{
	model.StatePending: {
		TriggerApprove: model.StateApproved,
		TriggerReject:  model.StateRejected,
	},
	model.StateApproved: {
		TriggerApprove: model.StateApproved,
		TriggerReject:  model.StateRejected,
	},
	model.StateRejected: {
		TriggerApprove: model.StateApproved,
		TriggerReject:  model.StateRejected,
	},
}

// InitialState is the state of every newly created listing, whatever the
// gate verdict was.
func InitialState() model.ModerationState {
	return model.StatePending
}

// Transition returns the state reached by applying t in state from
func Transition(from model.ModerationState, t Trigger) (model.ModerationState, error) {
	next, ok := transitions[from][t]
	if !ok {
		return "", fmt.Errorf("%w: %q on %q", ErrInvalidTransition, t, from)
	}
	return next, nil
}

// Operation returns the mutation a trigger performs
func (t Trigger) Operation() Operation {
	switch t {
	case TriggerApprove:
		return OpApprove
	case TriggerReject:
		return OpReject
	}
	return ""
}
