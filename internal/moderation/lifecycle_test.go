package moderation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    model.ModerationState
		trigger Trigger
		want    model.ModerationState
	}{
		{model.StatePending, TriggerApprove, model.StateApproved},
		{model.StatePending, TriggerReject, model.StateRejected},
		{model.StateApproved, TriggerReject, model.StateRejected},
		{model.StateApproved, TriggerApprove, model.StateApproved},
		{model.StateRejected, TriggerApprove, model.StateApproved},
		{model.StateRejected, TriggerReject, model.StateRejected},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.trigger), func(t *testing.T) {
			got, err := Transition(tt.from, tt.trigger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransition_Invalid(t *testing.T) {
	_, err := Transition("ARCHIVED", TriggerApprove)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = Transition(model.StatePending, "publish")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestTransition_ApproveIsIdempotent(t *testing.T) {
	state, err := Transition(model.StateRejected, TriggerApprove)
	require.NoError(t, err)
	state, err = Transition(state, TriggerApprove)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, state)
}

func TestInitialState(t *testing.T) {
	assert.Equal(t, model.StatePending, InitialState())
}

func TestNoTransitionBackToPending(t *testing.T) {
	for from, row := range transitions {
		for trigger, to := range row {
			assert.NotEqual(t, model.StatePending, to, "%s on %s", trigger, from)
		}
	}
}

func TestTrigger_Operation(t *testing.T) {
	assert.Equal(t, OpApprove, TriggerApprove.Operation())
	assert.Equal(t, OpReject, TriggerReject.Operation())
	assert.Equal(t, Operation(""), Trigger("publish").Operation())
}
