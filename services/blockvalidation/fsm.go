package blockvalidation

import (
	"github.com/looplab/fsm"
)

const (
	FSMStateIdle           = "IDLE"
	FSMStateRunning        = "RUNNING"
	FSMStateCatchingBlocks = "CATCHINGBLOCKS"

	FSMEventRun           = "RUN"
	FSMEventCatchupBlocks = "CATCHUPBLOCKS"
	FSMEventStop          = "STOP"
)

// NewFiniteStateMachine creates the state machine of the chain manager.
// The finite state machine has the following states:
// - Idle
// - Running
// - CatchingBlocks (fetching and validating missing ancestors)
// The finite state machine has the following events:
// - Run
// - CatchupBlocks
// - Stop
func NewFiniteStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		FSMStateIdle,
		fsm.Events{
			{
				Name: FSMEventRun,
				Src: []string{
					FSMStateIdle,
					FSMStateCatchingBlocks,
				},
				Dst: FSMStateRunning,
			},
			{
				Name: FSMEventCatchupBlocks,
				Src: []string{
					FSMStateRunning,
				},
				Dst: FSMStateCatchingBlocks,
			},
			{
				Name: FSMEventStop,
				Src: []string{
					FSMStateRunning,
					FSMStateCatchingBlocks,
				},
				Dst: FSMStateIdle,
			},
		},
		fsm.Callbacks{},
	)

	// apply options
	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}
