package orchestrator

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/intent"
	nodex "github.com/tanpawarit/Chative-Dental-Assistant/agent/nodes"
)

// State names one node of the turn graph.
type State string

const (
	StateLoadHistory       State = "load_history"
	StateSummarizeMemory   State = "summarize_memory"
	StateCategorize        State = "categorize"
	StateRoute             State = "route"
	StateLoadDoctors       State = "load_doctors"
	StateFormulateSchedule State = "formulate_schedule"
	StateFormulateInfo     State = "formulate_info"
	StateFormulateSmall    State = "formulate_smalltalk"
	StateFormulateLow      State = "formulate_low"
)

type (
	stepHandler     = func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error)
	terminalHandler = func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error)
)

// Table is the turn state machine. Linear runs in order after request
// validation and its last state decides the branch. Each branch path ends in
// a terminal state that produces the reply.
type Table struct {
	Linear   []State
	Branches map[intent.Branch][]State
}

// DefaultTable is the topology every turn follows:
// load_history -> summarize_memory -> categorize -> route -> one formulator.
func DefaultTable() Table {
	return Table{
		Linear: []State{StateLoadHistory, StateSummarizeMemory, StateCategorize, StateRoute},
		Branches: map[intent.Branch][]State{
			intent.BranchSchedule:  {StateLoadDoctors, StateFormulateSchedule},
			intent.BranchInfo:      {StateFormulateInfo},
			intent.BranchSmallTalk: {StateFormulateSmall},
			intent.BranchLow:       {StateFormulateLow},
		},
	}
}

type handlers struct {
	steps     map[State]stepHandler
	terminals map[State]terminalHandler
}

// Validate checks the table against the handlers: every label and branch has
// a path, every path ends in a terminal state, and no state is reused.
func (t Table) Validate(h handlers) error {
	if len(t.Linear) == 0 {
		return fmt.Errorf("%w: turn table has no linear states", contractx.ErrConfig)
	}

	seen := make(map[State]bool)
	use := func(s State) error {
		if seen[s] {
			return fmt.Errorf("%w: state %q appears twice", contractx.ErrConfig, s)
		}
		seen[s] = true
		return nil
	}

	for _, s := range t.Linear {
		if err := use(s); err != nil {
			return err
		}
		if _, ok := h.steps[s]; !ok {
			return fmt.Errorf("%w: no handler for state %q", contractx.ErrConfig, s)
		}
	}

	for _, l := range intent.Labels() {
		if _, ok := t.Branches[l.Branch()]; !ok {
			return fmt.Errorf("%w: label %s has no branch path", contractx.ErrConfig, l)
		}
	}

	for _, b := range intent.Branches() {
		path, ok := t.Branches[b]
		if !ok || len(path) == 0 {
			return fmt.Errorf("%w: branch %s has no path", contractx.ErrConfig, b)
		}
		for i, s := range path {
			if err := use(s); err != nil {
				return err
			}
			last := i == len(path)-1
			if _, ok := h.terminals[s]; last && !ok {
				return fmt.Errorf("%w: branch %s does not end in a terminal state", contractx.ErrConfig, b)
			}
			if _, ok := h.steps[s]; !last && !ok {
				return fmt.Errorf("%w: no handler for state %q", contractx.ErrConfig, s)
			}
		}
	}

	if len(t.Branches) != len(intent.Branches()) {
		return fmt.Errorf("%w: turn table has unknown branches", contractx.ErrConfig)
	}
	return nil
}

// next returns the first state of the branch path, falling back to the low
// branch for anything unmapped.
func (t Table) next(b intent.Branch) State {
	if path, ok := t.Branches[b]; ok && len(path) > 0 {
		return path[0]
	}
	return t.Branches[intent.BranchLow][0]
}
