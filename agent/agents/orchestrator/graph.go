package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Dental-Assistant/agent/nodes"
)

const stateValidateRequest = "validate_request"

func (o *Orchestrator) handlers() handlers {
	formulate := func(pick func() contractx.Formulator) terminalHandler {
		return func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			st, err := nodex.Formulate(ctx, in, pick(), o.facts)
			if err != nil {
				return nodex.GraphOutput{}, err
			}
			return nodex.FinalizeReply(st)
		}
	}

	return handlers{
		steps: map[State]stepHandler{
			StateLoadHistory: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.LoadHistory(ctx, in, o.history)
			},
			StateSummarizeMemory: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.SummarizeMemory(ctx, in, o.models.Summarizer())
			},
			StateCategorize: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.Categorize(ctx, in, o.models.Classifier())
			},
			StateRoute: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.Route(in)
			},
			StateLoadDoctors: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.LoadDoctors(ctx, in, o.doctors)
			},
		},
		terminals: map[State]terminalHandler{
			StateFormulateSchedule: formulate(o.models.Schedule),
			StateFormulateInfo:     formulate(o.models.Info),
			StateFormulateSmall:    formulate(o.models.SmallTalk),
			StateFormulateLow:      formulate(o.models.LowConfidence),
		},
	}
}

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
	table Table,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	h := o.handlers()
	if err := table.Validate(h); err != nil {
		return nil, err
	}

	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(stateValidateRequest,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", stateValidateRequest, err)
	}

	addStep := func(s State) error {
		if err := graph.AddLambdaNode(string(s), compose.InvokableLambda(h.steps[s])); err != nil {
			return fmt.Errorf("add node %s: %w", s, err)
		}
		return nil
	}
	addTerminal := func(s State) error {
		if err := graph.AddLambdaNode(string(s), compose.InvokableLambda(h.terminals[s])); err != nil {
			return fmt.Errorf("add node %s: %w", s, err)
		}
		return nil
	}

	edges := [][2]string{{compose.START, stateValidateRequest}}
	prev := stateValidateRequest
	for _, s := range table.Linear {
		if err := addStep(s); err != nil {
			return nil, err
		}
		edges = append(edges, [2]string{prev, string(s)})
		prev = string(s)
	}

	endNodes := make(map[string]bool, len(table.Branches))
	for _, path := range table.Branches {
		endNodes[string(path[0])] = true
		for i, s := range path {
			last := i == len(path)-1
			if last {
				if err := addTerminal(s); err != nil {
					return nil, err
				}
				edges = append(edges, [2]string{string(s), compose.END})
				continue
			}
			if err := addStep(s); err != nil {
				return nil, err
			}
			edges = append(edges, [2]string{string(s), string(path[i+1])})
		}
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	branch := compose.NewGraphBranch(func(ctx context.Context, in *nodex.GraphState) (string, error) {
		return string(table.next(in.Branch)), nil
	}, endNodes)
	if err := graph.AddBranch(prev, branch); err != nil {
		return nil, fmt.Errorf("add branch after %s: %w", prev, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
