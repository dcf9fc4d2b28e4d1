package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[turnInput, turnOutput], error) {
	graph := compose.NewGraph[turnInput, turnOutput]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, in turnInput) (*turnState, error) {
			return o.prepare(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node prepare: %w", err)
	}

	if err := graph.AddLambdaNode("welcome",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.welcome(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node welcome: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.classify(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.dispatch(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch: %w", err)
	}

	if err := graph.AddLambdaNode("commit",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (turnOutput, error) {
			return o.commit(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node commit: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			if in.st.Phase == statex.PhaseWelcome {
				return "welcome", nil
			}
			return "classify", nil
		},
		map[string]bool{
			"welcome":  true,
			"classify": true,
		},
	)
	if err := graph.AddBranch("prepare", branch); err != nil {
		return nil, fmt.Errorf("add branch prepare: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prepare"},
		{"welcome", "commit"},
		{"classify", "dispatch"},
		{"dispatch", "commit"},
		{"commit", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
