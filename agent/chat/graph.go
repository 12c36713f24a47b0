package chat

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

func (s *Service) compileTurnGraph(ctx context.Context) (compose.Runnable[TurnRequest, *TurnResult], error) {
	graph := compose.NewGraph[TurnRequest, *TurnResult]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in TurnRequest) (*turnState, error) {
			return s.validateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("ensure_session",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.ensureSession(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node ensure_session: %w", err)
	}

	if err := graph.AddLambdaNode("record_user_message",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.recordUserMessage(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_user_message: %w", err)
	}

	if err := graph.AddLambdaNode("build_context",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.buildContext(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node build_context: %w", err)
	}

	if err := graph.AddLambdaNode("invoke_model",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.invokeModel(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node invoke_model: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_actions",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.dispatchActions(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_actions: %w", err)
	}

	if err := graph.AddLambdaNode("normalize_response",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.normalizeResponse(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node normalize_response: %w", err)
	}

	if err := graph.AddLambdaNode("record_and_persist",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return in, s.recordReplyAndPersist(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_and_persist: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*TurnResult, error) {
			return s.finalize(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "ensure_session"},
		{"ensure_session", "record_user_message"},
		{"record_user_message", "build_context"},
		{"build_context", "invoke_model"},
		{"invoke_model", "dispatch_actions"},
		{"dispatch_actions", "normalize_response"},
		{"normalize_response", "record_and_persist"},
		{"record_and_persist", "finalize"},
		{"finalize", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("chat.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
