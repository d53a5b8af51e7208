package cogito

import "context"

// ActionMiddleware is a function that wraps an ActionHandler to add behavior.
type ActionMiddleware func(next ActionHandler) ActionHandler

// ActionHandler executes an action.
type ActionHandler func(ctx context.Context, req *ActionRequest) (*ActionResponse, error)

// ActionRequest represents an action execution request.
type ActionRequest struct {
	Action  Action
	Spec    ActionSpec
	Context *ActionContext
}

// ActionResponse represents an action execution response.
type ActionResponse struct {
	Output map[string]any
}

func executeAction(ctx context.Context, req *ActionRequest) (*ActionResponse, error) {
	output, err := req.Action.Execute(ctx, req.Context)
	if err != nil {
		return nil, err
	}
	return &ActionResponse{Output: output}, nil
}

// buildActionChain builds a chain of ActionMiddleware functions.
// The middlewares are applied in the order they are provided.
func buildActionChain(middlewares []ActionMiddleware, handler ActionHandler) ActionHandler {
	// Apply middlewares in reverse order to maintain intuitive execution order
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
