package cogito

import (
	"context"

	"github.com/m-mizutani/cogito/stall"
)

type (
	StateHook       func(ctx context.Context, from, to State) error
	DecisionHook    func(ctx context.Context, decision *Decision) error
	ActionStartHook func(ctx context.Context, decision *Decision) error
	ActionEndHook   func(ctx context.Context, step *Step) error
	StallHook       func(ctx context.Context, result stall.Result) error
)

func defaultStateHook(ctx context.Context, from, to State) error {
	return nil
}

func defaultDecisionHook(ctx context.Context, decision *Decision) error {
	return nil
}

func defaultActionStartHook(ctx context.Context, decision *Decision) error {
	return nil
}

func defaultActionEndHook(ctx context.Context, step *Step) error {
	return nil
}

func defaultStallHook(ctx context.Context, result stall.Result) error {
	return nil
}
