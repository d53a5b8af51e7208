package cogito

import "errors"

var (
	// ErrUnknownAction is returned when a decision names an action that is not registered.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDisabledAction is returned when a decision names a registered but disabled action.
	ErrDisabledAction = errors.New("action is disabled")

	// ErrActionNameConflict is returned when registering an action whose name is already taken.
	ErrActionNameConflict = errors.New("action name conflict")

	ErrInvalidAction    = errors.New("invalid action specification")
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrActionFailed wraps an error returned by Action.Execute. It ends the cycle.
	ErrActionFailed = errors.New("action failed")

	// ErrNoDecision is returned when the decider returns neither a decision nor an error, or a
	// decision without an action.
	ErrNoDecision = errors.New("no decision")

	// ErrCycleCanceled is returned together with the context error when the context is done before
	// the cycle terminates.
	ErrCycleCanceled = errors.New("thought cycle canceled")
)
