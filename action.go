package cogito

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

var actionNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]*$`)

// ActionSpec describes an action to the decider.
type ActionSpec struct {
	// Name is the unique identifier the decider uses to select the action.
	Name string

	// Description tells the decider what the action does and when to use it.
	Description string

	// Parameters are the inputs the action accepts, keyed by name.
	Parameters map[string]*Parameter

	// Required lists parameter names that must be present in the decision input.
	Required []string

	// Final marks the finalize action. Executing it ends the cycle.
	Final bool
}

// Validate validates the action specification.
func (s *ActionSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("action", s.Name))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidAction, "name is required")
	}
	if !actionNamePattern.MatchString(s.Name) {
		return eb.Wrap(ErrInvalidAction, "name must start with a letter and contain only letters, digits, '_' or '-'")
	}

	for name, param := range s.Parameters {
		if param == nil {
			return eb.Wrap(ErrInvalidAction, "parameter is nil", goerr.V("parameter", name))
		}
		if err := param.Validate(); err != nil {
			return eb.Wrap(err, "invalid parameter", goerr.V("parameter", name))
		}
	}

	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return eb.Wrap(ErrInvalidAction, "required parameter is not defined", goerr.V("parameter", req))
		}
	}

	return nil
}

// ValidateInput checks that every required parameter is present in input and that enum
// parameters hold one of the allowed values.
func (s *ActionSpec) ValidateInput(input map[string]any) error {
	for _, req := range s.Required {
		if _, ok := input[req]; !ok {
			return goerr.Wrap(ErrInvalidParameter, "required parameter is missing",
				goerr.V("action", s.Name),
				goerr.V("parameter", req),
			)
		}
	}

	for name, value := range input {
		param, ok := s.Parameters[name]
		if !ok || len(param.Enum) == 0 {
			continue
		}
		str, _ := value.(string)
		if !slices.Contains(param.Enum, str) {
			return goerr.Wrap(ErrInvalidParameter, "value is not in enum",
				goerr.V("action", s.Name),
				goerr.V("parameter", name),
				goerr.V("value", value),
			)
		}
	}

	return nil
}

// InputSchema renders the parameters as a JSON schema object.
func (s *ActionSpec) InputSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	for name, p := range s.Parameters {
		props[name] = p.Schema()
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}

// ParameterType is the type of a parameter.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

func (x ParameterType) valid() bool {
	switch x {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

// Parameter is a parameter of an action.
type Parameter struct {
	// Type is the type of the parameter.
	Type ParameterType

	// Description explains the purpose and expected format of the parameter.
	Description string

	// Enum is the list of allowed values. Only valid for string parameters.
	Enum []string

	// Properties defines the fields of an object parameter.
	Properties map[string]*Parameter

	// Required is the list of required field names when Type is Object.
	Required []string

	// Items defines the element type of an array parameter.
	Items *Parameter
}

// Validate validates the parameter.
func (p *Parameter) Validate() error {
	eb := goerr.NewBuilder(goerr.V("type", p.Type))

	if p.Type == "" {
		return eb.Wrap(ErrInvalidParameter, "type is required")
	}
	if !p.Type.valid() {
		return eb.Wrap(ErrInvalidParameter, "unknown type")
	}

	if len(p.Enum) > 0 && p.Type != TypeString {
		return eb.Wrap(ErrInvalidParameter, "enum is only allowed for string type")
	}

	switch p.Type {
	case TypeObject:
		if p.Properties == nil {
			return eb.Wrap(ErrInvalidParameter, "properties is required for object type")
		}
		for name, prop := range p.Properties {
			if prop == nil {
				return eb.Wrap(ErrInvalidParameter, "property is nil", goerr.V("property", name))
			}
			if err := prop.Validate(); err != nil {
				return eb.Wrap(err, "invalid property", goerr.V("property", name))
			}
		}
		for _, req := range p.Required {
			if _, ok := p.Properties[req]; !ok {
				return eb.Wrap(ErrInvalidParameter, "required field not found in properties", goerr.V("field", req))
			}
		}

	case TypeArray:
		if p.Items == nil {
			return eb.Wrap(ErrInvalidParameter, "items is required for array type")
		}
		if err := p.Items.Validate(); err != nil {
			return eb.Wrap(err, "invalid items")
		}
	}

	return nil
}

// Schema renders the parameter as a JSON schema fragment.
func (p *Parameter) Schema() map[string]any {
	schema := map[string]any{"type": string(p.Type)}
	if p.Description != "" {
		schema["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		schema["enum"] = p.Enum
	}
	if p.Properties != nil {
		props := make(map[string]any, len(p.Properties))
		for name, prop := range p.Properties {
			props[name] = prop.Schema()
		}
		schema["properties"] = props
		if len(p.Required) > 0 {
			schema["required"] = p.Required
		}
	}
	if p.Items != nil {
		schema["items"] = p.Items.Schema()
	}
	return schema
}

// ActionContext is what an action sees while it runs.
type ActionContext struct {
	CycleID string
	// Message is the user message that started the cycle.
	Message  string
	Decision *Decision
	// Steps are the steps completed before this action, oldest first.
	Steps    []Step
	Progress ProgressSink
}

// Input returns the decision input, never nil.
func (x *ActionContext) Input() map[string]any {
	if x.Decision == nil || x.Decision.Input == nil {
		return map[string]any{}
	}
	return x.Decision.Input
}

// Report sends a formatted progress message to the caller.
func (x *ActionContext) Report(ctx context.Context, format string, args ...any) error {
	if x.Progress == nil {
		return nil
	}
	return x.Progress.Report(ctx, fmt.Sprintf(format, args...))
}

// Action is an operation the decider can select.
type Action interface {
	// Spec returns the specification of the action.
	Spec() ActionSpec

	// Execute runs the action. A returned error ends the thought cycle with ErrActionFailed.
	Execute(ctx context.Context, actx *ActionContext) (map[string]any, error)
}

// ActionSet provides actions in bulk, for example the tools of an MCP server.
type ActionSet interface {
	Actions(ctx context.Context) ([]Action, error)
}

type actionFunc struct {
	spec ActionSpec
	run  func(ctx context.Context, actx *ActionContext) (map[string]any, error)
}

func (x *actionFunc) Spec() ActionSpec {
	return x.spec
}

func (x *actionFunc) Execute(ctx context.Context, actx *ActionContext) (map[string]any, error) {
	return x.run(ctx, actx)
}

// NewAction builds an Action from a spec and a function.
func NewAction(spec ActionSpec, run func(ctx context.Context, actx *ActionContext) (map[string]any, error)) Action {
	return &actionFunc{spec: spec, run: run}
}
