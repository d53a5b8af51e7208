package trace

// CycleData holds the outcome of a thought cycle.
type CycleData struct {
	CycleID     string `json:"cycle_id"`
	Message     string `json:"message"`
	Status      string `json:"status,omitempty"`
	StallReason string `json:"stall_reason,omitempty"`
	Iterations  int    `json:"iterations"`
}

// DecisionData holds the fields of one decision.
type DecisionData struct {
	Iteration  int            `json:"iteration"`
	Title      string         `json:"title,omitempty"`
	Reflection string         `json:"reflection,omitempty"`
	Action     string         `json:"action,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
}

// LLMCallData holds data specific to an LLM call span.
type LLMCallData struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model,omitempty"`

	Request  *LLMRequest  `json:"request"`
	Response *LLMResponse `json:"response"`
}

// LLMRequest represents the request sent to an LLM.
type LLMRequest struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// LLMResponse represents the streamed response, concatenated.
type LLMResponse struct {
	Text   string `json:"text"`
	Chunks int    `json:"chunks"`
}

// Message represents a message in the trace (simplified from llm.Message).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ActionData holds data specific to an action execution span.
type ActionData struct {
	ActionName string         `json:"action_name"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// EventData holds data specific to an event span.
// Kind is a free-form string; the orchestrator emits "stall" and "progress".
// Data is any JSON-serializable value.
type EventData struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}
