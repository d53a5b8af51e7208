package otel

import "go.opentelemetry.io/otel/attribute"

func cycleIDAttr(id string) attribute.KeyValue {
	return attribute.String("cogito.cycle_id", id)
}

func cycleStatusAttr(status string) attribute.KeyValue {
	return attribute.String("cogito.status", status)
}

func cycleIterationsAttr(n int) attribute.KeyValue {
	return attribute.Int("cogito.iterations", n)
}

func stallReasonAttr(reason string) attribute.KeyValue {
	return attribute.String("cogito.stall_reason", reason)
}

func decisionIterationAttr(n int) attribute.KeyValue {
	return attribute.Int("decision.iteration", n)
}

func decisionActionAttr(action string) attribute.KeyValue {
	return attribute.String("decision.action", action)
}

func llmModelAttr(model string) attribute.KeyValue {
	return attribute.String("llm.model", model)
}

func llmInputTokensAttr(tokens int) attribute.KeyValue {
	return attribute.Int("llm.input_tokens", tokens)
}

func llmOutputTokensAttr(tokens int) attribute.KeyValue {
	return attribute.Int("llm.output_tokens", tokens)
}

func actionNameAttr(name string) attribute.KeyValue {
	return attribute.String("action.name", name)
}

func actionInputAttr(input string) attribute.KeyValue {
	return attribute.String("action.input", input)
}

func eventDataAttr(data string) attribute.KeyValue {
	return attribute.String("event.data", data)
}
