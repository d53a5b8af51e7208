package decide

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"text/template"
	"unicode/utf8"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed templates/system.md
var systemPromptTemplate string

//go:embed templates/user.md
var userPromptTemplate string

var (
	systemTmpl = template.Must(template.New("system").Parse(systemPromptTemplate))
	userTmpl   = template.Must(template.New("user").Parse(userPromptTemplate))
)

type actionData struct {
	Name        string
	Description string
	Schema      string
	Final       bool
}

type systemTemplateData struct {
	Actions      []actionData
	Final        string
	Instructions string
}

type stepData struct {
	Iteration int
	Title     string
	Action    string
	Input     string
	Output    string
}

type userTemplateData struct {
	Message   string
	Steps     []stepData
	Iteration int
}

func compactJSON(v any, limit int) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "(unserializable)"
	}
	if limit > 0 && len(raw) > limit {
		cut := raw[:limit]
		for len(cut) > 0 && !utf8.Valid(cut) {
			cut = cut[:len(cut)-1]
		}
		return string(cut) + "...(truncated)"
	}
	return string(raw)
}

func buildSystemPrompt(specs []cogito.ActionSpec, instructions string) (string, error) {
	data := systemTemplateData{Instructions: instructions}
	for _, spec := range specs {
		a := actionData{
			Name:        spec.Name,
			Description: spec.Description,
			Final:       spec.Final,
		}
		if len(spec.Parameters) > 0 {
			a.Schema = compactJSON(spec.InputSchema(), 0)
		}
		if spec.Final && data.Final == "" {
			data.Final = spec.Name
		}
		data.Actions = append(data.Actions, a)
	}

	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return buf.String(), nil
}

func buildUserPrompt(dctx *cogito.DecisionContext, outputLimit int) (string, error) {
	data := userTemplateData{
		Message:   dctx.Message,
		Iteration: dctx.Iteration,
	}
	for i, step := range dctx.Steps {
		sd := stepData{
			Iteration: i + 1,
			Output:    compactJSON(step.Output, outputLimit),
		}
		if step.Decision != nil {
			sd.Title = step.Decision.Title
			sd.Action = step.Decision.Action
			sd.Input = compactJSON(step.Decision.Input, outputLimit)
		}
		data.Steps = append(data.Steps, sd)
	}

	var buf bytes.Buffer
	if err := userTmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render user prompt")
	}
	return buf.String(), nil
}
