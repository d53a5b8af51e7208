package decide

var (
	ParseInput        = parseInput
	BuildSystemPrompt = buildSystemPrompt
	BuildUserPrompt   = buildUserPrompt
)
