package mcp

var (
	InputSchemaToParameters = inputSchemaToParameters
	ContentToMap            = contentToMap
)
